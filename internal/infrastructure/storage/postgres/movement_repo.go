package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/movement"
)

const movementsTable = "movements"

var movementColumns = []string{
	"id", "product_id", "batch_id", "type", "quantity",
	"reference_kind", "reference_id",
	"actor", "reason", "occurred_at", "created_at",
}

// MovementRepo implements movement.Repository over the append-only log.
type MovementRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

var _ movement.Repository = (*MovementRepo)(nil)

// NewMovementRepo creates a new movement repository.
func NewMovementRepo(txManager *TxManager) *MovementRepo {
	return &MovementRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create appends movements. Uses COPY when a transaction carries several rows,
// a plain insert otherwise.
func (r *MovementRepo) Create(ctx context.Context, movements ...movement.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	if t := r.txManager.GetTx(ctx); t != nil && len(movements) > 1 {
		inserter := NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, []any{
				m.ID, m.ProductID, m.BatchID, m.Type, m.Quantity.Int64Scaled(),
				m.RefKind, m.RefID,
				m.Actor, m.Reason, m.OccurredAt, m.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
			return translateError(fmt.Errorf("copy movements: %w", err))
		}
		return nil
	}

	q := r.builder.Insert(movementsTable).Columns(movementColumns...)
	for _, m := range movements {
		q = q.Values(
			m.ID, m.ProductID, m.BatchID, m.Type, m.Quantity.Int64Scaled(),
			m.RefKind, m.RefID,
			m.Actor, m.Reason, m.OccurredAt, m.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return translateError(fmt.Errorf("insert movements: %w", err))
	}
	return nil
}

func (r *MovementRepo) ListByProduct(ctx context.Context, productID id.ID, filter movement.Filter) ([]movement.Movement, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"product_id": productID})

	if filter.BatchID != nil {
		q = q.Where(squirrel.Eq{"batch_id": *filter.BatchID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"occurred_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.Lt{"occurred_at": *filter.ToDate})
	}

	q = q.OrderBy("occurred_at DESC", "created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []movement.Movement
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

func (r *MovementRepo) ListByReference(ctx context.Context, ref movement.Reference) ([]movement.Movement, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{
			"reference_kind": ref.Kind,
			"reference_id":   ref.ID,
		}).
		OrderBy("occurred_at", "created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []movement.Movement
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements by reference: %w", err)
	}
	return movements, nil
}

func (r *MovementRepo) GetTurnover(ctx context.Context, productID id.ID, from, to time.Time) (movement.Turnover, error) {
	sql := `
		SELECT
			COALESCE(SUM(CASE WHEN quantity > 0 THEN quantity ELSE 0 END), 0)  AS inbound,
			COALESCE(SUM(CASE WHEN quantity < 0 THEN -quantity ELSE 0 END), 0) AS outbound
		FROM movements
		WHERE product_id = $1
		  AND occurred_at >= $2
		  AND occurred_at < $3
	`

	result := movement.Turnover{ProductID: productID}
	var inbound, outbound int64
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, productID, from, to).Scan(&inbound, &outbound)
	if err != nil && err != pgx.ErrNoRows {
		return result, fmt.Errorf("calculate turnover: %w", err)
	}
	result.Inbound = types.NewQuantityFromInt64Scaled(inbound)
	result.Outbound = types.NewQuantityFromInt64Scaled(outbound)
	return result, nil
}
