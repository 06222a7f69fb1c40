package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/ledger"
	"lotkeeper/internal/domain/location"
)

const ledgersTable = "ledgers"

var ledgerColumns = []string{
	"id", "batch_id", "product_id",
	"on_hand", "on_shelf", "reserved",
	"location_id", "version", "created_at", "updated_at",
}

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// Interface compliance, including the occupancy view the location service reads.
var _ ledger.Repository = (*LedgerRepo)(nil)
var _ location.OccupancyReader = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txManager *TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LedgerRepo) Create(ctx context.Context, l *ledger.Ledger) error {
	q := r.builder.Insert(ledgersTable).
		Columns(ledgerColumns...).
		Values(
			l.ID, l.BatchID, l.ProductID,
			l.OnHand.Int64Scaled(), l.OnShelf.Int64Scaled(), l.Reserved.Int64Scaled(),
			l.LocationID, l.Version, l.CreatedAt, l.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return translateError(fmt.Errorf("insert ledger: %w", err))
	}
	return nil
}

func (r *LedgerRepo) GetByBatch(ctx context.Context, batchID id.ID) (*ledger.Ledger, error) {
	q := r.builder.Select(ledgerColumns...).
		From(ledgersTable).
		Where(squirrel.Eq{"batch_id": batchID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var l ledger.Ledger
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &l, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ledger", batchID.String())
		}
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	return &l, nil
}

func (r *LedgerRepo) GetByBatchForUpdate(ctx context.Context, batchID id.ID) (*ledger.Ledger, error) {
	sql := `
		SELECT id, batch_id, product_id, on_hand, on_shelf, reserved,
		       location_id, version, created_at, updated_at
		FROM ledgers
		WHERE batch_id = $1
		FOR UPDATE
	`

	var l ledger.Ledger
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &l, sql, batchID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ledger", batchID.String())
		}
		return nil, translateError(fmt.Errorf("get ledger for update: %w", err))
	}
	return &l, nil
}

// Update persists counters with an optimistic version check. The caller has
// already Touched the ledger, so the stored row must still carry the previous
// version.
func (r *LedgerRepo) Update(ctx context.Context, l *ledger.Ledger) error {
	q := r.builder.Update(ledgersTable).
		Set("on_hand", l.OnHand.Int64Scaled()).
		Set("on_shelf", l.OnShelf.Int64Scaled()).
		Set("reserved", l.Reserved.Int64Scaled()).
		Set("location_id", l.LocationID).
		Set("version", l.Version).
		Set("updated_at", l.UpdatedAt).
		Where(squirrel.Eq{
			"id":      l.ID,
			"version": l.Version - 1,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return translateError(fmt.Errorf("update ledger: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewOperationConflict("ledger", l.BatchID.String())
	}
	return nil
}

func (r *LedgerRepo) Delete(ctx context.Context, ledgerID id.ID) error {
	sql, args, err := r.builder.Delete(ledgersTable).
		Where(squirrel.Eq{"id": ledgerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return translateError(fmt.Errorf("delete ledger: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("ledger", ledgerID.String())
	}
	return nil
}

func (r *LedgerRepo) ListByProduct(ctx context.Context, productID id.ID) ([]ledger.Ledger, error) {
	q := r.builder.Select(ledgerColumns...).
		From(ledgersTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("batch_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ledgers []ledger.Ledger
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &ledgers, sql, args...); err != nil {
		return nil, fmt.Errorf("select ledgers: %w", err)
	}
	return ledgers, nil
}

func (r *LedgerRepo) SumByProduct(ctx context.Context, productID id.ID) (ledger.ProductSums, error) {
	sql := `
		SELECT COALESCE(SUM(on_hand), 0)  AS on_hand,
		       COALESCE(SUM(on_shelf), 0) AS on_shelf,
		       COALESCE(SUM(reserved), 0) AS reserved
		FROM ledgers
		WHERE product_id = $1
	`

	sums := ledger.ProductSums{ProductID: productID}
	var onHand, onShelf, reserved int64
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, productID).Scan(&onHand, &onShelf, &reserved)
	if err != nil {
		return sums, fmt.Errorf("sum ledgers: %w", err)
	}
	sums.OnHand = types.NewQuantityFromInt64Scaled(onHand)
	sums.OnShelf = types.NewQuantityFromInt64Scaled(onShelf)
	sums.Reserved = types.NewQuantityFromInt64Scaled(reserved)
	return sums, nil
}

func (r *LedgerRepo) ListProductIDs(ctx context.Context) ([]id.ID, error) {
	sql := `SELECT DISTINCT product_id FROM ledgers ORDER BY product_id`

	var ids []id.ID
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &ids, sql); err != nil {
		return nil, fmt.Errorf("select product ids: %w", err)
	}
	return ids, nil
}

func (r *LedgerRepo) TotalAtLocation(ctx context.Context, locationID id.ID, excludeBatch *id.ID) (types.Quantity, error) {
	q := r.builder.Select("COALESCE(SUM(on_hand + on_shelf), 0)").
		From(ledgersTable).
		Where(squirrel.Eq{"location_id": locationID})

	if excludeBatch != nil {
		q = q.Where(squirrel.NotEq{"batch_id": *excludeBatch})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var totalScaled int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&totalScaled); err != nil {
		return 0, fmt.Errorf("sum occupancy: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(totalScaled), nil
}
