package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/batch"
)

const batchesTable = "batches"

var batchColumns = []string{
	"id", "product_id", "code",
	"manufacture_date", "expiry_date", "declared_quantity",
	"status", "promotion", "discount_percent", "disposal_reason",
	"version", "created_at", "updated_at",
}

// BatchRepo implements batch.Repository.
type BatchRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

var _ batch.Repository = (*BatchRepo)(nil)

// NewBatchRepo creates a new batch repository.
func NewBatchRepo(txManager *TxManager) *BatchRepo {
	return &BatchRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *BatchRepo) Create(ctx context.Context, b *batch.Batch) error {
	q := r.builder.Insert(batchesTable).
		Columns(batchColumns...).
		Values(
			b.ID, b.ProductID, b.Code,
			b.ManufactureDate, b.ExpiryDate, b.DeclaredQuantity.Int64Scaled(),
			b.Status, b.Promotion, b.DiscountPercent, b.DisposalReason,
			b.Version, b.CreatedAt, b.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return translateError(fmt.Errorf("insert batch: %w", err))
	}
	return nil
}

func (r *BatchRepo) GetByID(ctx context.Context, batchID id.ID) (*batch.Batch, error) {
	return r.getOne(ctx, squirrel.Eq{"id": batchID}, batchID.String())
}

func (r *BatchRepo) GetByCode(ctx context.Context, code string) (*batch.Batch, error) {
	return r.getOne(ctx, squirrel.Eq{"code": code}, code)
}

func (r *BatchRepo) getOne(ctx context.Context, cond squirrel.Eq, key string) (*batch.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(cond).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b batch.Batch
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("batch", key)
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &b, nil
}

func (r *BatchRepo) GetForUpdate(ctx context.Context, batchID id.ID) (*batch.Batch, error) {
	sql := `
		SELECT id, product_id, code, manufacture_date, expiry_date, declared_quantity,
		       status, promotion, discount_percent, disposal_reason,
		       version, created_at, updated_at
		FROM batches
		WHERE id = $1
		FOR UPDATE
	`

	var b batch.Batch
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &b, sql, batchID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("batch", batchID.String())
		}
		return nil, translateError(fmt.Errorf("get batch for update: %w", err))
	}
	return &b, nil
}

func (r *BatchRepo) Update(ctx context.Context, b *batch.Batch) error {
	q := r.builder.Update(batchesTable).
		Set("status", b.Status).
		Set("promotion", b.Promotion).
		Set("discount_percent", b.DiscountPercent).
		Set("disposal_reason", b.DisposalReason).
		Set("version", b.Version).
		Set("updated_at", b.UpdatedAt).
		Where(squirrel.Eq{
			"id":      b.ID,
			"version": b.Version - 1,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return translateError(fmt.Errorf("update batch: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewOperationConflict("batch", b.ID.String())
	}
	return nil
}

func (r *BatchRepo) List(ctx context.Context, filter batch.ListFilter) ([]batch.Batch, error) {
	q := r.builder.Select(batchColumns...).From(batchesTable)

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}

	q = q.OrderBy("created_at DESC")
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

	var batches []batch.Batch
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	return batches, nil
}

func (r *BatchRepo) ListExpiredActive(ctx context.Context, cutoff time.Time) ([]batch.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"status": batch.StatusActive}).
		Where(squirrel.LtOrEq{"expiry_date": cutoff}).
		OrderBy("expiry_date")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []batch.Batch
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select expired batches: %w", err)
	}
	return batches, nil
}

// ListSaleCandidates joins batches with their ledger shelf counts. Ordered by
// batch id so equal expiry dates resolve deterministically downstream.
func (r *BatchRepo) ListSaleCandidates(ctx context.Context, productID id.ID) ([]batch.SaleCandidate, error) {
	sql := `
		SELECT b.id AS batch_id, b.code, b.status, b.expiry_date,
		       b.promotion, b.discount_percent,
		       l.on_shelf
		FROM batches b
		JOIN ledgers l ON l.batch_id = b.id
		WHERE b.product_id = $1
		ORDER BY b.id
	`

	var candidates []batch.SaleCandidate
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &candidates, sql, productID); err != nil {
		return nil, fmt.Errorf("select sale candidates: %w", err)
	}
	return candidates, nil
}
