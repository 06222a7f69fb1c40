package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/location"
)

const locationsTable = "locations"

var locationColumns = []string{
	"id", "code", "name", "max_capacity", "is_active",
	"version", "created_at", "updated_at",
}

// LocationRepo implements location.Repository.
type LocationRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

var _ location.Repository = (*LocationRepo)(nil)

// NewLocationRepo creates a new location repository.
func NewLocationRepo(txManager *TxManager) *LocationRepo {
	return &LocationRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LocationRepo) Create(ctx context.Context, l *location.Location) error {
	q := r.builder.Insert(locationsTable).
		Columns(locationColumns...).
		Values(
			l.ID, l.Code, l.Name, l.MaxCapacity.Int64Scaled(), l.IsActive,
			l.Version, l.CreatedAt, l.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return translateError(fmt.Errorf("insert location: %w", err))
	}
	return nil
}

func (r *LocationRepo) GetByID(ctx context.Context, locationID id.ID) (*location.Location, error) {
	return r.getOne(ctx, squirrel.Eq{"id": locationID}, locationID.String())
}

func (r *LocationRepo) GetByCode(ctx context.Context, code string) (*location.Location, error) {
	return r.getOne(ctx, squirrel.Eq{"code": code}, code)
}

func (r *LocationRepo) GetByName(ctx context.Context, name string) (*location.Location, error) {
	return r.getOne(ctx, squirrel.Eq{"name": name}, name)
}

func (r *LocationRepo) getOne(ctx context.Context, cond squirrel.Eq, key string) (*location.Location, error) {
	q := r.builder.Select(locationColumns...).
		From(locationsTable).
		Where(cond).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var l location.Location
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &l, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("location", key)
		}
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &l, nil
}

func (r *LocationRepo) Update(ctx context.Context, l *location.Location) error {
	q := r.builder.Update(locationsTable).
		Set("name", l.Name).
		Set("max_capacity", l.MaxCapacity.Int64Scaled()).
		Set("is_active", l.IsActive).
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
		return translateError(fmt.Errorf("update location: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewOperationConflict("location", l.ID.String())
	}
	return nil
}

func (r *LocationRepo) Delete(ctx context.Context, locationID id.ID) error {
	sql, args, err := r.builder.Delete(locationsTable).
		Where(squirrel.Eq{"id": locationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return translateError(fmt.Errorf("delete location: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("location", locationID.String())
	}
	return nil
}

func (r *LocationRepo) List(ctx context.Context, activeOnly bool) ([]location.Location, error) {
	q := r.builder.Select(locationColumns...).From(locationsTable)

	if activeOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	q = q.OrderBy("code")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var locations []location.Location
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &locations, sql, args...); err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}
	return locations, nil
}
