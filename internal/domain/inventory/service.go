package inventory

import (
	"context"
	"fmt"
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/tx"
	"lotkeeper/internal/core/types"
	"lotkeeper/pkg/logger"
)

// Service provides aggregate inventory operations: live recomputation after
// ledger mutations and the periodic reconciliation backstop.
type Service struct {
	repo      Repository
	ledgers   LedgerSummer
	txManager tx.Manager
}

// NewService creates a new inventory service.
func NewService(repo Repository, ledgers LedgerSummer, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		ledgers:   ledgers,
		txManager: txManager,
	}
}

// Recompute rederives one product's aggregate from its ledgers and persists
// it. Idempotent; safe inside a ledger mutation transaction or standalone.
// Satisfies ledger.AggregateRecomputer.
func (s *Service) Recompute(ctx context.Context, productID id.ID) error {
	sums, err := s.ledgers.SumByProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("sum ledgers: %w", err)
	}

	agg, err := s.repo.GetByProduct(ctx, productID)
	if err != nil {
		if !apperror.IsNotFound(err) {
			return err
		}
		agg = New(productID)
	}

	agg.QuantityOnHand = sums.OnHand
	agg.QuantityOnShelf = sums.OnShelf
	agg.QuantityReserved = sums.Reserved
	agg.Version++
	agg.UpdatedAt = time.Now().UTC()

	if err := s.repo.Upsert(ctx, agg); err != nil {
		return fmt.Errorf("upsert aggregate: %w", err)
	}
	return nil
}

// GetByProduct retrieves the aggregate for a product. A product with no
// ledgers yet reads as an empty aggregate.
func (s *Service) GetByProduct(ctx context.Context, productID id.ID) (*Aggregate, error) {
	agg, err := s.repo.GetByProduct(ctx, productID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return New(productID), nil
		}
		return nil, err
	}
	return agg, nil
}

// SetReorderPoint updates the replenishment threshold.
func (s *Service) SetReorderPoint(ctx context.Context, productID id.ID, point types.Quantity) error {
	if point.IsNegative() {
		return apperror.NewValidation("reorder_point must not be negative").
			WithDetail("value", point.Float64())
	}
	if err := s.repo.SetReorderPoint(ctx, productID, point); err != nil {
		return fmt.Errorf("set reorder point: %w", err)
	}
	logger.Info(ctx, "reorder point updated", "product_id", productID, "reorder_point", point)
	return nil
}

// ListNeedingReorder returns products whose available stock has fallen to
// their reorder point. The replenishment report reads this.
func (s *Service) ListNeedingReorder(ctx context.Context) ([]Aggregate, error) {
	return s.repo.ListNeedingReorder(ctx)
}

// List returns aggregates for browsing.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Aggregate, error) {
	return s.repo.List(ctx, limit, offset)
}

// ReconcileAll recomputes every product's aggregate from its ledgers. The
// job only overwrites aggregates, never ledgers, so it is idempotent and
// safe to run concurrently with live traffic. Each product reconciles in its
// own transaction; one failure does not stall the rest.
func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	productIDs, err := s.ledgers.ListProductIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}

	reconciled := 0
	var firstErr error
	for _, productID := range productIDs {
		pid := productID
		err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			return s.Recompute(ctx, pid)
		})
		if err != nil {
			logger.Error(ctx, "reconcile failed for product", "product_id", pid, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		reconciled++
	}

	logger.Info(ctx, "aggregate reconciliation finished",
		"products", len(productIDs), "reconciled", reconciled)
	return reconciled, firstErr
}
