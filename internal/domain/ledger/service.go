package ledger

import (
	"context"
	"fmt"
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/tx"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/events"
	"lotkeeper/internal/domain/location"
	"lotkeeper/internal/domain/movement"
	"lotkeeper/pkg/logger"
)

// AggregateRecomputer rederives a product's aggregate inventory from its
// ledgers. Implemented by the inventory service; invoked inside the same
// transaction as every ledger mutation.
type AggregateRecomputer interface {
	Recompute(ctx context.Context, productID id.ID) error
}

const (
	// maxAttempts bounds retries on concurrent-write conflicts. Business
	// rule failures are never retried.
	maxAttempts  = 3
	retryBackoff = 50 * time.Millisecond
)

// Service is the ledger operation API. Every mutation runs as one
// transaction: row-locked read, precondition check, counter delta, movement
// append, aggregate resync, event publication. Transient write conflicts are
// retried with backoff before surfacing as OperationConflict.
type Service struct {
	repo       Repository
	movements  movement.Repository
	locations  *location.Service
	aggregates AggregateRecomputer
	publisher  events.Publisher
	txManager  tx.Manager
}

// NewService creates a new ledger service.
func NewService(
	repo Repository,
	movements movement.Repository,
	locations *location.Service,
	aggregates AggregateRecomputer,
	publisher events.Publisher,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:       repo,
		movements:  movements,
		locations:  locations,
		aggregates: aggregates,
		publisher:  publisher,
		txManager:  txManager,
	}
}

// CreateForBatch creates the zeroed ledger that accompanies a new batch.
// Must run inside the batch creation transaction.
func (s *Service) CreateForBatch(ctx context.Context, batchID, productID id.ID) (*Ledger, error) {
	l := New(batchID, productID)
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}
	return l, nil
}

// GetByBatch retrieves the ledger for a batch.
func (s *Service) GetByBatch(ctx context.Context, batchID id.ID) (*Ledger, error) {
	return s.repo.GetByBatch(ctx, batchID)
}

// ListByProduct returns all ledgers for a product's batches.
func (s *Service) ListByProduct(ctx context.Context, productID id.ID) ([]Ledger, error) {
	return s.repo.ListByProduct(ctx, productID)
}

// Receive adds delivered stock to the warehouse counter.
func (s *Service) Receive(ctx context.Context, batchID id.ID, qty types.Quantity, ref movement.Reference, reason string) error {
	return s.execute(ctx, batchID, "receive", func(ctx context.Context, l *Ledger) ([]movement.Movement, error) {
		if err := l.Receive(qty); err != nil {
			return nil, err
		}
		return []movement.Movement{
			movement.New(ctx, l.ProductID, l.BatchID, movement.TypeIn, qty, ref, reason),
		}, nil
	})
}

// MoveToShelf moves stock from the warehouse to the storefront shelf.
func (s *Service) MoveToShelf(ctx context.Context, batchID id.ID, qty types.Quantity, reason string) error {
	return s.execute(ctx, batchID, "move_to_shelf", func(ctx context.Context, l *Ledger) ([]movement.Movement, error) {
		if err := l.MoveToShelf(qty); err != nil {
			return nil, err
		}
		if reason == "" {
			reason = "warehouse to shelf"
		}
		return []movement.Movement{
			movement.New(ctx, l.ProductID, l.BatchID, movement.TypeTransfer, qty, movement.Reference{}, reason),
		}, nil
	})
}

// MoveToWarehouse moves shelf stock back into the warehouse.
func (s *Service) MoveToWarehouse(ctx context.Context, batchID id.ID, qty types.Quantity, reason string) error {
	return s.execute(ctx, batchID, "move_to_warehouse", func(ctx context.Context, l *Ledger) ([]movement.Movement, error) {
		if err := l.MoveToWarehouse(qty); err != nil {
			return nil, err
		}
		if reason == "" {
			reason = "shelf to warehouse"
		}
		return []movement.Movement{
			movement.New(ctx, l.ProductID, l.BatchID, movement.TypeTransfer, qty, movement.Reference{}, reason),
		}, nil
	})
}

// Reserve commits stock to a sale, shelf first.
func (s *Service) Reserve(ctx context.Context, batchID id.ID, qty types.Quantity, ref movement.Reference, reason string) error {
	return s.execute(ctx, batchID, "reserve", func(ctx context.Context, l *Ledger) ([]movement.Movement, error) {
		if err := l.Reserve(qty); err != nil {
			return nil, err
		}
		return []movement.Movement{
			movement.New(ctx, l.ProductID, l.BatchID, movement.TypeReserve, qty.Neg(), ref, reason),
		}, nil
	})
}

// Release returns reserved stock after a cancellation.
func (s *Service) Release(ctx context.Context, batchID id.ID, qty types.Quantity, returnToShelf bool, ref movement.Reference, reason string) error {
	return s.execute(ctx, batchID, "release", func(ctx context.Context, l *Ledger) ([]movement.Movement, error) {
		if err := l.Release(qty, returnToShelf); err != nil {
			return nil, err
		}
		return []movement.Movement{
			movement.New(ctx, l.ProductID, l.BatchID, movement.TypeRelease, qty, ref, reason),
		}, nil
	})
}

// CompleteDelivery finalizes a reservation on payment success.
func (s *Service) CompleteDelivery(ctx context.Context, batchID id.ID, qty types.Quantity, ref movement.Reference, reason string) error {
	return s.execute(ctx, batchID, "complete_delivery", func(ctx context.Context, l *Ledger) ([]movement.Movement, error) {
		if err := l.CompleteDelivery(qty); err != nil {
			return nil, err
		}
		return []movement.Movement{
			movement.New(ctx, l.ProductID, l.BatchID, movement.TypeSale, qty.Neg(), ref, reason),
		}, nil
	})
}

// AdjustDirection selects the sign of a manual stock correction.
type AdjustDirection string

const (
	AdjustIn  AdjustDirection = "in"
	AdjustOut AdjustDirection = "out"
)

// Adjust applies a manual warehouse correction.
func (s *Service) Adjust(ctx context.Context, batchID id.ID, qty types.Quantity, dir AdjustDirection, ref movement.Reference, reason string) error {
	return s.execute(ctx, batchID, "adjust", func(ctx context.Context, l *Ledger) ([]movement.Movement, error) {
		delta := qty
		switch dir {
		case AdjustIn:
			if err := l.AdjustIn(qty); err != nil {
				return nil, err
			}
		case AdjustOut:
			if err := l.AdjustOut(qty); err != nil {
				return nil, err
			}
			delta = qty.Neg()
		default:
			return nil, apperror.NewValidation("adjust direction must be in or out").
				WithDetail("direction", string(dir))
		}
		return []movement.Movement{
			movement.New(ctx, l.ProductID, l.BatchID, movement.TypeAdjustment, delta, ref, reason),
		}, nil
	})
}

// ZeroOutForDisposal writes off all remaining physical stock of a batch.
// Runs inside the disposal transaction; forbidden while a reservation is
// pending because a paid-for sale may still need the stock.
func (s *Service) ZeroOutForDisposal(ctx context.Context, batchID id.ID, reason string) error {
	l, err := s.repo.GetByBatchForUpdate(ctx, batchID)
	if err != nil {
		return err
	}
	if l.Reserved.IsPositive() {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "batch has pending reservations").
			WithDetail("batch_id", batchID.String()).
			WithDetail("reserved", l.Reserved.Float64())
	}

	total := l.Total()
	if total.IsZero() {
		return nil
	}

	l.OnHand = 0
	l.OnShelf = 0
	l.Touch()
	if err := s.repo.Update(ctx, l); err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}

	m := movement.New(ctx, l.ProductID, l.BatchID, movement.TypeOut, total.Neg(), movement.Reference{}, reason)
	if err := s.movements.Create(ctx, m); err != nil {
		return fmt.Errorf("append movement: %w", err)
	}

	if err := s.aggregates.Recompute(ctx, l.ProductID); err != nil {
		return fmt.Errorf("recompute aggregate: %w", err)
	}

	return s.publish(ctx, l, "dispose", total.Neg())
}

// AssignLocation places a batch in a storage slot after the capacity guard
// approves. Not a quantity change, so no movement is recorded.
func (s *Service) AssignLocation(ctx context.Context, batchID, locationID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetByBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}

		exclude := batchID
		if err := s.locations.EnsureCapacity(ctx, locationID, l.Total(), &exclude); err != nil {
			return err
		}

		l.LocationID = &locationID
		l.Touch()
		if err := s.repo.Update(ctx, l); err != nil {
			return fmt.Errorf("update ledger: %w", err)
		}

		logger.Info(ctx, "batch assigned to location",
			"batch_id", batchID, "location_id", locationID, "quantity", l.Total())
		return nil
	})
}

// ClearLocation removes a batch from its storage slot.
func (s *Service) ClearLocation(ctx context.Context, batchID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetByBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		l.LocationID = nil
		l.Touch()
		if err := s.repo.Update(ctx, l); err != nil {
			return fmt.Errorf("update ledger: %w", err)
		}
		return nil
	})
}

// RestoreFromMovements replays a reference's outbound movements to restore
// the exact sold quantities on refund. Returns the total restored.
func (s *Service) RestoreFromMovements(ctx context.Context, ref movement.Reference, reason string) (types.Quantity, error) {
	moves, err := s.movements.ListByReference(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("list movements: %w", err)
	}

	// A restore records an inbound adjustment under the same reference, so a
	// repeated refund call finds it here instead of doubling the stock.
	for _, m := range moves {
		if m.Type == movement.TypeAdjustment && m.Quantity.IsPositive() {
			return 0, apperror.NewBusinessRule(apperror.CodeBusinessRule, "reference already restored").
				WithDetail("reference_kind", string(ref.Kind)).
				WithDetail("reference_id", ref.ID.String())
		}
	}

	restore := movement.OutboundByBatch(moves)
	if len(restore) == 0 {
		return 0, apperror.NewNotFound("outbound movement", string(ref.Kind)+"/"+ref.ID.String())
	}

	var total types.Quantity
	for batchID, qty := range restore {
		if err := s.Adjust(ctx, batchID, qty, AdjustIn, ref, reason); err != nil {
			return total, err
		}
		total += qty
	}

	logger.Info(ctx, "refund restored stock",
		"reference_kind", ref.Kind, "reference_id", ref.ID, "quantity", total)
	return total, nil
}

// execute wraps one ledger mutation in the transactional envelope described
// on Service, retrying only on concurrent-write conflicts.
func (s *Service) execute(ctx context.Context, batchID id.ID, operation string, fn func(ctx context.Context, l *Ledger) ([]movement.Movement, error)) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			l, err := s.repo.GetByBatchForUpdate(ctx, batchID)
			if err != nil {
				return err
			}

			totalBefore := l.Total()

			moves, err := fn(ctx, l)
			if err != nil {
				return err
			}

			// An operation that grows an assigned batch must re-pass the
			// capacity guard for its slot.
			if l.LocationID != nil && l.Total() > totalBefore {
				exclude := batchID
				if err := s.locations.EnsureCapacity(ctx, *l.LocationID, l.Total(), &exclude); err != nil {
					return err
				}
			}

			l.Touch()
			if err := s.repo.Update(ctx, l); err != nil {
				return fmt.Errorf("update ledger: %w", err)
			}

			var delta types.Quantity
			for i := range moves {
				if err := moves[i].Validate(); err != nil {
					return err
				}
				delta += moves[i].Quantity
			}
			if err := s.movements.Create(ctx, moves...); err != nil {
				return fmt.Errorf("append movements: %w", err)
			}

			if err := s.aggregates.Recompute(ctx, l.ProductID); err != nil {
				return fmt.Errorf("recompute aggregate: %w", err)
			}

			return s.publish(ctx, l, operation, delta)
		})

		if err == nil {
			logger.Debug(ctx, "ledger operation applied",
				"operation", operation, "batch_id", batchID, "attempt", attempt)
			return nil
		}
		if !apperror.IsOperationConflict(err) {
			return err
		}

		lastErr = err
		logger.Warn(ctx, "ledger operation conflicted, retrying",
			"operation", operation, "batch_id", batchID, "attempt", attempt)
		time.Sleep(time.Duration(attempt) * retryBackoff)
	}

	return lastErr
}

func (s *Service) publish(ctx context.Context, l *Ledger, operation string, delta types.Quantity) error {
	if s.publisher == nil {
		return nil
	}
	ev := events.InventoryChanged{
		ProductID:  l.ProductID,
		BatchID:    l.BatchID,
		Operation:  operation,
		Delta:      delta,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish inventory change: %w", err)
	}
	return nil
}
