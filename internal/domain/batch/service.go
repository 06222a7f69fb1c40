package batch

import (
	"context"
	"fmt"
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/tx"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/ledger"
	"lotkeeper/internal/domain/movement"
	"lotkeeper/pkg/logger"
)

// CodeGenerator issues sequential human-readable batch codes when the caller
// does not supply one. Backed by a database sequence so codes stay unique
// across concurrent receivings.
type CodeGenerator interface {
	Next(ctx context.Context, scope string) (string, error)
}

// codeScope is the sequence namespace for generated batch codes.
const codeScope = "batch"

// Service manages the batch lifecycle. A batch and its ledger are created
// together; disposal writes off remaining ledger stock in the same
// transaction so catalog status and counters never diverge.
type Service struct {
	repo      Repository
	ledgers   *ledger.Service
	codes     CodeGenerator
	txManager tx.Manager
}

// NewService creates a new batch service.
func NewService(repo Repository, ledgers *ledger.Service, codes CodeGenerator, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		ledgers:   ledgers,
		codes:     codes,
		txManager: txManager,
	}
}

// CreateParams describes a new batch arriving from a supplier.
type CreateParams struct {
	ProductID id.ID

	// Code is optional; a sequential code is generated when empty.
	Code string

	ManufactureDate time.Time
	ExpiryDate      *time.Time

	// DeclaredQuantity from the supplier paperwork. When ReceiveStock is set
	// it is also booked into the warehouse counter.
	DeclaredQuantity types.Quantity

	// ReceiveStock books DeclaredQuantity as an inbound movement tied to
	// PurchaseOrderID. Registration-only callers leave it false and receive
	// stock separately.
	ReceiveStock    bool
	PurchaseOrderID *id.ID
}

// Create registers a batch with its zeroed ledger, optionally receiving the
// declared quantity in the same transaction.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Batch, error) {
	if p.ReceiveStock && !p.DeclaredQuantity.IsPositive() {
		return nil, apperror.NewNegativeOrZeroQuantity("receive", p.DeclaredQuantity.Float64())
	}

	var b *Batch
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		code := p.Code
		if code == "" {
			generated, err := s.codes.Next(ctx, codeScope)
			if err != nil {
				return fmt.Errorf("generate batch code: %w", err)
			}
			code = generated
		} else if existing, err := s.repo.GetByCode(ctx, code); err == nil && existing != nil {
			return apperror.NewDuplicate("batch", "code", code)
		} else if err != nil && !apperror.IsNotFound(err) {
			return err
		}

		b = New(p.ProductID, code, p.ManufactureDate, p.ExpiryDate, p.DeclaredQuantity)
		if err := b.Validate(ctx); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, b); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		if _, err := s.ledgers.CreateForBatch(ctx, b.ID, b.ProductID); err != nil {
			return err
		}

		if p.ReceiveStock {
			ref := movement.Reference{}
			if p.PurchaseOrderID != nil {
				ref = movement.Reference{Kind: movement.RefPurchaseOrder, ID: *p.PurchaseOrderID}
			}
			if err := s.ledgers.Receive(ctx, b.ID, p.DeclaredQuantity, ref, "supplier delivery"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "batch created",
		"batch_id", b.ID, "product_id", b.ProductID, "code", b.Code, "received", p.ReceiveStock)
	return b, nil
}

// GetByID retrieves a batch.
func (s *Service) GetByID(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.repo.GetByID(ctx, batchID)
}

// GetByCode retrieves a batch by its human-readable code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Batch, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns batches matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Batch, error) {
	return s.repo.List(ctx, filter)
}

// SetDiscount attaches a discount promotion to a batch. Allowed on active and
// expired batches; a disposed batch has nothing left to sell.
func (s *Service) SetDiscount(ctx context.Context, batchID id.ID, pct types.Percent) (*Batch, error) {
	return s.mutate(ctx, batchID, func(b *Batch) error {
		if b.Status == StatusDisposed {
			return apperror.NewInvalidTransition(b.ID.String(), string(b.Status), "discount")
		}
		if err := b.SetDiscount(pct); err != nil {
			return err
		}
		b.touch()
		return nil
	})
}

// ClearPromotion removes a batch's promotion.
func (s *Service) ClearPromotion(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.mutate(ctx, batchID, func(b *Batch) error {
		b.ClearPromotion()
		b.touch()
		return nil
	})
}

// MarkExpired transitions a batch to expired. Stock stays on the books until
// disposal; expired batches simply stop qualifying for sale.
func (s *Service) MarkExpired(ctx context.Context, batchID id.ID) (*Batch, error) {
	b, err := s.mutate(ctx, batchID, func(b *Batch) error {
		return b.MarkExpired()
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "batch expired", "batch_id", b.ID, "code", b.Code)
	return b, nil
}

// Dispose permanently retires a batch and writes off its remaining stock in
// one transaction. Fails while reservations are pending.
func (s *Service) Dispose(ctx context.Context, batchID id.ID, reason string) (*Batch, error) {
	var b *Batch
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.repo.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if err := b.Dispose(reason); err != nil {
			return err
		}

		writeOff := reason
		if writeOff == "" {
			writeOff = "batch disposal"
		}
		if err := s.ledgers.ZeroOutForDisposal(ctx, batchID, writeOff); err != nil {
			return err
		}

		return s.repo.Update(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "batch disposed", "batch_id", b.ID, "code", b.Code, "reason", reason)
	return b, nil
}

// ExpireSweep marks every active batch whose expiry date has passed. Runs on
// a schedule; one bad batch does not stall the rest. Returns the number
// expired and the first error encountered.
func (s *Service) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListExpiredActive(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired batches: %w", err)
	}

	expired := 0
	var firstErr error
	for i := range due {
		if _, err := s.MarkExpired(ctx, due[i].ID); err != nil {
			// Already transitioned by a concurrent sweep or operator.
			if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeInvalidTransition {
				continue
			}
			logger.Error(ctx, "expire sweep failed for batch",
				"batch_id", due[i].ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		expired++
	}

	if expired > 0 || firstErr != nil {
		logger.Info(ctx, "expire sweep finished", "due", len(due), "expired", expired)
	}
	return expired, firstErr
}

// mutate applies fn to a row-locked batch and persists the result.
func (s *Service) mutate(ctx context.Context, batchID id.ID, fn func(b *Batch) error) (*Batch, error) {
	var b *Batch
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.repo.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
		return s.repo.Update(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
