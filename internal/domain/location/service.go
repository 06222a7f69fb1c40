package location

import (
	"context"
	"fmt"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/tx"
	"lotkeeper/internal/core/types"
	"lotkeeper/pkg/logger"
)

// Service provides business operations for storage locations, including the
// capacity guard consulted by every location assignment.
type Service struct {
	repo      Repository
	occupancy OccupancyReader
	txManager tx.Manager
}

// NewService creates a new location service.
func NewService(repo Repository, occupancy OccupancyReader, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		occupancy: occupancy,
		txManager: txManager,
	}
}

// Create registers a new location.
func (s *Service) Create(ctx context.Context, l *Location) error {
	if err := l.Validate(ctx); err != nil {
		return err
	}

	if existing, err := s.repo.GetByCode(ctx, l.Code); err == nil && existing != nil {
		return apperror.NewDuplicate("location", "code", l.Code)
	} else if err != nil && !apperror.IsNotFound(err) {
		return fmt.Errorf("check code uniqueness: %w", err)
	}

	if existing, err := s.repo.GetByName(ctx, l.Name); err == nil && existing != nil {
		return apperror.NewDuplicate("location", "name", l.Name)
	} else if err != nil && !apperror.IsNotFound(err) {
		return fmt.Errorf("check name uniqueness: %w", err)
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return fmt.Errorf("create location: %w", err)
	}

	logger.Info(ctx, "location created", "id", l.ID, "code", l.Code, "max_capacity", l.MaxCapacity)
	return nil
}

// GetByID retrieves a location.
func (s *Service) GetByID(ctx context.Context, locationID id.ID) (*Location, error) {
	return s.repo.GetByID(ctx, locationID)
}

// List retrieves locations.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Location, error) {
	return s.repo.List(ctx, activeOnly)
}

// EnsureCapacity rejects an assignment that would overfill the location.
// occupied is computed excluding the batch being (re)assigned so that moving
// a batch within its current slot does not double count.
func (s *Service) EnsureCapacity(ctx context.Context, locationID id.ID, requested types.Quantity, excludeBatch *id.ID) error {
	loc, err := s.repo.GetByID(ctx, locationID)
	if err != nil {
		return err
	}
	if !loc.IsActive {
		return apperror.NewLocationInactive(locationID.String())
	}

	occupied, err := s.occupancy.TotalAtLocation(ctx, locationID, excludeBatch)
	if err != nil {
		return fmt.Errorf("sum occupancy: %w", err)
	}

	if occupied+requested > loc.MaxCapacity {
		return apperror.NewCapacityExceeded(
			locationID.String(),
			requested.Float64(),
			occupied.Float64(),
			loc.MaxCapacity.Float64(),
		)
	}

	return nil
}

// Deactivate marks a location inactive. Fails while any ledger still holds
// stock there.
func (s *Service) Deactivate(ctx context.Context, locationID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		loc, err := s.repo.GetByID(ctx, locationID)
		if err != nil {
			return err
		}

		occupied, err := s.occupancy.TotalAtLocation(ctx, locationID, nil)
		if err != nil {
			return fmt.Errorf("sum occupancy: %w", err)
		}
		if occupied.IsPositive() {
			return apperror.NewLocationOccupied(locationID.String(), occupied.Float64())
		}

		loc.IsActive = false
		loc.Touch()
		if err := s.repo.Update(ctx, loc); err != nil {
			return fmt.Errorf("update location: %w", err)
		}

		logger.Info(ctx, "location deactivated", "id", locationID)
		return nil
	})
}

// Delete removes a location. Forbidden while occupied.
func (s *Service) Delete(ctx context.Context, locationID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetByID(ctx, locationID); err != nil {
			return err
		}

		occupied, err := s.occupancy.TotalAtLocation(ctx, locationID, nil)
		if err != nil {
			return fmt.Errorf("sum occupancy: %w", err)
		}
		if occupied.IsPositive() {
			return apperror.NewLocationOccupied(locationID.String(), occupied.Float64())
		}

		if err := s.repo.Delete(ctx, locationID); err != nil {
			return fmt.Errorf("delete location: %w", err)
		}

		logger.Info(ctx, "location deleted", "id", locationID)
		return nil
	})
}
