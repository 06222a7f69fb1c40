// Package location provides the storage location registry.
// Locations are named physical slots with a hard unit capacity; the capacity
// guard keeps the sum of ledger stock assigned to a slot within that limit.
package location

import (
	"context"
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// Location represents one physical storage slot.
type Location struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	// MaxCapacity is the hard unit limit for stock assigned to this slot.
	MaxCapacity types.Quantity `db:"max_capacity" json:"maxCapacity"`

	IsActive bool `db:"is_active" json:"isActive"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates an active location with generated ID.
func New(code, name string, maxCapacity types.Quantity) *Location {
	now := time.Now().UTC()
	return &Location{
		ID:          id.New(),
		Code:        code,
		Name:        name,
		MaxCapacity: maxCapacity,
		IsActive:    true,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks location invariants.
func (l *Location) Validate(ctx context.Context) error {
	if l.Code == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	if l.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if !l.MaxCapacity.IsPositive() {
		return apperror.NewValidation("max_capacity must be positive").
			WithDetail("field", "max_capacity")
	}
	return nil
}

// Touch increments version and updates the timestamp.
func (l *Location) Touch() {
	l.Version++
	l.UpdatedAt = time.Now().UTC()
}
