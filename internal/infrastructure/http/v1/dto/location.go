package dto

import (
	"time"

	"lotkeeper/internal/domain/location"
)

// --- Request DTOs ---

// CreateLocationRequest registers a storage slot.
type CreateLocationRequest struct {
	Code        string  `json:"code" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	MaxCapacity float64 `json:"maxCapacity" binding:"required,gt=0"`
}

// --- Response DTOs ---

// LocationResponse represents a storage location in API responses.
type LocationResponse struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	MaxCapacity float64 `json:"maxCapacity"`
	IsActive    bool    `json:"isActive"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromLocation converts entity to response DTO.
func FromLocation(l *location.Location) LocationResponse {
	return LocationResponse{
		ID:          l.ID.String(),
		Code:        l.Code,
		Name:        l.Name,
		MaxCapacity: l.MaxCapacity.Float64(),
		IsActive:    l.IsActive,
		Version:     l.Version,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

// FromLocations converts a location slice.
func FromLocations(locations []location.Location) []LocationResponse {
	out := make([]LocationResponse, 0, len(locations))
	for i := range locations {
		out = append(out, FromLocation(&locations[i]))
	}
	return out
}
