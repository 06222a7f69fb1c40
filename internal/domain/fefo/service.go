package fefo

import (
	"context"
	"fmt"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/batch"
)

// CandidateSource lists a product's sale candidates in batch-id order.
// Satisfied by the batch repository.
type CandidateSource interface {
	ListSaleCandidates(ctx context.Context, productID id.ID) ([]batch.SaleCandidate, error)
}

// Service answers "which batch does this sale draw from" for the storefront.
type Service struct {
	source CandidateSource
}

// NewService creates a new FEFO selection service.
func NewService(source CandidateSource) *Service {
	return &Service{source: source}
}

// SelectForProduct picks the sale batch for a product. The boolean is false
// when the product has no sellable shelf stock.
func (s *Service) SelectForProduct(ctx context.Context, productID id.ID) (Selection, bool, error) {
	candidates, err := s.source.ListSaleCandidates(ctx, productID)
	if err != nil {
		return Selection{}, false, fmt.Errorf("list sale candidates: %w", err)
	}
	sel, ok := SelectSaleBatch(candidates)
	return sel, ok, nil
}
