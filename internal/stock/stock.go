// Package stock reserves and releases product inventory through the
// store's conditional stock update.
package stock

import (
	"context"
	"errors"
	"fmt"

	"ottsonly-backend/internal/metrics"
	"ottsonly-backend/internal/models"
)

type Store interface {
	AdjustStock(ctx context.Context, productID string, delta int64) (int64, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Reserve takes qty units. It fails with ErrOutOfStock when fewer remain.
func (s *Service) Reserve(ctx context.Context, productID string, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("reserve %d units: %w", qty, models.ErrInvalidAmount)
	}
	left, err := s.store.AdjustStock(ctx, productID, -qty)
	metrics.StockOperations.WithLabelValues("reserve", metrics.Result(err)).Inc()
	if errors.Is(err, models.ErrConstraintViolated) {
		return 0, models.ErrOutOfStock
	}
	return left, err
}

// Release gives back units taken by a successful Reserve. It must be called
// at most once per reservation.
func (s *Service) Release(ctx context.Context, productID string, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("release %d units: %w", qty, models.ErrInvalidAmount)
	}
	left, err := s.store.AdjustStock(ctx, productID, qty)
	metrics.StockOperations.WithLabelValues("release", metrics.Result(err)).Inc()
	return left, err
}

// Restock adds inventory from the admin panel.
func (s *Service) Restock(ctx context.Context, productID string, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("restock %d units: %w", qty, models.ErrInvalidAmount)
	}
	left, err := s.store.AdjustStock(ctx, productID, qty)
	metrics.StockOperations.WithLabelValues("restock", metrics.Result(err)).Inc()
	return left, err
}
