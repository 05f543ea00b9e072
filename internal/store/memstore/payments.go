package memstore

import (
	"context"
	"sort"
	"time"

	"ottsonly-backend/internal/models"
)

func (s *Store) CreatePendingPayment(_ context.Context, p *models.PendingPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.payments[p.ExternalOrderID]; dup {
		return models.ErrDuplicateEntry
	}
	if p.ID == "" {
		p.ID = models.NewID()
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	s.payments[p.ExternalOrderID] = &cp
	return nil
}

func (s *Store) GetPendingPayment(_ context.Context, externalOrderID string) (*models.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[externalOrderID]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) AcquireProcessing(_ context.Context, externalOrderID, userID, paymentID, signature string, at time.Time) (*models.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[externalOrderID]
	if !ok || p.UserID != userID || p.Status != models.PaymentPending {
		return nil, models.ErrAlreadyProcessed
	}
	before := *p
	at = at.Truncate(time.Millisecond)
	p.Status = models.PaymentProcessing
	p.ExternalPaymentID = &paymentID
	p.Signature = signature
	p.ProcessingStartedAt = &at
	p.UpdatedAt = at
	return &before, nil
}

func (s *Store) CompleteProcessing(_ context.Context, externalOrderID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[externalOrderID]
	if !ok || p.Status != models.PaymentProcessing {
		return models.ErrAlreadyProcessed
	}
	p.Status = models.PaymentCompleted
	p.CompletedAt = &at
	p.UpdatedAt = at
	return nil
}

func (s *Store) ListStaleProcessing(_ context.Context, startedBefore time.Time, limit int) ([]models.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PendingPayment
	for _, p := range s.payments {
		if p.Status == models.PaymentProcessing && p.ProcessingStartedAt != nil && p.ProcessingStartedAt.Before(startedBefore) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProcessingStartedAt.Before(*out[j].ProcessingStartedAt) })
	return page(out, 0, limit), nil
}

func (s *Store) ResetProcessing(_ context.Context, externalOrderID string, startedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[externalOrderID]
	if !ok || p.Status != models.PaymentProcessing || p.ProcessingStartedAt == nil || !p.ProcessingStartedAt.Equal(startedAt) {
		return false, nil
	}
	p.Status = models.PaymentPending
	p.ExternalPaymentID = nil
	p.Signature = ""
	p.ProcessingStartedAt = nil
	p.UpdatedAt = s.now()
	return true, nil
}
