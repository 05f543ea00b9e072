package memstore

import (
	"context"
	"sort"

	"ottsonly-backend/internal/models"
)

func (s *Store) CreateOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = models.NewID()
	}
	now := s.now()
	o.CreatedAt, o.UpdatedAt = now, now
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Store) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	return nil
}

func (s *Store) TransitionOrder(_ context.Context, id, from string, ch models.OrderChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return models.ErrOrderNotFound
	}
	if o.Status != from {
		return models.ErrInvalidOrderState
	}
	o.Status = ch.Status
	if ch.SubscriptionID != nil {
		v := *ch.SubscriptionID
		o.SubscriptionID = &v
	}
	if ch.RefundReason != nil {
		o.RefundReason = *ch.RefundReason
	}
	if ch.PaidAt != nil {
		v := *ch.PaidAt
		o.PaidAt = &v
	}
	if ch.RefundedAt != nil {
		v := *ch.RefundedAt
		o.RefundedAt = &v
	}
	o.UpdatedAt = s.now()
	return nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string, skip, limit int) ([]models.Order, error) {
	return s.listOrders(func(o *models.Order) bool { return o.UserID == userID }, skip, limit), nil
}

func (s *Store) ListOrders(_ context.Context, status string, skip, limit int) ([]models.Order, error) {
	return s.listOrders(func(o *models.Order) bool { return status == "" || o.Status == status }, skip, limit), nil
}

func (s *Store) listOrders(keep func(*models.Order) bool, skip, limit int) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, skip, limit)
}

func (s *Store) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == "" {
		sub.ID = models.NewID()
	}
	now := s.now()
	sub.CreatedAt, sub.UpdatedAt = now, now
	cp := *sub
	cp.Credential = nil
	s.subscriptions[sub.ID] = &cp
	return nil
}

func (s *Store) GetSubscription(_ context.Context, id string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, models.ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *Store) DeleteSubscription(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, id)
	return nil
}

func (s *Store) SetSubscriptionCredential(_ context.Context, id, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subscriptions[id]; ok {
		sub.CredentialID = &credentialID
		sub.UpdatedAt = s.now()
	}
	return nil
}

func (s *Store) CancelSubscriptionsByOrder(_ context.Context, orderID string) ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Subscription
	for _, sub := range s.subscriptions {
		if sub.OrderID == orderID && sub.Status == models.SubscriptionActive {
			out = append(out, *sub)
			sub.Status = models.SubscriptionCancelled
			sub.UpdatedAt = s.now()
		}
	}
	return out, nil
}

func (s *Store) ListSubscriptionsByUser(_ context.Context, userID string) ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
