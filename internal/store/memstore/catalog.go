package memstore

import (
	"context"
	"sort"

	"ottsonly-backend/internal/models"
)

func (s *Store) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = models.NewID()
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProducts(_ context.Context, activeOnly bool) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Product
	for _, p := range s.products {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlatformName != out[j].PlatformName {
			return out[i].PlatformName < out[j].PlatformName
		}
		return out[i].Price < out[j].Price
	})
	return out, nil
}

func (s *Store) UpdateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.products[p.ID]
	if !ok {
		return models.ErrProductNotFound
	}
	cur.PlanName = p.PlanName
	cur.Description = p.Description
	cur.Price = p.Price
	cur.DurationDays = p.DurationDays
	cur.IsActive = p.IsActive
	cur.UpdatedAt = s.now()
	return nil
}

func (s *Store) AdjustStock(_ context.Context, productID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return 0, models.ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return 0, models.ErrConstraintViolated
	}
	p.Stock += delta
	p.UpdatedAt = s.now()
	return p.Stock, nil
}

// DeleteProduct exists so tests can exercise a product vanishing mid-flow.
func (s *Store) DeleteProduct(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

func (s *Store) CreateCredential(_ context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = models.NewID()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	s.credentials[c.ID] = &cp
	return nil
}

func (s *Store) ClaimCredential(_ context.Context, platform, userID, subscriptionID string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pick *models.Credential
	for _, c := range s.credentials {
		if c.Platform != platform || !c.IsActive || c.UsedBy != nil {
			continue
		}
		if pick == nil || c.CreatedAt.Before(pick.CreatedAt) {
			pick = c
		}
	}
	if pick == nil {
		return nil, models.ErrCredentialsUnavailable
	}
	now := s.now()
	pick.UsedBy, pick.SubscriptionID, pick.UsedAt, pick.UpdatedAt = &userID, &subscriptionID, &now, now
	cp := *pick
	return &cp, nil
}

func (s *Store) GetCredential(_ context.Context, id string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ReleaseCredential(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.credentials[id]; ok {
		c.UsedBy, c.SubscriptionID, c.UsedAt = nil, nil, nil
		c.UpdatedAt = s.now()
	}
	return nil
}
