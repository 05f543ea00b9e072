package store

import (
	"context"
	"fmt"

	"ottsonly-backend/internal/models"

	"gorm.io/gorm"
)

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = models.NewID()
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, models.ErrProductNotFound)
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	var products []models.Product
	q := s.db.WithContext(ctx).Order("platform_name, price")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&products).Error
	return products, err
}

// UpdateProduct writes descriptive fields only; stock is never part of it.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", p.ID).
		Select("plan_name", "description", "price", "duration_days", "is_active", "updated_at").
		Updates(map[string]any{
			"plan_name":     p.PlanName,
			"description":   p.Description,
			"price":         p.Price,
			"duration_days": p.DurationDays,
			"is_active":     p.IsActive,
			"updated_at":    s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrProductNotFound
	}
	return nil
}

// AdjustStock adds delta to stock only if the result stays non-negative and
// returns the new stock.
func (s *Store) AdjustStock(ctx context.Context, productID string, delta int64) (int64, error) {
	var stock int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ? AND stock + ? >= 0`,
			delta, s.now(), productID, delta,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			ok, err := exists(tx, &models.Product{}, productID)
			if err != nil {
				return err
			}
			if !ok {
				return models.ErrProductNotFound
			}
			return models.ErrConstraintViolated
		}
		return tx.Model(&models.Product{}).Select("stock").Where("id = ?", productID).Scan(&stock).Error
	})
	return stock, err
}

func (s *Store) CreateCredential(ctx context.Context, c *models.Credential) error {
	if c.ID == "" {
		c.ID = models.NewID()
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// ClaimCredential hands one unused active credential of the platform to a
// subscription. Candidates are claimed with a used_by IS NULL guard so two
// buyers never get the same login.
func (s *Store) ClaimCredential(ctx context.Context, platform, userID, subscriptionID string) (*models.Credential, error) {
	db := s.db.WithContext(ctx)
	for attempt := 0; attempt < 3; attempt++ {
		var candidates []models.Credential
		err := db.Where("platform = ? AND is_active = ? AND used_by IS NULL", platform, true).
			Order("created_at").Limit(5).Find(&candidates).Error
		if err != nil {
			return nil, fmt.Errorf("claim credential: %w", err)
		}
		if len(candidates) == 0 {
			return nil, models.ErrCredentialsUnavailable
		}

		for _, c := range candidates {
			now := s.now()
			res := db.Model(&models.Credential{}).
				Where("id = ? AND used_by IS NULL", c.ID).
				Updates(map[string]any{"used_by": userID, "subscription_id": subscriptionID, "used_at": now, "updated_at": now})
			if res.Error != nil {
				return nil, fmt.Errorf("claim credential: %w", res.Error)
			}
			if res.RowsAffected == 1 {
				c.UsedBy, c.SubscriptionID, c.UsedAt = &userID, &subscriptionID, &now
				return &c, nil
			}
		}
	}
	return nil, models.ErrCredentialsUnavailable
}

func (s *Store) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	var c models.Credential
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err, models.ErrNotFound)
	}
	return &c, nil
}

// ReleaseCredential returns a credential to the pool.
func (s *Store) ReleaseCredential(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&models.Credential{}).Where("id = ?", id).
		Updates(map[string]any{"used_by": nil, "subscription_id": nil, "used_at": nil, "updated_at": s.now()}).Error
}
