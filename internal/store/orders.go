package store

import (
	"context"
	"fmt"

	"ottsonly-backend/internal/models"
)

func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = models.NewID()
	}
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := s.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, notFound(err, models.ErrOrderNotFound)
	}
	return &o, nil
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id).Error
}

// TransitionOrder applies ch only while the order is in status from.
func (s *Store) TransitionOrder(ctx context.Context, id, from string, ch models.OrderChange) error {
	updates := map[string]any{"status": ch.Status, "updated_at": s.now()}
	if ch.SubscriptionID != nil {
		updates["subscription_id"] = *ch.SubscriptionID
	}
	if ch.RefundReason != nil {
		updates["refund_reason"] = *ch.RefundReason
	}
	if ch.PaidAt != nil {
		updates["paid_at"] = *ch.PaidAt
	}
	if ch.RefundedAt != nil {
		updates["refunded_at"] = *ch.RefundedAt
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("transition order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		ok, err := exists(s.db.WithContext(ctx), &models.Order{}, id)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrOrderNotFound
		}
		return models.ErrInvalidOrderState
	}
	return nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string, skip, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Offset(skip).Limit(limit).Find(&orders).Error
	return orders, err
}

// ListOrders lists all orders, optionally filtered by status.
func (s *Store) ListOrders(ctx context.Context, status string, skip, limit int) ([]models.Order, error) {
	var orders []models.Order
	q := s.db.WithContext(ctx).Order("created_at DESC").Offset(skip).Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&orders).Error
	return orders, err
}

func (s *Store) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = models.NewID()
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, notFound(err, models.ErrSubscriptionNotFound)
	}
	return &sub, nil
}

func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.Subscription{}, "id = ?", id).Error
}

func (s *Store) SetSubscriptionCredential(ctx context.Context, id, credentialID string) error {
	return s.db.WithContext(ctx).Model(&models.Subscription{}).Where("id = ?", id).
		Updates(map[string]any{"credential_id": credentialID, "updated_at": s.now()}).Error
}

// CancelSubscriptionsByOrder marks every active subscription of the order
// cancelled and returns the ones it changed.
func (s *Store) CancelSubscriptionsByOrder(ctx context.Context, orderID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	db := s.db.WithContext(ctx)
	if err := db.Where("order_id = ? AND status = ?", orderID, models.SubscriptionActive).Find(&subs).Error; err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	err := db.Model(&models.Subscription{}).
		Where("order_id = ? AND status = ?", orderID, models.SubscriptionActive).
		Updates(map[string]any{"status": models.SubscriptionCancelled, "updated_at": s.now()}).Error
	return subs, err
}

func (s *Store) ListSubscriptionsByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}
