package store

import (
	"context"
	"fmt"
	"time"

	"ottsonly-backend/internal/models"

	"gorm.io/gorm"
)

func (s *Store) CreatePendingPayment(ctx context.Context, p *models.PendingPayment) error {
	if p.ID == "" {
		p.ID = models.NewID()
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		if isDuplicate(err) {
			return models.ErrDuplicateEntry
		}
		return fmt.Errorf("create pending payment: %w", err)
	}
	return nil
}

func (s *Store) GetPendingPayment(ctx context.Context, externalOrderID string) (*models.PendingPayment, error) {
	var p models.PendingPayment
	if err := s.db.WithContext(ctx).First(&p, "external_order_id = ?", externalOrderID).Error; err != nil {
		return nil, notFound(err, models.ErrPaymentNotFound)
	}
	return &p, nil
}

// AcquireProcessing moves the user's payment from pending to processing and
// returns the record as it was before. Anything else is ErrAlreadyProcessed.
func (s *Store) AcquireProcessing(ctx context.Context, externalOrderID, userID, paymentID, signature string, at time.Time) (*models.PendingPayment, error) {
	var before models.PendingPayment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PendingPayment{}).
			Where("external_order_id = ? AND user_id = ? AND status = ?", externalOrderID, userID, models.PaymentPending).
			Updates(map[string]any{
				"status":                models.PaymentProcessing,
				"external_payment_id":   paymentID,
				"signature":             signature,
				"processing_started_at": at,
				"updated_at":            at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrAlreadyProcessed
		}
		if err := tx.First(&before, "external_order_id = ?", externalOrderID).Error; err != nil {
			return err
		}
		before.Status = models.PaymentPending
		before.ExternalPaymentID = nil
		before.ProcessingStartedAt = nil
		before.Signature = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &before, nil
}

func (s *Store) CompleteProcessing(ctx context.Context, externalOrderID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.PendingPayment{}).
		Where("external_order_id = ? AND status = ?", externalOrderID, models.PaymentProcessing).
		Updates(map[string]any{"status": models.PaymentCompleted, "completed_at": at, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("complete payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrAlreadyProcessed
	}
	return nil
}

func (s *Store) ListStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]models.PendingPayment, error) {
	var payments []models.PendingPayment
	err := s.db.WithContext(ctx).
		Where("status = ? AND processing_started_at < ?", models.PaymentProcessing, startedBefore).
		Order("processing_started_at").Limit(limit).Find(&payments).Error
	return payments, err
}

// ResetProcessing returns a processing payment to pending, provided nobody
// touched it since startedAt.
func (s *Store) ResetProcessing(ctx context.Context, externalOrderID string, startedAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.PendingPayment{}).
		Where("external_order_id = ? AND status = ? AND processing_started_at = ?", externalOrderID, models.PaymentProcessing, startedAt).
		Updates(map[string]any{
			"status":                models.PaymentPending,
			"external_payment_id":   nil,
			"signature":             "",
			"processing_started_at": nil,
			"updated_at":            s.now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("reset payment: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
