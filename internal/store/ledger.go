package store

import (
	"context"
	"fmt"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/money"
)

func (s *Store) ListTransactions(ctx context.Context, userID string, skip, limit int) ([]models.WalletTransaction, error) {
	var txns []models.WalletTransaction
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("id DESC").Offset(skip).Limit(limit).Find(&txns).Error
	return txns, err
}

// SumTransactions returns credits minus debits over the user's whole log.
func (s *Store) SumTransactions(ctx context.Context, userID string) (money.Amount, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.WalletTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN -amount ELSE amount END), 0)", models.TxnDebit).
		Where("user_id = ?", userID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return money.Amount(total), nil
}

func (s *Store) HasEntry(ctx context.Context, idempotencyKey string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("idempotency_key = ?", idempotencyKey).Count(&n).Error
	return n > 0, err
}
