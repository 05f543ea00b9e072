package store

import (
	"context"
	"fmt"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/money"
)

func (s *Store) CreateCommission(ctx context.Context, c *models.ReferralCommission) error {
	if c.ID == "" {
		c.ID = models.NewID()
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		if isDuplicate(err) {
			return models.ErrDuplicateEntry
		}
		return fmt.Errorf("create commission: %w", err)
	}
	return nil
}

func (s *Store) ListCommissionsByReferrer(ctx context.Context, referrerID string, limit int) ([]models.ReferralCommission, error) {
	var out []models.ReferralCommission
	err := s.db.WithContext(ctx).Where("referrer_id = ?", referrerID).
		Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// CommissionTotalsByReferred sums a referrer's commissions per referred user.
func (s *Store) CommissionTotalsByReferred(ctx context.Context, referrerID string) (map[string]money.Amount, error) {
	var rows []struct {
		ReferredUserID string
		Total          int64
	}
	err := s.db.WithContext(ctx).Model(&models.ReferralCommission{}).
		Select("referred_user_id, SUM(commission_amount) AS total").
		Where("referrer_id = ?", referrerID).
		Group("referred_user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]money.Amount, len(rows))
	for _, r := range rows {
		out[r.ReferredUserID] = money.Amount(r.Total)
	}
	return out, nil
}

func (s *Store) CommissionStats(ctx context.Context) (int64, money.Amount, error) {
	var row struct {
		Count int64
		Total int64
	}
	err := s.db.WithContext(ctx).Model(&models.ReferralCommission{}).
		Select("COUNT(*) AS count, COALESCE(SUM(commission_amount), 0) AS total").
		Scan(&row).Error
	return row.Count, money.Amount(row.Total), err
}

func (s *Store) TopReferrers(ctx context.Context, limit int) ([]models.ReferrerTotal, error) {
	var rows []struct {
		ReferrerID string
		Name       string
		Email      string
		Count      int64
		Total      int64
	}
	err := s.db.WithContext(ctx).Table("referral_commissions AS rc").
		Select("rc.referrer_id, u.name, u.email, COUNT(*) AS count, SUM(rc.commission_amount) AS total").
		Joins("JOIN users u ON u.id = rc.referrer_id").
		Group("rc.referrer_id, u.name, u.email").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.ReferrerTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.ReferrerTotal{
			ReferrerID: r.ReferrerID, Name: r.Name, Email: r.Email,
			Count: r.Count, Total: money.Amount(r.Total),
		})
	}
	return out, nil
}

// CreateWithdrawal relies on the unique pending_key to allow a single
// pending request per user.
func (s *Store) CreateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error {
	if w.ID == "" {
		w.ID = models.NewID()
	}
	if w.Status == models.WithdrawalPending {
		key := w.UserID
		w.PendingKey = &key
	}
	if err := s.db.WithContext(ctx).Create(w).Error; err != nil {
		if isDuplicate(err) {
			return models.ErrPendingWithdrawalExists
		}
		return fmt.Errorf("create withdrawal: %w", err)
	}
	return nil
}

func (s *Store) GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRequest, error) {
	var w models.WithdrawalRequest
	if err := s.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, notFound(err, models.ErrWithdrawalNotFound)
	}
	return &w, nil
}

func (s *Store) HasPendingWithdrawal(ctx context.Context, userID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.WithdrawalRequest{}).
		Where("user_id = ? AND status = ?", userID, models.WithdrawalPending).Count(&n).Error
	return n > 0, err
}

// TransitionWithdrawal applies ch only while the request is in status from.
func (s *Store) TransitionWithdrawal(ctx context.Context, id, from string, ch models.WithdrawalChange) error {
	db := s.db.WithContext(ctx)
	w, err := s.GetWithdrawal(ctx, id)
	if err != nil {
		return err
	}

	updates := map[string]any{"status": ch.Status, "pending_key": nil}
	if ch.Status == models.WithdrawalPending {
		updates["pending_key"] = w.UserID
	}
	if ch.AdminNotes != nil {
		updates["admin_notes"] = *ch.AdminNotes
	}
	if ch.ProcessedBy != nil {
		updates["processed_by"] = *ch.ProcessedBy
	}
	if ch.ProcessedAt != nil {
		updates["processed_at"] = *ch.ProcessedAt
	}

	res := db.Model(&models.WithdrawalRequest{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return models.ErrPendingWithdrawalExists
		}
		return fmt.Errorf("transition withdrawal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrWithdrawalProcessed
	}
	return nil
}

func (s *Store) ListWithdrawals(ctx context.Context, status string) ([]models.WithdrawalRequest, error) {
	var out []models.WithdrawalRequest
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&out).Error
	return out, err
}

func (s *Store) PendingWithdrawalStats(ctx context.Context) (int64, money.Amount, error) {
	var row struct {
		Count int64
		Total int64
	}
	err := s.db.WithContext(ctx).Model(&models.WithdrawalRequest{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", models.WithdrawalPending).
		Scan(&row).Error
	return row.Count, money.Amount(row.Total), err
}

func (s *Store) CreateReferralTransaction(ctx context.Context, t *models.ReferralTransaction) error {
	if t.ID == "" {
		t.ID = models.NewID()
	}
	return s.db.WithContext(ctx).Create(t).Error
}
