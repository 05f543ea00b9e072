package memstore

import (
	"context"
	"sort"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/money"
)

func (s *Store) CreateCommission(_ context.Context, c *models.ReferralCommission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.commissions {
		if existing.TransactionID == c.TransactionID {
			return models.ErrDuplicateEntry
		}
	}
	if c.ID == "" {
		c.ID = models.NewID()
	}
	c.CreatedAt = s.now()
	s.commissions = append(s.commissions, *c)
	return nil
}

func (s *Store) ListCommissionsByReferrer(_ context.Context, referrerID string, limit int) ([]models.ReferralCommission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReferralCommission
	for i := len(s.commissions) - 1; i >= 0; i-- {
		if s.commissions[i].ReferrerID == referrerID {
			out = append(out, s.commissions[i])
		}
	}
	return page(out, 0, limit), nil
}

func (s *Store) CommissionTotalsByReferred(_ context.Context, referrerID string) (map[string]money.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]money.Amount{}
	for _, c := range s.commissions {
		if c.ReferrerID == referrerID {
			out[c.ReferredUserID] += c.CommissionAmount
		}
	}
	return out, nil
}

func (s *Store) CommissionStats(context.Context) (int64, money.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total money.Amount
	for _, c := range s.commissions {
		total += c.CommissionAmount
	}
	return int64(len(s.commissions)), total, nil
}

func (s *Store) TopReferrers(_ context.Context, limit int) ([]models.ReferrerTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := map[string]*models.ReferrerTotal{}
	for _, c := range s.commissions {
		t, ok := byID[c.ReferrerID]
		if !ok {
			t = &models.ReferrerTotal{ReferrerID: c.ReferrerID}
			if u, ok := s.users[c.ReferrerID]; ok {
				t.Name, t.Email = u.Name, u.Email
			}
			byID[c.ReferrerID] = t
		}
		t.Count++
		t.Total += c.CommissionAmount
	}
	out := make([]models.ReferrerTotal, 0, len(byID))
	for _, t := range byID {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return page(out, 0, limit), nil
}

func (s *Store) CreateWithdrawal(_ context.Context, w *models.WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.Status == models.WithdrawalPending {
		for _, existing := range s.withdrawals {
			if existing.PendingKey != nil && *existing.PendingKey == w.UserID {
				return models.ErrPendingWithdrawalExists
			}
		}
		key := w.UserID
		w.PendingKey = &key
	}
	if w.ID == "" {
		w.ID = models.NewID()
	}
	w.CreatedAt = s.now()
	cp := *w
	s.withdrawals[w.ID] = &cp
	return nil
}

func (s *Store) GetWithdrawal(_ context.Context, id string) (*models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, models.ErrWithdrawalNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *Store) HasPendingWithdrawal(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.withdrawals {
		if w.UserID == userID && w.Status == models.WithdrawalPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) TransitionWithdrawal(_ context.Context, id, from string, ch models.WithdrawalChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return models.ErrWithdrawalNotFound
	}
	if w.Status != from {
		return models.ErrWithdrawalProcessed
	}
	if ch.Status == models.WithdrawalPending {
		for _, other := range s.withdrawals {
			if other.ID != id && other.PendingKey != nil && *other.PendingKey == w.UserID {
				return models.ErrPendingWithdrawalExists
			}
		}
		key := w.UserID
		w.PendingKey = &key
	} else {
		w.PendingKey = nil
	}
	w.Status = ch.Status
	if ch.AdminNotes != nil {
		w.AdminNotes = *ch.AdminNotes
	}
	if ch.ProcessedBy != nil {
		v := *ch.ProcessedBy
		w.ProcessedBy = &v
	}
	if ch.ProcessedAt != nil {
		v := *ch.ProcessedAt
		w.ProcessedAt = &v
	}
	return nil
}

func (s *Store) ListWithdrawals(_ context.Context, status string) ([]models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WithdrawalRequest
	for _, w := range s.withdrawals {
		if status == "" || w.Status == status {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) PendingWithdrawalStats(context.Context) (int64, money.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	var total money.Amount
	for _, w := range s.withdrawals {
		if w.Status == models.WithdrawalPending {
			n++
			total += w.Amount
		}
	}
	return n, total, nil
}

func (s *Store) CreateReferralTransaction(_ context.Context, t *models.ReferralTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = models.NewID()
	}
	t.CreatedAt = s.now()
	s.referralTxns = append(s.referralTxns, *t)
	return nil
}

// ReferralTransactions returns the payout log for one user.
func (s *Store) ReferralTransactions(userID string) []models.ReferralTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReferralTransaction
	for _, t := range s.referralTxns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}
