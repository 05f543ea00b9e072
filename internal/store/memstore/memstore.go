// Package memstore keeps every table in memory behind one mutex. It backs
// DB_DRIVER=memory and the unit tests, and matches the SQL store's
// conditional-update semantics.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/money"
)

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	users         map[string]*models.User
	products      map[string]*models.Product
	credentials   map[string]*models.Credential
	orders        map[string]*models.Order
	subscriptions map[string]*models.Subscription
	txns          []models.WalletTransaction
	txnKeys       map[string]struct{}
	payments      map[string]*models.PendingPayment // by external order id
	withdrawals   map[string]*models.WithdrawalRequest
	commissions   []models.ReferralCommission
	referralTxns  []models.ReferralTransaction
}

func New() *Store {
	return &Store{
		now:           func() time.Time { return time.Now().UTC() },
		users:         map[string]*models.User{},
		products:      map[string]*models.Product{},
		credentials:   map[string]*models.Credential{},
		orders:        map[string]*models.Order{},
		subscriptions: map[string]*models.Subscription{},
		txnKeys:       map[string]struct{}{},
		payments:      map[string]*models.PendingPayment{},
		withdrawals:   map[string]*models.WithdrawalRequest{},
	}
}

// SetClock replaces the time source; tests use it to age records.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Ping(context.Context) error { return nil }

// ===== Users =====

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return models.ErrEmailTaken
		}
		if u.ReferralCode != nil && existing.ReferralCode != nil && *existing.ReferralCode == *u.ReferralCode {
			return models.ErrDuplicateEntry
		}
	}
	if u.ID == "" {
		u.ID = models.NewID()
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *Store) GetUserByReferralCode(_ context.Context, code string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code = strings.ToUpper(code)
	for _, u := range s.users {
		if u.ReferralCode != nil && *u.ReferralCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrReferralCodeNotFound
}

func (s *Store) SetReferralCode(_ context.Context, userID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, models.ErrUserNotFound
	}
	if u.ReferralCode != nil {
		return false, nil
	}
	for _, other := range s.users {
		if other.ReferralCode != nil && *other.ReferralCode == code {
			return false, models.ErrDuplicateEntry
		}
	}
	u.ReferralCode = &code
	u.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) SetReferredBy(_ context.Context, userID, referrerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	if u.ReferredBy != nil {
		return models.ErrAlreadyReferred
	}
	u.ReferredBy = &referrerID
	u.ReferralAppliedAt = &at
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) ListReferredUsers(_ context.Context, referrerID string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if u.ReferredBy != nil && *u.ReferredBy == referrerID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountReferredUsers(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.users {
		if u.ReferredBy != nil {
			n++
		}
	}
	return n, nil
}

func (s *Store) AdjustBalances(_ context.Context, userID string, ch models.BalanceChange) (models.Balances, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.Balances{}, models.ErrUserNotFound
	}
	if !ch.Allows(u.Balances()) {
		return models.Balances{}, models.ErrConstraintViolated
	}
	after := ch.ApplyTo(u.Balances())

	if e := ch.Entry; e != nil {
		if e.IdempotencyKey != nil {
			if _, dup := s.txnKeys[*e.IdempotencyKey]; dup {
				return models.Balances{}, models.ErrDuplicateEntry
			}
			s.txnKeys[*e.IdempotencyKey] = struct{}{}
		}
		if e.ID == "" {
			e.ID = models.NewLedgerID()
		}
		e.UserID = userID
		e.BalanceAfter = after.Wallet
		e.CreatedAt = s.now()
		s.txns = append(s.txns, *e)
	}

	u.WalletBalance, u.WithdrawableBalance = after.Wallet, after.Withdrawable
	u.UpdatedAt = s.now()
	return after, nil
}

// ===== Ledger =====

func (s *Store) ListTransactions(_ context.Context, userID string, skip, limit int) ([]models.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WalletTransaction
	for i := len(s.txns) - 1; i >= 0; i-- {
		if s.txns[i].UserID == userID {
			out = append(out, s.txns[i])
		}
	}
	return page(out, skip, limit), nil
}

func (s *Store) SumTransactions(_ context.Context, userID string) (money.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total money.Amount
	for _, t := range s.txns {
		if t.UserID == userID {
			total += t.Delta()
		}
	}
	return total, nil
}

func (s *Store) HasEntry(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.txnKeys[key]
	return ok, nil
}

func page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return nil
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
