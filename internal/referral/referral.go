// Package referral pays commissions to referrers when the users they brought
// in top up, and handles payouts of those earnings.
package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"ottsonly-backend/internal/ledger"
	"ottsonly-backend/internal/metrics"
	"ottsonly-backend/internal/models"
	"ottsonly-backend/internal/notify"
	"ottsonly-backend/internal/saga"
	"ottsonly-backend/pkg/logger"
	"ottsonly-backend/pkg/money"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	codePrefix   = "REF"
	codeLength   = 8
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeAttempts = 10

	recentCommissions = 10
	topReferrers      = 10

	payoutMethod = "upi"
)

type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	SetReferralCode(ctx context.Context, userID, code string) (bool, error)
	SetReferredBy(ctx context.Context, userID, referrerID string, at time.Time) error
	ListReferredUsers(ctx context.Context, referrerID string) ([]models.User, error)
	CountReferredUsers(ctx context.Context) (int64, error)

	CreateCommission(ctx context.Context, c *models.ReferralCommission) error
	ListCommissionsByReferrer(ctx context.Context, referrerID string, limit int) ([]models.ReferralCommission, error)
	CommissionTotalsByReferred(ctx context.Context, referrerID string) (map[string]money.Amount, error)
	CommissionStats(ctx context.Context) (int64, money.Amount, error)
	TopReferrers(ctx context.Context, limit int) ([]models.ReferrerTotal, error)

	CreateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRequest, error)
	HasPendingWithdrawal(ctx context.Context, userID string) (bool, error)
	TransitionWithdrawal(ctx context.Context, id, from string, ch models.WithdrawalChange) error
	ListWithdrawals(ctx context.Context, status string) ([]models.WithdrawalRequest, error)
	PendingWithdrawalStats(ctx context.Context) (int64, money.Amount, error)
	CreateReferralTransaction(ctx context.Context, t *models.ReferralTransaction) error
}

type Ledger interface {
	CreditWithdrawable(ctx context.Context, userID string, amount money.Amount, e ledger.Entry) (ledger.Result, error)
	DebitWithdrawable(ctx context.Context, userID string, amount money.Amount, e ledger.Entry) (ledger.Result, error)
}

type Config struct {
	CommissionRate decimal.Decimal
	MinWithdrawal  money.Amount
}

type Service struct {
	store    Store
	ledger   Ledger
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time
}

func NewService(store Store, l Ledger, notifier notify.Notifier, cfg Config) *Service {
	return &Service{
		store:    store,
		ledger:   l,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// EnsureCode returns the user's referral code, generating one on first use.
// A code is never replaced once set.
func (s *Service) EnsureCode(ctx context.Context, userID string) (string, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.ReferralCode != nil {
		return *u.ReferralCode, nil
	}

	for i := 0; i < codeAttempts; i++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		set, err := s.store.SetReferralCode(ctx, userID, code)
		if errors.Is(err, models.ErrDuplicateEntry) {
			continue
		}
		if err != nil {
			return "", err
		}
		if set {
			return code, nil
		}
		// someone else set it first
		u, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return "", err
		}
		if u.ReferralCode != nil {
			return *u.ReferralCode, nil
		}
	}
	return "", fmt.Errorf("referral code for user %s: no free code after %d attempts", userID, codeAttempts)
}

func generateCode() (string, error) {
	var b strings.Builder
	b.WriteString(codePrefix)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ResolveCode finds the owner of a referral code, ignoring case and padding.
func (s *Service) ResolveCode(ctx context.Context, code string) (*models.User, error) {
	return s.store.GetUserByReferralCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// ApplyCode records who referred userID. It can succeed at most once per user.
func (s *Service) ApplyCode(ctx context.Context, userID, code string) (*models.User, error) {
	referrer, err := s.ResolveCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer.ID == userID {
		return nil, models.ErrSelfReferral
	}
	if err := s.store.SetReferredBy(ctx, userID, referrer.ID, s.now()); err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"user_id": userID, "referrer_id": referrer.ID}).Info("referral code applied")
	return referrer, nil
}

// CreditCommission pays the referrer of referredID a share of a top-up.
// txnID identifies the top-up's ledger transaction; the credit is keyed on it
// so a retried top-up pays once. credited is false when the user has no
// referrer or the commission rounds to zero.
func (s *Service) CreditCommission(ctx context.Context, referredID string, topup money.Amount, txnID string) (*models.ReferralCommission, bool, error) {
	referred, err := s.store.GetUser(ctx, referredID)
	if err != nil {
		return nil, false, err
	}
	if referred.ReferredBy == nil {
		return nil, false, nil
	}
	referrerID := *referred.ReferredBy

	commission := topup.MulRate(s.cfg.CommissionRate)
	if !commission.IsPositive() {
		return nil, false, nil
	}

	res, err := s.ledger.CreditWithdrawable(ctx, referrerID, commission, ledger.Entry{
		RefType:        models.RefCommission,
		RefID:          txnID,
		Description:    "Referral commission from " + referred.Name,
		IdempotencyKey: "commission:" + txnID,
	})
	if errors.Is(err, models.ErrDuplicateEntry) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	metrics.ReferralCommissions.Inc()

	after := res.Balances.Withdrawable
	record := &models.ReferralCommission{
		ID:               models.NewID(),
		ReferrerID:       referrerID,
		ReferredUserID:   referredID,
		ReferredUserName: referred.Name,
		TopupAmount:      topup,
		CommissionAmount: commission,
		CommissionRate:   s.cfg.CommissionRate.String(),
		TransactionID:    txnID,
		BalanceBefore:    after - commission,
		BalanceAfter:     after,
	}
	if err := s.store.CreateCommission(ctx, record); err != nil {
		// the money moved; only the audit row is missing
		logger.WithFields(logrus.Fields{
			"referrer_id": referrerID,
			"txn_id":      txnID,
		}).WithError(err).Error("commission credited but audit record failed")
		return nil, true, err
	}

	s.notifier.Notify(ctx, notify.EventCommissionCredited, map[string]any{
		"referrer_id":       referrerID,
		"referred_user":     referred.Name,
		"commission_amount": commission,
	})
	logger.WithFields(logrus.Fields{
		"referrer_id": referrerID,
		"referred_id": referredID,
		"amount":      commission.String(),
	}).Info("referral commission credited")
	return record, true, nil
}

// RequestWithdrawal files a payout request against the withdrawable balance.
// Nothing is debited until an admin approves it.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, amount money.Amount, payoutID string) (*models.WithdrawalRequest, error) {
	if amount < s.cfg.MinWithdrawal {
		return nil, fmt.Errorf("%w: minimum is %s", models.ErrBelowMinimumWithdrawal, s.cfg.MinWithdrawal)
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.WithdrawableBalance < amount {
		return nil, fmt.Errorf("%w: available %s", models.ErrInsufficientWithdrawable, u.WithdrawableBalance)
	}
	pending, err := s.store.HasPendingWithdrawal(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, models.ErrPendingWithdrawalExists
	}

	w := &models.WithdrawalRequest{
		ID:            models.NewID(),
		UserID:        userID,
		Amount:        amount,
		PayoutID:      strings.TrimSpace(payoutID),
		PaymentMethod: payoutMethod,
		Status:        models.WithdrawalPending,
	}
	if err := s.store.CreateWithdrawal(ctx, w); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notify.EventWithdrawalRequested, map[string]any{
		"withdrawal_id": w.ID,
		"user_id":       userID,
		"user_name":     u.Name,
		"amount":        amount,
	})
	return w, nil
}

// ProcessWithdrawal approves or rejects a pending request. Approval claims the
// request first, so concurrent approvals debit once.
func (s *Service) ProcessWithdrawal(ctx context.Context, id, adminID, status, notes string) (*models.WithdrawalRequest, error) {
	w, err := s.store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WithdrawalPending {
		return nil, fmt.Errorf("%w: already %s", models.ErrWithdrawalProcessed, w.Status)
	}

	at := s.now()
	change := models.WithdrawalChange{
		Status:      status,
		AdminNotes:  &notes,
		ProcessedBy: &adminID,
		ProcessedAt: &at,
	}

	switch status {
	case models.WithdrawalRejected:
		if err := s.store.TransitionWithdrawal(ctx, id, models.WithdrawalPending, change); err != nil {
			return nil, err
		}
	case models.WithdrawalApproved:
		if err := s.approve(ctx, w, adminID, change); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("withdrawal status %q: %w", status, models.ErrInvalidStatus)
	}

	updated, err := s.store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, notify.EventWithdrawalProcessed, map[string]any{
		"withdrawal_id": id,
		"user_id":       w.UserID,
		"status":        status,
		"amount":        w.Amount,
	})
	logger.WithFields(logrus.Fields{"withdrawal_id": id, "admin_id": adminID, "status": status}).Info("withdrawal processed")
	return updated, nil
}

func (s *Service) approve(ctx context.Context, w *models.WithdrawalRequest, adminID string, change models.WithdrawalChange) error {
	var res ledger.Result
	approval := saga.New("withdrawal-approval",
		saga.Step{
			Name: "claim-request",
			Do: func(ctx context.Context) error {
				return s.store.TransitionWithdrawal(ctx, w.ID, models.WithdrawalPending, change)
			},
			Compensate: func(ctx context.Context) error {
				return s.store.TransitionWithdrawal(ctx, w.ID, models.WithdrawalApproved, models.WithdrawalChange{
					Status: models.WithdrawalPending,
				})
			},
		},
		saga.Step{
			Name: "debit-withdrawable",
			Do: func(ctx context.Context) (err error) {
				res, err = s.ledger.DebitWithdrawable(ctx, w.UserID, w.Amount, ledger.Entry{
					RefType:     models.RefWithdrawal,
					RefID:       w.ID,
					Description: "Withdrawal via " + strings.ToUpper(w.PaymentMethod),
				})
				return err
			},
		},
	)
	if err := approval.Run(ctx); err != nil {
		return err
	}

	after := res.Balances.Withdrawable
	rt := &models.ReferralTransaction{
		ID:            models.NewID(),
		UserID:        w.UserID,
		Type:          "withdrawal",
		Amount:        w.Amount,
		BalanceBefore: after + w.Amount,
		BalanceAfter:  after,
		WithdrawalID:  w.ID,
		PaymentMethod: w.PaymentMethod,
		PayoutID:      w.PayoutID,
		ProcessedBy:   adminID,
	}
	if err := s.store.CreateReferralTransaction(ctx, rt); err != nil {
		logger.WithField("withdrawal_id", w.ID).WithError(err).Error("withdrawal paid but referral transaction not recorded")
	}
	return nil
}

func (s *Service) ListWithdrawals(ctx context.Context, status string) ([]models.WithdrawalRequest, error) {
	switch status {
	case "", models.WithdrawalPending, models.WithdrawalApproved, models.WithdrawalRejected:
	default:
		return nil, fmt.Errorf("withdrawal status %q: %w", status, models.ErrInvalidStatus)
	}
	return s.store.ListWithdrawals(ctx, status)
}

type ReferredUser struct {
	UserID          string       `json:"user_id"`
	Name            string       `json:"name"`
	Email           string       `json:"email"`
	JoinedAt        time.Time    `json:"joined_at"`
	TotalCommission money.Amount `json:"total_commission_earned"`
	IsActive        bool         `json:"is_active"`
}

type Dashboard struct {
	ReferralCode        string                      `json:"referral_code"`
	TotalReferrals      int                         `json:"total_referrals"`
	ActiveReferrals     int                         `json:"active_referrals"`
	TotalEarnings       money.Amount                `json:"total_earnings"`
	WithdrawableBalance money.Amount                `json:"withdrawable_balance"`
	CommissionRate      decimal.Decimal             `json:"commission_rate"`
	MinWithdrawal       money.Amount                `json:"min_withdrawal_amount"`
	Referrals           []ReferredUser              `json:"referrals"`
	RecentCommissions   []models.ReferralCommission `json:"recent_commissions"`
}

// Dashboard summarises a user's referral activity. A referral counts as
// active once it has produced a commission.
func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	code, err := s.EnsureCode(ctx, userID)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	referred, err := s.store.ListReferredUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	totals, err := s.store.CommissionTotalsByReferred(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.ListCommissionsByReferrer(ctx, userID, recentCommissions)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		ReferralCode:        code,
		TotalReferrals:      len(referred),
		WithdrawableBalance: u.WithdrawableBalance,
		CommissionRate:      s.cfg.CommissionRate.Shift(2),
		MinWithdrawal:       s.cfg.MinWithdrawal,
		Referrals:           make([]ReferredUser, 0, len(referred)),
		RecentCommissions:   recent,
	}
	for _, total := range totals {
		d.TotalEarnings += total
	}
	d.ActiveReferrals = len(totals)
	for _, r := range referred {
		joined := r.CreatedAt
		if r.ReferralAppliedAt != nil {
			joined = *r.ReferralAppliedAt
		}
		total, active := totals[r.ID]
		d.Referrals = append(d.Referrals, ReferredUser{
			UserID:          r.ID,
			Name:            r.Name,
			Email:           r.Email,
			JoinedAt:        joined,
			TotalCommission: total,
			IsActive:        active,
		})
	}
	sort.SliceStable(d.Referrals, func(i, j int) bool {
		return d.Referrals[i].TotalCommission > d.Referrals[j].TotalCommission
	})
	if d.RecentCommissions == nil {
		d.RecentCommissions = []models.ReferralCommission{}
	}
	return d, nil
}

type AdminStats struct {
	TotalReferredUsers       int64                  `json:"total_referred_users"`
	CommissionCount          int64                  `json:"commission_count"`
	TotalCommissionsPaid     money.Amount           `json:"total_commissions_paid"`
	PendingWithdrawalsCount  int64                  `json:"pending_withdrawals_count"`
	PendingWithdrawalsAmount money.Amount           `json:"pending_withdrawals_amount"`
	CommissionRate           decimal.Decimal        `json:"commission_rate"`
	TopReferrers             []models.ReferrerTotal `json:"top_referrers"`
}

func (s *Service) AdminStats(ctx context.Context) (*AdminStats, error) {
	referred, err := s.store.CountReferredUsers(ctx)
	if err != nil {
		return nil, err
	}
	count, paid, err := s.store.CommissionStats(ctx)
	if err != nil {
		return nil, err
	}
	pendingCount, pendingAmount, err := s.store.PendingWithdrawalStats(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.store.TopReferrers(ctx, topReferrers)
	if err != nil {
		return nil, err
	}
	if top == nil {
		top = []models.ReferrerTotal{}
	}
	return &AdminStats{
		TotalReferredUsers:       referred,
		CommissionCount:          count,
		TotalCommissionsPaid:     paid,
		PendingWithdrawalsCount:  pendingCount,
		PendingWithdrawalsAmount: pendingAmount,
		CommissionRate:           s.cfg.CommissionRate.Shift(2),
		TopReferrers:             top,
	}, nil
}
