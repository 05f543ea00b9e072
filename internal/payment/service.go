// Package payment takes wallet top-ups from a payment gateway. A pending
// payment is locked by moving it to processing, credited once, then
// completed; replays and concurrent confirmations are turned away.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ottsonly-backend/internal/ledger"
	"ottsonly-backend/internal/metrics"
	"ottsonly-backend/internal/models"
	"ottsonly-backend/internal/notify"
	"ottsonly-backend/pkg/logger"
	"ottsonly-backend/pkg/money"

	"github.com/sirupsen/logrus"
)

const (
	Currency       = "INR"
	MinTopup       = money.Amount(100)
	MaxTopup       = money.Amount(10000000)
	topupKeyPrefix = "topup:"
)

type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreatePendingPayment(ctx context.Context, p *models.PendingPayment) error
	AcquireProcessing(ctx context.Context, externalOrderID, userID, paymentID, signature string, at time.Time) (*models.PendingPayment, error)
	CompleteProcessing(ctx context.Context, externalOrderID string, at time.Time) error
	ListStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]models.PendingPayment, error)
	ResetProcessing(ctx context.Context, externalOrderID string, startedAt time.Time) (bool, error)
}

type Ledger interface {
	Credit(ctx context.Context, userID string, amount money.Amount, e ledger.Entry) (ledger.Result, error)
	HasEntry(ctx context.Context, idempotencyKey string) (bool, error)
}

// Commissions pays the referrer of a user who topped up.
type Commissions interface {
	CreditCommission(ctx context.Context, referredID string, topup money.Amount, txnID string) (*models.ReferralCommission, bool, error)
}

type Config struct {
	KeyID             string
	KeySecret         string
	ProcessingTimeout time.Duration
}

type Service struct {
	store       Store
	ledger      Ledger
	commissions Commissions
	gateway     Gateway
	notifier    notify.Notifier
	cfg         Config
	now         func() time.Time
}

func NewService(store Store, l Ledger, commissions Commissions, gateway Gateway, notifier notify.Notifier, cfg Config) *Service {
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 15 * time.Minute
	}
	return &Service{
		store:       store,
		ledger:      l,
		commissions: commissions,
		gateway:     gateway,
		notifier:    notifier,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// TopupOrder is returned to the client to open the checkout.
type TopupOrder struct {
	OrderID     string       `json:"order_id"`
	Amount      money.Amount `json:"amount"`
	Currency    string       `json:"currency"`
	KeyID       string       `json:"razorpay_key"`
	Gateway     string       `json:"gateway"`
	Token       string       `json:"token,omitempty"`
	RedirectURL string       `json:"redirect_url,omitempty"`
}

// Initiate opens an external payment and records it as pending.
func (s *Service) Initiate(ctx context.Context, userID string, amount money.Amount) (*TopupOrder, error) {
	if amount < MinTopup || amount > MaxTopup {
		return nil, fmt.Errorf("top-up must be between %s and %s: %w", MinTopup, MaxTopup, models.ErrInvalidAmount)
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	orderID := NewOrderID()
	handle, err := s.gateway.CreateOrder(ctx, OrderRequest{OrderID: orderID, Amount: amount, User: user})
	if err != nil {
		return nil, err
	}

	p := &models.PendingPayment{
		UserID:          userID,
		Amount:          amount,
		ExternalOrderID: orderID,
		Status:          models.PaymentPending,
	}
	if err := s.store.CreatePendingPayment(ctx, p); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{"user_id": userID, "order_id": orderID, "amount": amount.String()}).Info("top-up initiated")
	return &TopupOrder{
		OrderID:     orderID,
		Amount:      amount,
		Currency:    Currency,
		KeyID:       s.cfg.KeyID,
		Gateway:     s.gateway.Name(),
		Token:       handle.Token,
		RedirectURL: handle.RedirectURL,
	}, nil
}

// VerifyResult is returned after a successful credit.
type VerifyResult struct {
	Amount        money.Amount               `json:"amount"`
	NewBalance    money.Amount               `json:"new_balance"`
	TransactionID string                     `json:"transaction_id"`
	Commission    *models.ReferralCommission `json:"-"`
}

// Verify checks the gateway signature and credits the wallet exactly once.
func (s *Service) Verify(ctx context.Context, userID, orderID, paymentID, signature string) (*VerifyResult, error) {
	// 1. Signature, before any state is touched
	if !VerifySignature(s.cfg.KeySecret, orderID, paymentID, signature) {
		metrics.PaymentVerifications.WithLabelValues("invalid_signature").Inc()
		return nil, models.ErrInvalidSignature
	}

	// 2. Lock: pending -> processing
	// columns keep milliseconds; the reset below matches on this value
	startedAt := s.now().Truncate(time.Millisecond)
	pending, err := s.store.AcquireProcessing(ctx, orderID, userID, paymentID, signature, startedAt)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyProcessed) {
			metrics.PaymentVerifications.WithLabelValues("already_processed").Inc()
		}
		return nil, err
	}

	log := logger.WithFields(logrus.Fields{"user_id": userID, "order_id": orderID, "payment_id": paymentID})

	// 3. Credit, keyed by order so a retry after reclaim cannot double credit
	res, err := s.ledger.Credit(ctx, userID, pending.Amount, ledger.Entry{
		RefType:        models.RefRazorpay,
		RefID:          paymentID,
		Description:    "Wallet recharge via payment gateway",
		IdempotencyKey: topupKeyPrefix + orderID,
	})
	switch {
	case errors.Is(err, models.ErrDuplicateEntry):
		log.Warn("top-up already credited, completing payment")
		if err := s.store.CompleteProcessing(ctx, orderID, s.now()); err != nil {
			log.WithError(err).Warn("complete after duplicate credit")
		}
		metrics.PaymentVerifications.WithLabelValues("already_processed").Inc()
		return nil, models.ErrAlreadyProcessed
	case err != nil:
		if ok, rerr := s.store.ResetProcessing(context.WithoutCancel(ctx), orderID, startedAt); rerr != nil || !ok {
			log.WithError(rerr).Error("credit failed and payment could not be returned to pending")
		}
		metrics.PaymentVerifications.WithLabelValues("error").Inc()
		return nil, err
	}

	// 4. Referral commission, best effort
	var commission *models.ReferralCommission
	if s.commissions != nil {
		c, credited, cerr := s.commissions.CreditCommission(ctx, userID, pending.Amount, res.Transaction.ID)
		if cerr != nil {
			log.WithError(cerr).Error("referral commission failed")
		} else if credited {
			commission = c
		}
	}

	// 5. Complete
	if err := s.store.CompleteProcessing(ctx, orderID, s.now()); err != nil {
		log.WithError(err).Error("payment credited but not marked completed")
	}
	metrics.PaymentVerifications.WithLabelValues("ok").Inc()
	log.Infof("wallet credited %s, balance %s", pending.Amount, res.Balances.Wallet)

	// 6. Notify
	userName := ""
	if u, err := s.store.GetUser(ctx, userID); err == nil {
		userName = u.Name
	}
	s.notifier.Notify(ctx, notify.EventWalletRecharged, map[string]any{
		"user_id":     userID,
		"user_name":   userName,
		"amount":      pending.Amount,
		"new_balance": res.Balances.Wallet,
		"payment_id":  paymentID,
	})

	return &VerifyResult{
		Amount:        pending.Amount,
		NewBalance:    res.Balances.Wallet,
		TransactionID: res.Transaction.ID,
		Commission:    commission,
	}, nil
}

// ReclaimReport counts what one reclaim pass did.
type ReclaimReport struct {
	Completed int
	Reset     int
}

// Reclaim handles payments stuck in processing longer than the timeout. If
// the top-up was already credited the payment is completed, otherwise it
// goes back to pending so the client can confirm again.
func (s *Service) Reclaim(ctx context.Context) (ReclaimReport, error) {
	var report ReclaimReport
	cutoff := s.now().Add(-s.cfg.ProcessingTimeout)

	stale, err := s.store.ListStaleProcessing(ctx, cutoff, 100)
	if err != nil {
		return report, fmt.Errorf("list stale payments: %w", err)
	}

	for _, p := range stale {
		log := logger.WithFields(logrus.Fields{"order_id": p.ExternalOrderID, "user_id": p.UserID})

		credited, err := s.ledger.HasEntry(ctx, topupKeyPrefix+p.ExternalOrderID)
		if err != nil {
			log.WithError(err).Error("reclaim: ledger lookup failed")
			continue
		}
		if credited {
			if err := s.store.CompleteProcessing(ctx, p.ExternalOrderID, s.now()); err == nil {
				report.Completed++
				metrics.PaymentsReclaimed.WithLabelValues("completed").Inc()
				log.Warn("reclaim: credited payment marked completed")
			}
			continue
		}

		ok, err := s.store.ResetProcessing(ctx, p.ExternalOrderID, *p.ProcessingStartedAt)
		if err != nil {
			log.WithError(err).Error("reclaim: reset failed")
			continue
		}
		if ok {
			report.Reset++
			metrics.PaymentsReclaimed.WithLabelValues("reset").Inc()
			log.Warn("reclaim: stuck payment returned to pending")
		}
	}
	return report, nil
}
