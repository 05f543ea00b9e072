// Package ledger moves money in and out of wallets. Each operation is one
// conditional balance update that also appends the matching transaction,
// so the log always reconciles with the stored balance.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ottsonly-backend/internal/metrics"
	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/logger"
	"ottsonly-backend/pkg/money"
)

type Store interface {
	AdjustBalances(ctx context.Context, userID string, ch models.BalanceChange) (models.Balances, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListTransactions(ctx context.Context, userID string, skip, limit int) ([]models.WalletTransaction, error)
	SumTransactions(ctx context.Context, userID string) (money.Amount, error)
	HasEntry(ctx context.Context, idempotencyKey string) (bool, error)
}

// Entry describes the transaction line written with a balance change.
type Entry struct {
	RefType     string
	RefID       string
	Description string
	// IdempotencyKey makes the operation apply at most once.
	IdempotencyKey string
}

// Result is the state produced by one atomic step.
type Result struct {
	Balances    models.Balances          `json:"balances"`
	Transaction models.WalletTransaction `json:"transaction"`
}

// MaxAdminAmount caps a single manual credit or debit.
const MaxAdminAmount = money.Amount(100000000)

// AdminCreditHook runs after a successful admin credit.
type AdminCreditHook func(ctx context.Context, userID string, amount money.Amount, txnID string)

type Service struct {
	store       Store
	adminCredit AdminCreditHook
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// OnAdminCredit registers the hook that admin credits trigger.
func (s *Service) OnAdminCredit(hook AdminCreditHook) {
	s.adminCredit = hook
}

// Credit adds amount to the wallet balance.
func (s *Service) Credit(ctx context.Context, userID string, amount money.Amount, e Entry) (Result, error) {
	return s.apply(ctx, "credit", userID, amount, e, models.BalanceChange{Wallet: amount}, models.TxnCredit, nil)
}

// Debit takes amount from the wallet balance, failing with
// ErrInsufficientBalance when the balance is lower.
func (s *Service) Debit(ctx context.Context, userID string, amount money.Amount, e Entry) (Result, error) {
	ch := models.BalanceChange{Wallet: -amount, RequireWallet: amount}
	return s.apply(ctx, "debit", userID, amount, e, ch, models.TxnDebit, models.ErrInsufficientBalance)
}

// CreditWithdrawable adds amount to both balances. Used for referral earnings.
func (s *Service) CreditWithdrawable(ctx context.Context, userID string, amount money.Amount, e Entry) (Result, error) {
	ch := models.BalanceChange{Wallet: amount, Withdrawable: amount}
	return s.apply(ctx, "credit_withdrawable", userID, amount, e, ch, models.TxnCredit, nil)
}

// DebitWithdrawable takes amount from both balances, guarded on both.
func (s *Service) DebitWithdrawable(ctx context.Context, userID string, amount money.Amount, e Entry) (Result, error) {
	ch := models.BalanceChange{
		Wallet:              -amount,
		Withdrawable:        -amount,
		RequireWallet:       amount,
		RequireWithdrawable: amount,
	}
	return s.apply(ctx, "debit_withdrawable", userID, amount, e, ch, models.TxnDebit, models.ErrInsufficientWithdrawable)
}

func (s *Service) apply(ctx context.Context, op, userID string, amount money.Amount, e Entry,
	ch models.BalanceChange, txnType string, guardErr error) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, models.ErrInvalidAmount
	}

	txn := &models.WalletTransaction{
		Type:          txnType,
		Amount:        amount,
		ReferenceType: e.RefType,
		ReferenceID:   e.RefID,
		Description:   e.Description,
	}
	if e.IdempotencyKey != "" {
		key := e.IdempotencyKey
		txn.IdempotencyKey = &key
	}
	ch.Entry = txn

	balances, err := s.store.AdjustBalances(ctx, userID, ch)
	metrics.LedgerOperations.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		if errors.Is(err, models.ErrConstraintViolated) && guardErr != nil {
			return Result{}, guardErr
		}
		return Result{}, fmt.Errorf("%s %s for user %s: %w", op, amount, userID, err)
	}
	return Result{Balances: balances, Transaction: *txn}, nil
}

func (s *Service) Balance(ctx context.Context, userID string) (models.Balances, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.Balances{}, err
	}
	return u.Balances(), nil
}

func (s *Service) Transactions(ctx context.Context, userID string, skip, limit int) ([]models.WalletTransaction, error) {
	return s.store.ListTransactions(ctx, userID, skip, limit)
}

func (s *Service) HasEntry(ctx context.Context, idempotencyKey string) (bool, error) {
	return s.store.HasEntry(ctx, idempotencyKey)
}

// Reconciliation compares a stored balance with the sum of its log.
type Reconciliation struct {
	UserID      string       `json:"user_id"`
	Balance     money.Amount `json:"wallet_balance"`
	LedgerTotal money.Amount `json:"ledger_total"`
	Difference  money.Amount `json:"difference"`
	Consistent  bool         `json:"consistent"`
}

// Reconcile checks that credits minus debits equal the wallet balance.
// Balances seeded outside the ledger show up as a difference.
func (s *Service) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	total, err := s.store.SumTransactions(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	r := Reconciliation{
		UserID:      userID,
		Balance:     u.WalletBalance,
		LedgerTotal: total,
		Difference:  u.WalletBalance - total,
	}
	r.Consistent = r.Difference == 0
	if !r.Consistent {
		logger.WithField("user_id", userID).Warnf("ledger mismatch: balance %s, log %s", u.WalletBalance, total)
	}
	return r, nil
}

// AdminCredit is a manual credit; reason is mandatory.
func (s *Service) AdminCredit(ctx context.Context, adminID, userID string, amount money.Amount, reason string) (Result, error) {
	if strings.TrimSpace(reason) == "" {
		return Result{}, models.ErrReasonRequired
	}
	if amount > MaxAdminAmount {
		return Result{}, fmt.Errorf("admin adjustment above %s: %w", MaxAdminAmount, models.ErrInvalidAmount)
	}
	res, err := s.Credit(ctx, userID, amount, Entry{
		RefType:     models.RefAdmin,
		RefID:       adminID,
		Description: "Admin credit: " + reason,
	})
	if err != nil {
		return Result{}, err
	}
	if s.adminCredit != nil {
		s.adminCredit(ctx, userID, amount, res.Transaction.ID)
	}
	return res, nil
}

// AdminDebit is a manual debit; it cannot take the balance below zero.
func (s *Service) AdminDebit(ctx context.Context, adminID, userID string, amount money.Amount, reason string) (Result, error) {
	if strings.TrimSpace(reason) == "" {
		return Result{}, models.ErrReasonRequired
	}
	if amount > MaxAdminAmount {
		return Result{}, fmt.Errorf("admin adjustment above %s: %w", MaxAdminAmount, models.ErrInvalidAmount)
	}
	return s.Debit(ctx, userID, amount, Entry{
		RefType:     models.RefAdmin,
		RefID:       adminID,
		Description: "Admin debit: " + reason,
	})
}
