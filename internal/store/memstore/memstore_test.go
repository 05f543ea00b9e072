package memstore

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/money"
)

func seedUser(t *testing.T, s *Store, wallet, withdrawable money.Amount) *models.User {
	t.Helper()
	u := &models.User{Name: "u", Email: models.NewID() + "@example.com", WalletBalance: wallet, WithdrawableBalance: withdrawable, IsActive: true}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestAdjustBalancesGuards(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, 100, 0)

	_, err := s.AdjustBalances(ctx, u.ID, models.BalanceChange{Wallet: -150, RequireWallet: 150})
	if !errors.Is(err, models.ErrConstraintViolated) {
		t.Fatalf("err = %v, want constraint violated", err)
	}
	_, err = s.AdjustBalances(ctx, "missing", models.BalanceChange{Wallet: 10})
	if !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("err = %v, want user not found", err)
	}

	entry := &models.WalletTransaction{Type: models.TxnDebit, Amount: 40, ReferenceType: models.RefOrder}
	b, err := s.AdjustBalances(ctx, u.ID, models.BalanceChange{Wallet: -40, RequireWallet: 40, Entry: entry})
	if err != nil {
		t.Fatalf("AdjustBalances: %v", err)
	}
	if b.Wallet != 60 || entry.BalanceAfter != 60 || entry.ID == "" {
		t.Fatalf("balances %+v entry %+v", b, entry)
	}
}

func TestAdjustBalancesRejectsOverflow(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, math.MaxInt64-10, 0)

	_, err := s.AdjustBalances(ctx, u.ID, models.BalanceChange{Wallet: 11})
	if !errors.Is(err, models.ErrConstraintViolated) {
		t.Fatalf("err = %v, want constraint violated", err)
	}
	b, err := s.AdjustBalances(ctx, u.ID, models.BalanceChange{Wallet: 10})
	if err != nil || b.Wallet != math.MaxInt64 {
		t.Fatalf("balances %+v, err %v", b, err)
	}
}

func TestWithdrawableCappedAtWallet(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, 100, 80)

	b, err := s.AdjustBalances(ctx, u.ID, models.BalanceChange{Wallet: -50, RequireWallet: 50})
	if err != nil {
		t.Fatalf("AdjustBalances: %v", err)
	}
	if b.Wallet != 50 || b.Withdrawable != 50 {
		t.Fatalf("got %+v, want wallet 50 withdrawable 50", b)
	}
}

func TestDuplicateIdempotencyKeyAppliesNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, 0, 0)
	key := "topup:order_1"

	for i := 0; i < 2; i++ {
		entry := &models.WalletTransaction{Type: models.TxnCredit, Amount: 500, ReferenceType: models.RefRazorpay, IdempotencyKey: &key}
		_, err := s.AdjustBalances(ctx, u.ID, models.BalanceChange{Wallet: 500, Entry: entry})
		if i == 1 && !errors.Is(err, models.ErrDuplicateEntry) {
			t.Fatalf("second credit err = %v, want duplicate", err)
		}
	}
	got, _ := s.GetUser(ctx, u.ID)
	if got.WalletBalance != 500 {
		t.Fatalf("wallet = %s, want 5.00", got.WalletBalance)
	}
}

func TestConcurrentStockNeverOversells(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := &models.Product{PlatformName: "Netflix", PlanName: "Basic", Price: 1000, Stock: 5, IsActive: true}
	_ = s.CreateProduct(ctx, p)

	var ok, failed int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AdjustStock(ctx, p.ID, -1); err != nil {
				atomic.AddInt64(&failed, 1)
				return
			}
			atomic.AddInt64(&ok, 1)
		}()
	}
	wg.Wait()

	got, _ := s.GetProduct(ctx, p.ID)
	if ok != 5 || failed != 15 || got.Stock != 0 {
		t.Fatalf("ok=%d failed=%d stock=%d", ok, failed, got.Stock)
	}
}

func TestSinglePendingWithdrawalPerUser(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := &models.WithdrawalRequest{UserID: "u1", Amount: 100, Status: models.WithdrawalPending}
	if err := s.CreateWithdrawal(ctx, first); err != nil {
		t.Fatalf("CreateWithdrawal: %v", err)
	}
	err := s.CreateWithdrawal(ctx, &models.WithdrawalRequest{UserID: "u1", Amount: 100, Status: models.WithdrawalPending})
	if !errors.Is(err, models.ErrPendingWithdrawalExists) {
		t.Fatalf("err = %v, want pending exists", err)
	}

	if err := s.TransitionWithdrawal(ctx, first.ID, models.WithdrawalPending, models.WithdrawalChange{Status: models.WithdrawalRejected}); err != nil {
		t.Fatalf("TransitionWithdrawal: %v", err)
	}
	if err := s.CreateWithdrawal(ctx, &models.WithdrawalRequest{UserID: "u1", Amount: 100, Status: models.WithdrawalPending}); err != nil {
		t.Fatalf("new request after rejection: %v", err)
	}
}
