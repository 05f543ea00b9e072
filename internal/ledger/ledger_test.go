package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/internal/store/memstore"
	"ottsonly-backend/pkg/money"
)

func newAccount(t *testing.T, st *memstore.Store) string {
	t.Helper()
	u := &models.User{Name: "acc", Email: models.NewID() + "@example.com", IsActive: true}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u.ID
}

func TestNoDoubleSpendUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := NewService(st)
	id := newAccount(t, st)

	if _, err := svc.Credit(ctx, id, money.FromRupees(100), Entry{RefType: models.RefAdmin}); err != nil {
		t.Fatal(err)
	}

	const callers = 40
	amount := money.FromRupees(7)
	var mu sync.Mutex
	var ok int
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(ctx, id, amount, Entry{RefType: models.RefOrder})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else if !errors.Is(err, models.ErrInsufficientBalance) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 14 {
		t.Fatalf("successful debits = %d, want 14", ok)
	}
	b, _ := svc.Balance(ctx, id)
	if b.Wallet != money.FromRupees(2) {
		t.Fatalf("balance = %s, want 2.00", b.Wallet)
	}

	rec, err := svc.Reconcile(ctx, id)
	if err != nil || !rec.Consistent {
		t.Fatalf("reconcile %+v err=%v", rec, err)
	}
}

func TestBalanceAfterMatchesAtomicResult(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := NewService(st)
	id := newAccount(t, st)

	res, err := svc.Credit(ctx, id, 2500, Entry{RefType: models.RefRazorpay, RefID: "pay_1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Transaction.BalanceAfter != res.Balances.Wallet || res.Balances.Wallet != 2500 {
		t.Fatalf("result %+v", res)
	}
}

func TestWithdrawableOperations(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := NewService(st)
	id := newAccount(t, st)

	_, _ = svc.Credit(ctx, id, money.FromRupees(50), Entry{RefType: models.RefAdmin})
	res, err := svc.CreditWithdrawable(ctx, id, money.FromRupees(30), Entry{RefType: models.RefCommission})
	if err != nil {
		t.Fatal(err)
	}
	if res.Balances.Wallet != money.FromRupees(80) || res.Balances.Withdrawable != money.FromRupees(30) {
		t.Fatalf("balances %+v", res.Balances)
	}

	if _, err := svc.DebitWithdrawable(ctx, id, money.FromRupees(31), Entry{RefType: models.RefWithdrawal}); !errors.Is(err, models.ErrInsufficientWithdrawable) {
		t.Fatalf("err = %v, want insufficient withdrawable", err)
	}
	res, err = svc.DebitWithdrawable(ctx, id, money.FromRupees(30), Entry{RefType: models.RefWithdrawal})
	if err != nil {
		t.Fatal(err)
	}
	if res.Balances.Wallet != money.FromRupees(50) || res.Balances.Withdrawable != 0 {
		t.Fatalf("balances %+v", res.Balances)
	}
}

func TestDebitMissingAccountAndBadAmount(t *testing.T) {
	svc := NewService(memstore.New())
	ctx := context.Background()
	if _, err := svc.Debit(ctx, "ghost", 100, Entry{}); !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("err = %v, want user not found", err)
	}
	if _, err := svc.Credit(ctx, "ghost", 0, Entry{}); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("err = %v, want invalid amount", err)
	}
}

func TestAdminCreditHookAndReason(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := NewService(st)
	id := newAccount(t, st)

	var hooked money.Amount
	svc.OnAdminCredit(func(_ context.Context, userID string, amount money.Amount, txnID string) {
		if userID == id && txnID != "" {
			hooked = amount
		}
	})

	if _, err := svc.AdminCredit(ctx, "admin", id, 1000, "  "); !errors.Is(err, models.ErrReasonRequired) {
		t.Fatalf("err = %v, want reason required", err)
	}
	if _, err := svc.AdminCredit(ctx, "admin", id, 1000, "promo"); err != nil {
		t.Fatal(err)
	}
	if hooked != 1000 {
		t.Fatalf("hook saw %s", hooked)
	}
	if _, err := svc.AdminDebit(ctx, "admin", id, 1001, "fix"); !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want insufficient balance", err)
	}
	if _, err := svc.AdminCredit(ctx, "admin", id, MaxAdminAmount+1, "typo"); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("err = %v, want invalid amount", err)
	}
	if _, err := svc.AdminDebit(ctx, "admin", id, MaxAdminAmount+1, "typo"); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("err = %v, want invalid amount", err)
	}
	if hooked != 1000 {
		t.Fatalf("hook ran for a rejected credit: %s", hooked)
	}
}
