package referral

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"ottsonly-backend/internal/ledger"
	"ottsonly-backend/internal/models"
	"ottsonly-backend/internal/notify"
	"ottsonly-backend/internal/store/memstore"
	"ottsonly-backend/pkg/money"

	"github.com/shopspring/decimal"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(_ context.Context, eventType string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingNotifier) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type env struct {
	st     *memstore.Store
	ledger *ledger.Service
	svc    *Service
	events *recordingNotifier
}

func newEnv() *env {
	st := memstore.New()
	led := ledger.NewService(st)
	events := &recordingNotifier{}
	svc := NewService(st, led, events, Config{
		CommissionRate: decimal.NewFromFloat(0.10),
		MinWithdrawal:  money.FromRupees(100),
	})
	return &env{st: st, ledger: led, svc: svc, events: events}
}

func (e *env) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", IsActive: true}
	if err := e.st.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

// fund gives the user a wallet balance of which withdrawable is commission.
func (e *env) fund(t *testing.T, userID string, wallet, withdrawable money.Amount) {
	t.Helper()
	ctx := context.Background()
	if withdrawable > 0 {
		if _, err := e.ledger.CreditWithdrawable(ctx, userID, withdrawable, ledger.Entry{RefType: models.RefCommission}); err != nil {
			t.Fatal(err)
		}
	}
	if rest := wallet - withdrawable; rest > 0 {
		if _, err := e.ledger.Credit(ctx, userID, rest, ledger.Entry{RefType: models.RefAdmin}); err != nil {
			t.Fatal(err)
		}
	}
}

func (e *env) refer(t *testing.T, referrer, referred *models.User) {
	t.Helper()
	ctx := context.Background()
	code, err := e.svc.EnsureCode(ctx, referrer.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.ApplyCode(ctx, referred.ID, code); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureCodeIsStable(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	u := e.user(t, "asha")

	code, err := e.svc.EnsureCode(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`^REF[A-Z0-9]{8}$`).MatchString(code) {
		t.Fatalf("code %q has the wrong shape", code)
	}
	again, err := e.svc.EnsureCode(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again != code {
		t.Fatalf("code changed from %s to %s", code, again)
	}
}

func TestApplyCodeRules(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	referrer := e.user(t, "ravi")
	friend := e.user(t, "meera")
	code, _ := e.svc.EnsureCode(ctx, referrer.ID)

	if _, err := e.svc.ApplyCode(ctx, referrer.ID, code); !errors.Is(err, models.ErrSelfReferral) {
		t.Fatalf("self referral: %v", err)
	}
	if _, err := e.svc.ApplyCode(ctx, friend.ID, "REFNOPE0000"); !errors.Is(err, models.ErrReferralCodeNotFound) {
		t.Fatalf("unknown code: %v", err)
	}
	got, err := e.svc.ApplyCode(ctx, friend.ID, " "+strings.ToLower(code)+" ")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != referrer.ID {
		t.Fatalf("referrer %s, want %s", got.ID, referrer.ID)
	}
	if _, err := e.svc.ApplyCode(ctx, friend.ID, code); !errors.Is(err, models.ErrAlreadyReferred) {
		t.Fatalf("second apply: %v", err)
	}
}

func TestCreditCommissionRecordsAtomicBalances(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	referrer := e.user(t, "ravi")
	friend := e.user(t, "meera")
	e.fund(t, referrer.ID, money.FromRupees(100), money.FromRupees(50))
	e.refer(t, referrer, friend)

	rec, credited, err := e.svc.CreditCommission(ctx, friend.ID, money.FromRupees(300), "txn-1")
	if err != nil || !credited {
		t.Fatalf("credited=%v err=%v", credited, err)
	}
	if rec.CommissionAmount != money.FromRupees(30) {
		t.Fatalf("commission %s", rec.CommissionAmount)
	}
	if rec.BalanceBefore != money.FromRupees(50) || rec.BalanceAfter != money.FromRupees(80) {
		t.Fatalf("audit balances %s -> %s", rec.BalanceBefore, rec.BalanceAfter)
	}
	b, _ := e.ledger.Balance(ctx, referrer.ID)
	if b.Wallet != money.FromRupees(130) || b.Withdrawable != money.FromRupees(80) {
		t.Fatalf("balances %+v", b)
	}

	// the same top-up transaction pays once
	if _, credited, err := e.svc.CreditCommission(ctx, friend.ID, money.FromRupees(300), "txn-1"); err != nil || credited {
		t.Fatalf("replay credited=%v err=%v", credited, err)
	}
	b, _ = e.ledger.Balance(ctx, referrer.ID)
	if b.Wallet != money.FromRupees(130) {
		t.Fatalf("replay changed wallet to %s", b.Wallet)
	}
	if n := e.events.count(notify.EventCommissionCredited); n != 1 {
		t.Fatalf("commission events = %d, want 1", n)
	}
}

func TestCreditCommissionWithoutReferrer(t *testing.T) {
	e := newEnv()
	u := e.user(t, "solo")
	rec, credited, err := e.svc.CreditCommission(context.Background(), u.ID, money.FromRupees(500), "txn-x")
	if err != nil || credited || rec != nil {
		t.Fatalf("rec=%v credited=%v err=%v", rec, credited, err)
	}
}

func TestCommissionRoundsToNearestPaisa(t *testing.T) {
	e := newEnv()
	referrer := e.user(t, "ravi")
	friend := e.user(t, "meera")
	e.refer(t, referrer, friend)

	rec, _, err := e.svc.CreditCommission(context.Background(), friend.ID, money.MustParse("10.05"), "txn-r")
	if err != nil {
		t.Fatal(err)
	}
	if rec.CommissionAmount != money.MustParse("1.01") {
		t.Fatalf("commission %s", rec.CommissionAmount)
	}
}

func TestRequestWithdrawalChecks(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	u := e.user(t, "ravi")
	e.fund(t, u.ID, money.FromRupees(500), money.FromRupees(300))

	if _, err := e.svc.RequestWithdrawal(ctx, u.ID, money.FromRupees(50), "ravi@upi"); !errors.Is(err, models.ErrBelowMinimumWithdrawal) {
		t.Fatalf("below minimum: %v", err)
	}
	if _, err := e.svc.RequestWithdrawal(ctx, u.ID, money.FromRupees(400), "ravi@upi"); !errors.Is(err, models.ErrInsufficientWithdrawable) {
		t.Fatalf("over withdrawable: %v", err)
	}
	w, err := e.svc.RequestWithdrawal(ctx, u.ID, money.FromRupees(200), "ravi@upi")
	if err != nil {
		t.Fatal(err)
	}
	if w.Status != models.WithdrawalPending || w.PaymentMethod != "upi" {
		t.Fatalf("withdrawal %+v", w)
	}
	if _, err := e.svc.RequestWithdrawal(ctx, u.ID, money.FromRupees(100), "ravi@upi"); !errors.Is(err, models.ErrPendingWithdrawalExists) {
		t.Fatalf("second pending: %v", err)
	}
	b, _ := e.ledger.Balance(ctx, u.ID)
	if b.Withdrawable != money.FromRupees(300) {
		t.Fatalf("request must not debit, withdrawable %s", b.Withdrawable)
	}
}

func TestConcurrentApprovalDebitsOnce(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	u := e.user(t, "ravi")
	e.fund(t, u.ID, money.FromRupees(500), money.FromRupees(300))
	w, err := e.svc.RequestWithdrawal(ctx, u.ID, money.FromRupees(200), "ravi@upi")
	if err != nil {
		t.Fatal(err)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		oks int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.svc.ProcessWithdrawal(ctx, w.ID, "admin-1", models.WithdrawalApproved, "paid"); err == nil {
				mu.Lock()
				oks++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if oks != 1 {
		t.Fatalf("%d approvals succeeded", oks)
	}
	b, _ := e.ledger.Balance(ctx, u.ID)
	if b.Wallet != money.FromRupees(300) || b.Withdrawable != money.FromRupees(100) {
		t.Fatalf("balances %+v", b)
	}
	txns := e.st.ReferralTransactions(u.ID)
	if len(txns) != 1 || txns[0].BalanceBefore != money.FromRupees(300) || txns[0].BalanceAfter != money.FromRupees(100) {
		t.Fatalf("referral transactions %+v", txns)
	}
}

func TestApprovalRevertsWhenBalanceGone(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	u := e.user(t, "ravi")
	e.fund(t, u.ID, money.FromRupees(200), money.FromRupees(200))
	w, err := e.svc.RequestWithdrawal(ctx, u.ID, money.FromRupees(150), "ravi@upi")
	if err != nil {
		t.Fatal(err)
	}
	// spending the wallet caps the withdrawable balance below the request
	if _, err := e.ledger.Debit(ctx, u.ID, money.FromRupees(100), ledger.Entry{RefType: models.RefOrder}); err != nil {
		t.Fatal(err)
	}

	if _, err := e.svc.ProcessWithdrawal(ctx, w.ID, "admin-1", models.WithdrawalApproved, ""); !errors.Is(err, models.ErrInsufficientWithdrawable) {
		t.Fatalf("approve: %v", err)
	}
	got, _ := e.st.GetWithdrawal(ctx, w.ID)
	if got.Status != models.WithdrawalPending {
		t.Fatalf("status %s after failed approval", got.Status)
	}

	rejected, err := e.svc.ProcessWithdrawal(ctx, w.ID, "admin-1", models.WithdrawalRejected, "balance spent")
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != models.WithdrawalRejected || rejected.AdminNotes != "balance spent" {
		t.Fatalf("rejected %+v", rejected)
	}
	if _, err := e.svc.ProcessWithdrawal(ctx, w.ID, "admin-1", models.WithdrawalApproved, ""); !errors.Is(err, models.ErrWithdrawalProcessed) {
		t.Fatalf("process after reject: %v", err)
	}
}

func TestDashboardAndStats(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	referrer := e.user(t, "ravi")
	active := e.user(t, "meera")
	idle := e.user(t, "kiran")
	e.refer(t, referrer, active)
	e.refer(t, referrer, idle)

	for i, txn := range []string{"t1", "t2"} {
		if _, _, err := e.svc.CreditCommission(ctx, active.ID, money.FromRupees(int64(100*(i+1))), txn); err != nil {
			t.Fatal(err)
		}
	}

	d, err := e.svc.Dashboard(ctx, referrer.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.TotalReferrals != 2 || d.ActiveReferrals != 1 {
		t.Fatalf("referrals total=%d active=%d", d.TotalReferrals, d.ActiveReferrals)
	}
	if d.TotalEarnings != money.FromRupees(30) || d.WithdrawableBalance != money.FromRupees(30) {
		t.Fatalf("earnings %s withdrawable %s", d.TotalEarnings, d.WithdrawableBalance)
	}
	if d.Referrals[0].UserID != active.ID || !d.Referrals[0].IsActive || d.Referrals[1].IsActive {
		t.Fatalf("referral list %+v", d.Referrals)
	}
	if len(d.RecentCommissions) != 2 || !d.CommissionRate.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("recent %d rate %s", len(d.RecentCommissions), d.CommissionRate)
	}

	stats, err := e.svc.AdminStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalReferredUsers != 2 || stats.CommissionCount != 2 || stats.TotalCommissionsPaid != money.FromRupees(30) {
		t.Fatalf("stats %+v", stats)
	}
	if len(stats.TopReferrers) != 1 || stats.TopReferrers[0].ReferrerID != referrer.ID {
		t.Fatalf("top referrers %+v", stats.TopReferrers)
	}
}
