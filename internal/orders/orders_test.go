package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ottsonly-backend/internal/ledger"
	"ottsonly-backend/internal/models"
	"ottsonly-backend/internal/notify"
	"ottsonly-backend/internal/stock"
	"ottsonly-backend/internal/store/memstore"
	"ottsonly-backend/internal/subscriptions"
	"ottsonly-backend/pkg/money"
)

type env struct {
	st     *memstore.Store
	ledger *ledger.Service
	svc    *Service
}

func newEnv(subs Subscriptions) *env {
	st := memstore.New()
	led := ledger.NewService(st)
	if subs == nil {
		subs = subscriptions.NewService(st)
	}
	return &env{st: st, ledger: led, svc: NewService(st, stock.NewService(st), led, subs, notify.Discard{})}
}

func (e *env) product(t *testing.T, price money.Amount, stockQty int64) *models.Product {
	t.Helper()
	p := &models.Product{PlatformName: "Netflix", PlanName: "Mobile", Price: price, DurationDays: 30, Stock: stockQty, IsActive: true}
	if err := e.st.CreateProduct(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (e *env) user(t *testing.T, balance money.Amount) string {
	t.Helper()
	ctx := context.Background()
	u := &models.User{Name: "buyer", Email: models.NewID() + "@example.com", IsActive: true}
	if err := e.st.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	if balance > 0 {
		if _, err := e.ledger.Credit(ctx, u.ID, balance, ledger.Entry{RefType: models.RefAdmin}); err != nil {
			t.Fatal(err)
		}
	}
	return u.ID
}

func (e *env) orderCount(t *testing.T) int {
	t.Helper()
	all, err := e.st.ListOrders(context.Background(), "", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	return len(all)
}

func TestPurchaseCompletes(t *testing.T) {
	e := newEnv(nil)
	ctx := context.Background()
	p := e.product(t, money.FromRupees(149), 2)
	uid := e.user(t, money.FromRupees(200))

	o, err := e.svc.Purchase(ctx, uid, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != models.OrderCompleted || o.SubscriptionID == nil || o.PaidAt == nil {
		t.Fatalf("order %+v", o)
	}
	b, _ := e.ledger.Balance(ctx, uid)
	if b.Wallet != money.FromRupees(51) {
		t.Fatalf("balance = %s", b.Wallet)
	}
	got, _ := e.st.GetProduct(ctx, p.ID)
	if got.Stock != 1 {
		t.Fatalf("stock = %d", got.Stock)
	}
	if rec, _ := e.ledger.Reconcile(ctx, uid); !rec.Consistent {
		t.Fatalf("ledger does not reconcile: %+v", rec)
	}
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	e := newEnv(nil)
	ctx := context.Background()
	p := e.product(t, money.FromRupees(10), 5)

	users := make([]string, 10)
	for i := range users {
		users[i] = e.user(t, money.FromRupees(10))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, outOfStock int
	for _, uid := range users {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := e.svc.Purchase(ctx, uid, p.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, models.ErrOutOfStock):
				outOfStock++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}(uid)
	}
	wg.Wait()

	got, _ := e.st.GetProduct(ctx, p.ID)
	if ok != 5 || outOfStock != 5 || got.Stock != 0 {
		t.Fatalf("ok=%d outOfStock=%d stock=%d", ok, outOfStock, got.Stock)
	}
	if n := e.orderCount(t); n != 5 {
		t.Fatalf("orders = %d, want 5", n)
	}
}

type failingSubs struct{ Subscriptions }

func (failingSubs) Activate(context.Context, string, string, string) (*models.Subscription, error) {
	return nil, models.ErrCredentialsUnavailable
}

func TestActivationFailureRestoresStockAndDropsOrder(t *testing.T) {
	e := newEnv(failingSubs{})
	ctx := context.Background()
	p := e.product(t, money.FromRupees(10), 3)
	uid := e.user(t, money.FromRupees(50))

	_, err := e.svc.Purchase(ctx, uid, p.ID)
	if !errors.Is(err, models.ErrExternal) {
		t.Fatalf("err = %v, want external failure", err)
	}
	got, _ := e.st.GetProduct(ctx, p.ID)
	if got.Stock != 3 {
		t.Fatalf("stock = %d, want 3", got.Stock)
	}
	if n := e.orderCount(t); n != 0 {
		t.Fatalf("orders = %d, want 0", n)
	}
	b, _ := e.ledger.Balance(ctx, uid)
	if b.Wallet != money.FromRupees(50) {
		t.Fatalf("balance = %s", b.Wallet)
	}
}

// drainingSubs spends the buyer's balance during activation, so the
// authoritative debit fails after the fast pre-check passed.
type drainingSubs struct {
	*subscriptions.Service
	ledger *ledger.Service
	got    *models.Subscription
}

func (d *drainingSubs) Activate(ctx context.Context, userID, productID, orderID string) (*models.Subscription, error) {
	sub, err := d.Service.Activate(ctx, userID, productID, orderID)
	if err != nil {
		return nil, err
	}
	d.got = sub
	b, _ := d.ledger.Balance(ctx, userID)
	_, err = d.ledger.Debit(ctx, userID, b.Wallet, ledger.Entry{RefType: models.RefAdmin})
	return sub, err
}

func TestDebitFailureUndoesEverything(t *testing.T) {
	st := memstore.New()
	led := ledger.NewService(st)
	subs := &drainingSubs{Service: subscriptions.NewService(st), ledger: led}
	e := &env{st: st, ledger: led, svc: NewService(st, stock.NewService(st), led, subs, notify.Discard{})}
	ctx := context.Background()
	p := e.product(t, money.FromRupees(10), 1)
	uid := e.user(t, money.FromRupees(10))

	_, err := e.svc.Purchase(ctx, uid, p.ID)
	if !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want insufficient balance", err)
	}
	if _, err := st.GetSubscription(ctx, subs.got.ID); !errors.Is(err, models.ErrSubscriptionNotFound) {
		t.Fatalf("subscription survived rollback: %v", err)
	}
	got, _ := st.GetProduct(ctx, p.ID)
	if got.Stock != 1 || e.orderCount(t) != 0 {
		t.Fatalf("stock=%d orders=%d", got.Stock, e.orderCount(t))
	}
}

func TestPurchaseFastFails(t *testing.T) {
	e := newEnv(nil)
	ctx := context.Background()
	p := e.product(t, money.FromRupees(10), 1)
	poor := e.user(t, money.FromRupees(5))

	if _, err := e.svc.Purchase(ctx, poor, p.ID); !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("err = %v", err)
	}
	if _, err := e.svc.Purchase(ctx, poor, "missing"); !errors.Is(err, models.ErrProductNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := e.svc.Purchase(ctx, "ghost", p.ID); !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRefundOnlyOnce(t *testing.T) {
	e := newEnv(nil)
	ctx := context.Background()
	p := e.product(t, money.FromRupees(99), 1)
	uid := e.user(t, money.FromRupees(99))
	o, err := e.svc.Purchase(ctx, uid, p.ID)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	refunded := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Refund(ctx, "admin", o.ID, "customer request")
			if err == nil {
				mu.Lock()
				refunded++
				mu.Unlock()
			} else if !errors.Is(err, models.ErrInvalidOrderState) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if refunded != 1 {
		t.Fatalf("refunds = %d, want 1", refunded)
	}
	b, _ := e.ledger.Balance(ctx, uid)
	if b.Wallet != money.FromRupees(99) {
		t.Fatalf("balance = %s", b.Wallet)
	}
	got, _ := e.st.GetProduct(ctx, p.ID)
	if got.Stock != 1 {
		t.Fatalf("stock = %d", got.Stock)
	}
	subs, _ := e.st.ListSubscriptionsByUser(ctx, uid)
	if len(subs) != 1 || subs[0].Status != models.SubscriptionCancelled {
		t.Fatalf("subscriptions %+v", subs)
	}
	order, _ := e.st.GetOrder(ctx, o.ID)
	if order.Status != models.OrderRefunded || order.RefundReason != "customer request" {
		t.Fatalf("order %+v", order)
	}
}

func TestRefundSurvivesDeletedProduct(t *testing.T) {
	e := newEnv(nil)
	ctx := context.Background()
	p := e.product(t, money.FromRupees(20), 1)
	uid := e.user(t, money.FromRupees(20))
	o, _ := e.svc.Purchase(ctx, uid, p.ID)
	e.st.DeleteProduct(ctx, p.ID)

	if _, err := e.svc.Refund(ctx, "admin", o.ID, ""); err != nil {
		t.Fatalf("Refund: %v", err)
	}
}

func TestGetHidesOtherUsersOrders(t *testing.T) {
	e := newEnv(nil)
	ctx := context.Background()
	p := e.product(t, money.FromRupees(20), 1)
	uid := e.user(t, money.FromRupees(20))
	o, _ := e.svc.Purchase(ctx, uid, p.ID)

	if _, err := e.svc.Get(ctx, "intruder", o.ID, false); !errors.Is(err, models.ErrOrderNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := e.svc.Get(ctx, "admin", o.ID, true); err != nil {
		t.Fatalf("admin read: %v", err)
	}
}
