package subscriptions

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/internal/store/memstore"
)

func TestActivateComputesEndDate(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	p := &models.Product{PlatformName: "YouTube", PlanName: "Premium", Price: 100, DurationDays: 30, Stock: 1, IsActive: true}
	_ = st.CreateProduct(ctx, p)

	sub, err := NewService(st).Activate(ctx, "u1", p.ID, "o1")
	if err != nil {
		t.Fatal(err)
	}
	if days := sub.EndDate.Sub(sub.StartDate).Hours() / 24; days != 30 {
		t.Fatalf("duration = %v days", days)
	}
	if sub.CredentialID != nil {
		t.Fatal("no credential expected for this plan")
	}
}

func TestCredentialsAreNeverShared(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := NewService(st)
	p := &models.Product{PlatformName: "Netflix", PlanName: "Premium", Price: 100, DurationDays: 30, Stock: 10, RequiresCredential: true, IsActive: true}
	_ = st.CreateProduct(ctx, p)
	for i := 0; i < 3; i++ {
		if _, err := svc.AddCredential(ctx, models.CredentialInput{Platform: "Netflix", Username: "acc", Password: "pw"}); err != nil {
			t.Fatal(err)
		}
	}

	var mu sync.Mutex
	seen := map[string]bool{}
	unavailable := 0
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := svc.Activate(ctx, "u", p.ID, models.NewID())
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, models.ErrCredentialsUnavailable) {
				unavailable++
				return
			}
			if err != nil {
				t.Errorf("Activate: %v", err)
				return
			}
			if seen[*sub.CredentialID] {
				t.Errorf("credential %s handed out twice", *sub.CredentialID)
			}
			seen[*sub.CredentialID] = true
		}()
	}
	wg.Wait()

	if len(seen) != 3 || unavailable != 3 {
		t.Fatalf("claimed=%d unavailable=%d", len(seen), unavailable)
	}
	if !errors.Is(models.ErrCredentialsUnavailable, models.ErrExternal) {
		t.Fatal("credential shortage should count as an external failure")
	}
}

func TestDeactivateFreesCredential(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := NewService(st)
	p := &models.Product{PlatformName: "Prime", PlanName: "Annual", Price: 100, DurationDays: 365, RequiresCredential: true, IsActive: true}
	_ = st.CreateProduct(ctx, p)
	_, _ = svc.AddCredential(ctx, models.CredentialInput{Platform: "Prime", Username: "a", Password: "b"})

	sub, err := svc.Activate(ctx, "u1", p.ID, "o1")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Deactivate(ctx, sub); err != nil {
		t.Fatal(err)
	}
	if _, err := st.GetSubscription(ctx, sub.ID); !errors.Is(err, models.ErrSubscriptionNotFound) {
		t.Fatalf("subscription still present: %v", err)
	}
	if _, err := svc.Activate(ctx, "u2", p.ID, "o2"); err != nil {
		t.Fatalf("credential was not released: %v", err)
	}
}
