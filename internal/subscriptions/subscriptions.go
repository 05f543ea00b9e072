// Package subscriptions activates purchased plans. For platforms that hand
// out shared logins it claims one unused credential per subscription.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/logger"
)

type Store interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	DeleteSubscription(ctx context.Context, id string) error
	SetSubscriptionCredential(ctx context.Context, id, credentialID string) error
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]models.Subscription, error)
	CancelSubscriptionsByOrder(ctx context.Context, orderID string) ([]models.Subscription, error)
	CreateCredential(ctx context.Context, c *models.Credential) error
	ClaimCredential(ctx context.Context, platform, userID, subscriptionID string) (*models.Credential, error)
	GetCredential(ctx context.Context, id string) (*models.Credential, error)
	ReleaseCredential(ctx context.Context, id string) error
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Activate creates an active subscription for the order. Failures wrap
// ErrExternal so the purchase saga can tell them apart.
func (s *Service) Activate(ctx context.Context, userID, productID, orderID string) (*models.Subscription, error) {
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	start := s.now()
	sub := &models.Subscription{
		ID:           models.NewID(),
		UserID:       userID,
		ProductID:    productID,
		OrderID:      orderID,
		PlatformName: p.PlatformName,
		PlanName:     p.PlanName,
		Status:       models.SubscriptionActive,
		StartDate:    start,
		EndDate:      start.AddDate(0, 0, p.DurationDays),
	}

	if p.RequiresCredential {
		cred, err := s.store.ClaimCredential(ctx, p.PlatformName, userID, sub.ID)
		if err != nil {
			if errors.Is(err, models.ErrCredentialsUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: claim credential: %v", models.ErrExternal, err)
		}
		sub.CredentialID = &cred.ID
		sub.Credential = cred
	}

	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		if sub.CredentialID != nil {
			if rerr := s.store.ReleaseCredential(context.WithoutCancel(ctx), *sub.CredentialID); rerr != nil {
				logger.Errorf("release credential %s after failed activation: %v", *sub.CredentialID, rerr)
			}
		}
		return nil, fmt.Errorf("%w: create subscription: %v", models.ErrExternal, err)
	}
	return sub, nil
}

// Deactivate undoes Activate: the subscription is removed and its
// credential goes back to the pool.
func (s *Service) Deactivate(ctx context.Context, sub *models.Subscription) error {
	var errs []error
	if sub.CredentialID != nil {
		if err := s.store.ReleaseCredential(ctx, *sub.CredentialID); err != nil {
			errs = append(errs, fmt.Errorf("release credential: %w", err))
		}
	}
	if err := s.store.DeleteSubscription(ctx, sub.ID); err != nil {
		errs = append(errs, fmt.Errorf("delete subscription: %w", err))
	}
	return errors.Join(errs...)
}

// CancelForOrder marks the order's subscriptions cancelled and frees their
// credentials. Used by refunds.
func (s *Service) CancelForOrder(ctx context.Context, orderID string) (int, error) {
	subs, err := s.store.CancelSubscriptionsByOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	for _, sub := range subs {
		if sub.CredentialID == nil {
			continue
		}
		if err := s.store.ReleaseCredential(ctx, *sub.CredentialID); err != nil {
			logger.Warnf("release credential %s for refunded order %s: %v", *sub.CredentialID, orderID, err)
		}
	}
	return len(subs), nil
}

// ListForUser returns the user's subscriptions with their credentials.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	subs, err := s.store.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].CredentialID == nil || subs[i].Status != models.SubscriptionActive {
			continue
		}
		if cred, err := s.store.GetCredential(ctx, *subs[i].CredentialID); err == nil {
			subs[i].Credential = cred
		}
	}
	return subs, nil
}

// AddCredential loads a login into the pool.
func (s *Service) AddCredential(ctx context.Context, in models.CredentialInput) (*models.Credential, error) {
	c := &models.Credential{
		Platform: in.Platform,
		Username: in.Username,
		Password: in.Password,
		IsActive: true,
	}
	if err := s.store.CreateCredential(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
