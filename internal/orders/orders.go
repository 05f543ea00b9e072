// Package orders runs purchases and refunds as sagas over stock, the
// subscription activator and the wallet ledger.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ottsonly-backend/internal/ledger"
	"ottsonly-backend/internal/models"
	"ottsonly-backend/internal/notify"
	"ottsonly-backend/internal/saga"
	"ottsonly-backend/pkg/logger"
	"ottsonly-backend/pkg/money"

	"github.com/sirupsen/logrus"
)

type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	TransitionOrder(ctx context.Context, id, from string, ch models.OrderChange) error
	ListOrdersByUser(ctx context.Context, userID string, skip, limit int) ([]models.Order, error)
	ListOrders(ctx context.Context, status string, skip, limit int) ([]models.Order, error)
}

type Stock interface {
	Reserve(ctx context.Context, productID string, qty int64) (int64, error)
	Release(ctx context.Context, productID string, qty int64) (int64, error)
}

type Ledger interface {
	Credit(ctx context.Context, userID string, amount money.Amount, e ledger.Entry) (ledger.Result, error)
	Debit(ctx context.Context, userID string, amount money.Amount, e ledger.Entry) (ledger.Result, error)
}

// Subscriptions is the activation collaborator.
type Subscriptions interface {
	Activate(ctx context.Context, userID, productID, orderID string) (*models.Subscription, error)
	Deactivate(ctx context.Context, sub *models.Subscription) error
	CancelForOrder(ctx context.Context, orderID string) (int, error)
}

type Service struct {
	store    Store
	stock    Stock
	ledger   Ledger
	subs     Subscriptions
	notifier notify.Notifier
	now      func() time.Time
}

func NewService(store Store, stock Stock, l Ledger, subs Subscriptions, notifier notify.Notifier) *Service {
	return &Service{
		store:    store,
		stock:    stock,
		ledger:   l,
		subs:     subs,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Purchase buys one unit of a product with wallet balance. Either the order
// completes with stock taken, a subscription active and the wallet debited,
// or every step that ran is undone and no order remains.
func (s *Service) Purchase(ctx context.Context, userID, productID string) (*models.Order, error) {
	// 1. Validate. The balance check here is only a fast fail; the debit
	// step is the authoritative one.
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, models.ErrProductInactive
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.WalletBalance < product.Price {
		return nil, models.ErrInsufficientBalance
	}

	order := &models.Order{
		ID:          models.NewID(),
		UserID:      userID,
		ProductID:   productID,
		ProductName: product.DisplayName(),
		Amount:      product.Price,
		Status:      models.OrderPending,
	}
	var sub *models.Subscription

	purchase := saga.New("purchase",
		saga.Step{
			Name: "create-order",
			Do:   func(ctx context.Context) error { return s.store.CreateOrder(ctx, order) },
			Compensate: func(ctx context.Context) error {
				return s.store.DeleteOrder(ctx, order.ID)
			},
		},
		saga.Step{
			Name: "reserve-stock",
			Do: func(ctx context.Context) error {
				_, err := s.stock.Reserve(ctx, productID, 1)
				return err
			},
			Compensate: func(ctx context.Context) error {
				_, err := s.stock.Release(ctx, productID, 1)
				return err
			},
		},
		saga.Step{
			Name: "activate-subscription",
			Do: func(ctx context.Context) (err error) {
				sub, err = s.subs.Activate(ctx, userID, productID, order.ID)
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.subs.Deactivate(ctx, sub)
			},
		},
		saga.Step{
			Name: "debit-wallet",
			Do: func(ctx context.Context) error {
				_, err := s.ledger.Debit(ctx, userID, product.Price, ledger.Entry{
					RefType:     models.RefOrder,
					RefID:       order.ID,
					Description: "Purchase: " + product.DisplayName(),
				})
				return err
			},
			Compensate: func(ctx context.Context) error {
				_, err := s.ledger.Credit(ctx, userID, product.Price, ledger.Entry{
					RefType:        models.RefOrder,
					RefID:          order.ID,
					Description:    "Reversal: " + product.DisplayName(),
					IdempotencyKey: "order-reversal:" + order.ID,
				})
				return err
			},
		},
		saga.Step{
			Name: "finalize",
			Do: func(ctx context.Context) error {
				paidAt := s.now()
				if err := s.store.TransitionOrder(ctx, order.ID, models.OrderPending, models.OrderChange{
					Status: models.OrderPaid, PaidAt: &paidAt,
				}); err != nil {
					return err
				}
				return s.store.TransitionOrder(ctx, order.ID, models.OrderPaid, models.OrderChange{
					Status: models.OrderCompleted, SubscriptionID: &sub.ID,
				})
			},
		},
	)

	if err := purchase.Run(ctx); err != nil {
		logger.WithFields(logrus.Fields{"user_id": userID, "product_id": productID}).WithError(err).Warn("purchase rolled back")
		return nil, err
	}

	completed, err := s.store.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	// 7. Notifications, best effort
	base := map[string]any{
		"order_id":     order.ID,
		"user_id":      userID,
		"user_name":    user.Name,
		"product_name": product.DisplayName(),
		"amount":       product.Price,
	}
	s.notifier.Notify(ctx, notify.EventOrderCreated, base)
	s.notifier.Notify(ctx, notify.EventPaymentSucceeded, base)
	s.notifier.Notify(ctx, notify.EventSubscriptionActivated, map[string]any{
		"order_id":        order.ID,
		"subscription_id": sub.ID,
		"user_name":       user.Name,
		"product_name":    product.DisplayName(),
		"end_date":        sub.EndDate.Format(time.RFC3339),
	})

	logger.WithFields(logrus.Fields{"order_id": order.ID, "user_id": userID}).Info("order completed")
	return completed, nil
}

// Refund returns a completed order's amount to the wallet, cancels its
// subscriptions and puts the unit back in stock.
func (s *Service) Refund(ctx context.Context, adminID, orderID, reason string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderCompleted {
		return nil, models.ErrInvalidOrderState
	}
	if reason == "" {
		reason = "Refunded by admin"
	}
	log := logger.WithFields(logrus.Fields{"order_id": orderID, "admin_id": adminID})

	refund := saga.New("refund",
		saga.Step{
			// Claims the order; a second refund stops here.
			Name: "mark-refunded",
			Do: func(ctx context.Context) error {
				at := s.now()
				return s.store.TransitionOrder(ctx, orderID, models.OrderCompleted, models.OrderChange{
					Status: models.OrderRefunded, RefundReason: &reason, RefundedAt: &at,
				})
			},
			Compensate: func(ctx context.Context) error {
				empty := ""
				return s.store.TransitionOrder(ctx, orderID, models.OrderRefunded, models.OrderChange{
					Status: models.OrderCompleted, RefundReason: &empty,
				})
			},
		},
		saga.Step{
			Name: "credit-wallet",
			Do: func(ctx context.Context) error {
				_, err := s.ledger.Credit(ctx, order.UserID, order.Amount, ledger.Entry{
					RefType:        models.RefRefund,
					RefID:          orderID,
					Description:    "Refund: " + order.ProductName,
					IdempotencyKey: "refund:" + orderID,
				})
				if errors.Is(err, models.ErrDuplicateEntry) {
					log.Warn("refund credit already in ledger")
					return nil
				}
				return err
			},
		},
	)
	if err := refund.Run(ctx); err != nil {
		return nil, err
	}

	// Forward-only cleanup; failures are logged.
	if n, err := s.subs.CancelForOrder(ctx, orderID); err != nil {
		log.WithError(err).Error("cancel subscriptions for refunded order")
	} else if n > 0 {
		log.Infof("cancelled %d subscription(s)", n)
	}
	if _, err := s.stock.Release(ctx, order.ProductID, 1); err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			log.Warn("product no longer exists, stock not restored")
		} else {
			log.WithError(err).Error("restore stock for refunded order")
		}
	}

	s.notifier.Notify(ctx, notify.EventOrderRefunded, map[string]any{
		"order_id": orderID,
		"user_id":  order.UserID,
		"amount":   order.Amount,
		"reason":   reason,
	})
	return s.store.GetOrder(ctx, orderID)
}

// Get returns an order the user owns; admins may read any order.
func (s *Service) Get(ctx context.Context, userID, orderID string, admin bool) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !admin && o.UserID != userID {
		return nil, models.ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, skip, limit int) ([]models.Order, error) {
	return s.store.ListOrdersByUser(ctx, userID, skip, limit)
}

func (s *Service) ListAll(ctx context.Context, status string, skip, limit int) ([]models.Order, error) {
	switch status {
	case "", models.OrderPending, models.OrderPaid, models.OrderCompleted, models.OrderRefunded:
	default:
		return nil, fmt.Errorf("unknown order status %q: %w", status, models.ErrInvalidStatus)
	}
	return s.store.ListOrders(ctx, status, skip, limit)
}
