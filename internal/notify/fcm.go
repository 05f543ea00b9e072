package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

// Messenger is the part of the FCM client used here.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMDeliverer pushes every event to one FCM topic, the admin app listens on it.
type FCMDeliverer struct {
	client Messenger
	topic  string
}

// NewFCMClient builds a messaging client from a service account file.
func NewFCMClient(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	return client, nil
}

func NewFCMDeliverer(client Messenger, topic string) *FCMDeliverer {
	return &FCMDeliverer{client: client, topic: topic}
}

func (d *FCMDeliverer) Deliver(ctx context.Context, ev Event) error {
	title, body := describe(ev)
	data := map[string]string{"type": ev.Type}
	for k, v := range ev.Payload {
		data[k] = fmt.Sprint(v)
	}

	_, err := d.client.Send(ctx, &messaging.Message{
		Topic: d.topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("fcm send %s: %w", ev.Type, err)
	}
	return nil
}

func describe(ev Event) (string, string) {
	p := ev.Payload
	switch ev.Type {
	case EventOrderCreated:
		return "New order", fmt.Sprintf("%v bought %v for ₹%v", p["user_name"], p["product_name"], p["amount"])
	case EventPaymentSucceeded:
		return "Payment received", fmt.Sprintf("Order %v paid ₹%v", p["order_id"], p["amount"])
	case EventSubscriptionActivated:
		return "Subscription activated", fmt.Sprintf("%v for %v", p["product_name"], p["user_name"])
	case EventOrderRefunded:
		return "Order refunded", fmt.Sprintf("Order %v refunded ₹%v", p["order_id"], p["amount"])
	case EventWalletRecharged:
		return "Wallet recharged", fmt.Sprintf("%v added ₹%v", p["user_name"], p["amount"])
	case EventWithdrawalRequested:
		return "Withdrawal requested", fmt.Sprintf("%v requested ₹%v", p["user_name"], p["amount"])
	case EventWithdrawalProcessed:
		return "Withdrawal processed", fmt.Sprintf("Request %v %v", p["withdrawal_id"], p["status"])
	case EventCommissionCredited:
		return "Referral commission", fmt.Sprintf("₹%v credited to %v", p["commission"], p["referrer_id"])
	default:
		return ev.Type, ""
	}
}

// LogDeliverer is the consumer's fallback when FCM is not configured.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(ctx context.Context, ev Event) error {
	return LogSink{}.Send(ctx, ev)
}
