// Package notify hands business events to an external sink. Nothing in
// here may block or fail the operation that produced the event.
package notify

import (
	"context"
	"time"

	"ottsonly-backend/internal/metrics"
	"ottsonly-backend/pkg/logger"
)

const (
	EventOrderCreated          = "order.created"
	EventPaymentSucceeded      = "payment.succeeded"
	EventSubscriptionActivated = "subscription.activated"
	EventOrderRefunded         = "order.refunded"
	EventWalletRecharged       = "wallet.recharged"
	EventWithdrawalRequested   = "withdrawal.requested"
	EventWithdrawalProcessed   = "withdrawal.processed"
	EventCommissionCredited    = "referral.commission"
)

// Event is one notification.
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"`
}

// Sink receives events. Implementations may block; callers go through
// a Dispatcher.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// Notifier is what the services depend on.
type Notifier interface {
	Notify(ctx context.Context, eventType string, payload map[string]any)
}

// Dispatcher queues events and sends them from a single goroutine. When the
// queue is full the event is dropped with a warning.
type Dispatcher struct {
	sink  Sink
	queue chan Event
	done  chan struct{}
}

func NewDispatcher(sink Sink, size int) *Dispatcher {
	if size <= 0 {
		size = 256
	}
	return &Dispatcher{sink: sink, queue: make(chan Event, size), done: make(chan struct{})}
}

func (d *Dispatcher) Notify(_ context.Context, eventType string, payload map[string]any) {
	ev := Event{Type: eventType, Payload: payload, At: time.Now().UTC()}
	select {
	case d.queue <- ev:
	default:
		metrics.NotificationsDropped.Inc()
		logger.WithField("event", eventType).Warn("notification queue full, event dropped")
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case ev := <-d.queue:
			d.send(ctx, ev)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			for {
				select {
				case ev := <-d.queue:
					d.send(flushCtx, ev)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

func (d *Dispatcher) send(ctx context.Context, ev Event) {
	if err := d.sink.Send(ctx, ev); err != nil {
		logger.WithField("event", ev.Type).WithError(err).Warn("notification not delivered")
	}
}

// LogSink writes events to the log. Used when Redis is not configured.
type LogSink struct{}

func (LogSink) Send(_ context.Context, ev Event) error {
	logger.WithField("event", ev.Type).WithField("payload", ev.Payload).Info("notification")
	return nil
}

// Discard drops everything.
type Discard struct{}

func (Discard) Notify(context.Context, string, map[string]any) {}
