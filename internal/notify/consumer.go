package notify

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"ottsonly-backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Deliverer pushes an event to its final destination.
type Deliverer interface {
	Deliver(ctx context.Context, ev Event) error
}

// StreamReader is the part of the redis client the consumer uses.
type StreamReader interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

type ConsumerOptions struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
	Batch    int64
	MinIdle  time.Duration
}

// StreamConsumer reads the notification stream in a consumer group and
// acks each entry once delivered. Entries left pending by a dead consumer
// are claimed back after MinIdle.
type StreamConsumer struct {
	rdb       StreamReader
	deliverer Deliverer
	opt       ConsumerOptions
}

func NewStreamConsumer(rdb StreamReader, deliverer Deliverer, opt ConsumerOptions) *StreamConsumer {
	if opt.Group == "" {
		opt.Group = "notifications_cg"
	}
	if opt.Consumer == "" {
		host, _ := os.Hostname()
		opt.Consumer = "consumer-" + host
	}
	if opt.Block == 0 {
		opt.Block = 5 * time.Second
	}
	if opt.Batch == 0 {
		opt.Batch = 50
	}
	if opt.MinIdle == 0 {
		opt.MinIdle = time.Minute
	}
	return &StreamConsumer{rdb: rdb, deliverer: deliverer, opt: opt}
}

func (c *StreamConsumer) Run(ctx context.Context) {
	c.ensureGroup(ctx)
	logger.Infof("notification consumer %s reading %s", c.opt.Consumer, c.opt.Stream)

	lastClaim := time.Time{}
	for ctx.Err() == nil {
		if time.Since(lastClaim) > c.opt.MinIdle {
			c.reclaimPending(ctx)
			lastClaim = time.Now()
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.opt.Group,
			Consumer: c.opt.Consumer,
			Streams:  []string{c.opt.Stream, ">"},
			Count:    c.opt.Batch,
			Block:    c.opt.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Errorf("notification XREADGROUP error: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				c.handle(ctx, m)
			}
		}
	}
	logger.Info("notification consumer stopped")
}

func (c *StreamConsumer) ensureGroup(ctx context.Context) {
	err := c.rdb.XGroupCreateMkStream(ctx, c.opt.Stream, c.opt.Group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		logger.Errorf("XGroupCreateMkStream error: %v", err)
	}
}

func (c *StreamConsumer) reclaimPending(ctx context.Context) {
	start := "0-0"
	for {
		msgs, next, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.opt.Stream,
			Group:    c.opt.Group,
			Consumer: c.opt.Consumer,
			MinIdle:  c.opt.MinIdle,
			Start:    start,
			Count:    c.opt.Batch,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				logger.Errorf("XAutoClaim error: %v", err)
			}
			return
		}
		for _, m := range msgs {
			c.handle(ctx, m)
		}
		if len(msgs) == 0 || next == "0-0" {
			return
		}
		start = next
	}
}

// handle delivers one entry. Undeliverable entries stay pending and are
// retried by reclaimPending; malformed ones are acked and dropped.
func (c *StreamConsumer) handle(ctx context.Context, m redis.XMessage) {
	ev, err := decodeEvent(m.Values)
	if err != nil {
		logger.Warnf("dropping malformed notification %s: %v", m.ID, err)
		c.ack(ctx, m.ID)
		return
	}
	if err := c.deliverer.Deliver(ctx, ev); err != nil {
		logger.WithField("event", ev.Type).WithError(err).Warnf("delivery failed, %s left pending", m.ID)
		return
	}
	c.ack(ctx, m.ID)
}

func (c *StreamConsumer) ack(ctx context.Context, id string) {
	if err := c.rdb.XAck(ctx, c.opt.Stream, c.opt.Group, id).Err(); err != nil {
		logger.Errorf("XAck error (msg=%s): %v", id, err)
	}
}

func decodeEvent(values map[string]any) (Event, error) {
	typ, _ := values["type"].(string)
	if typ == "" {
		return Event{}, errors.New("missing type")
	}
	ev := Event{Type: typ}
	if raw, ok := values["payload"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &ev.Payload); err != nil {
			return Event{}, err
		}
	}
	if at, ok := values["at"].(string); ok {
		ev.At, _ = time.Parse(time.RFC3339Nano, at)
	}
	return ev, nil
}
