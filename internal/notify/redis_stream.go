package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamAdder is the part of the redis client the sink uses.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSink appends events to a Redis stream, capped at MaxLen entries.
type RedisStreamSink struct {
	rdb    StreamAdder
	stream string
	maxLen int64
}

func NewRedisStreamSink(rdb StreamAdder, stream string) *RedisStreamSink {
	return &RedisStreamSink{rdb: rdb, stream: stream, maxLen: 100000}
}

func (s *RedisStreamSink) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", ev.Type, err)
	}
	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    ev.Type,
			"payload": string(payload),
			"at":      ev.At.Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
