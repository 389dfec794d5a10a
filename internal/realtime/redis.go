// Package realtime relays practice events between service instances over
// Redis pub/sub, so an event stream can be served by any instance.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freedomtukun/free-yoga/internal/practice"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const queueSize = 256

type envelope struct {
	Origin string         `json:"origin"`
	Event  practice.Event `json:"event"`
}

// RedisPublisher publishes practice events to a Redis channel. Publish only
// enqueues; Run performs the network writes.
type RedisPublisher struct {
	log     *zap.Logger
	rdb     *goredis.Client
	channel string
	origin  string
	queue   chan practice.Event
}

func NewRedisPublisher(log *zap.Logger, rdb *goredis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = "free-yoga:practice"
	}
	return &RedisPublisher{
		log:     log.With(zap.String("component", "redis_publisher")),
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		queue:   make(chan practice.Event, queueSize),
	}
}

// Publish implements practice.Publisher. Events are dropped when the queue is full.
func (p *RedisPublisher) Publish(ev practice.Event) {
	select {
	case p.queue <- ev:
	default:
		p.log.Warn("Redis publish queue full, dropping event",
			zap.String("session", ev.SessionID.String()),
			zap.String("type", string(ev.Type)),
		)
	}
}

// Run writes queued events to Redis until ctx is cancelled.
func (p *RedisPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-p.queue:
			raw, err := json.Marshal(envelope{Origin: p.origin, Event: ev})
			if err != nil {
				p.log.Error("Failed to encode practice event", zap.Error(err))
				continue
			}
			if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
				p.log.Error("Failed to publish practice event", zap.String("channel", p.channel), zap.Error(err))
			}
		}
	}
}

// Forward subscribes to the channel and hands events published by other
// instances to sink. It returns once the subscription is confirmed; delivery
// continues until ctx is cancelled.
func (p *RedisPublisher) Forward(ctx context.Context, sink practice.Publisher) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				ev, ok := p.decode([]byte(m.Payload))
				if ok {
					sink.Publish(ev)
				}
			}
		}
	}()
	return nil
}

// decode returns the event in payload unless it came from this instance.
func (p *RedisPublisher) decode(payload []byte) (practice.Event, bool) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		p.log.Warn("Bad practice event payload", zap.Error(err))
		return practice.Event{}, false
	}
	if env.Origin == p.origin {
		return practice.Event{}, false
	}
	return env.Event, true
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
