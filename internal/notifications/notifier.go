package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "inkwell:rt:"

// relayFrame is what travels over Redis between processes.
type relayFrame struct {
	Except string          `json:"except,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// RedisBroadcaster relays published events through Redis pub/sub so every
// process delivers them to its own subscribers. Subscriptions stay local.
type RedisBroadcaster struct {
	*Hub
	rdb *redis.Client
}

// NewRedisBroadcaster wraps a local hub. With a nil client it publishes locally.
func NewRedisBroadcaster(rdb *redis.Client, hub *Hub) *RedisBroadcaster {
	return &RedisBroadcaster{Hub: hub, rdb: rdb}
}

// Publish sends the event to Redis, or straight to the hub without Redis.
func (b *RedisBroadcaster) Publish(ctx context.Context, channel, event string, payload any, except string) error {
	data, err := Encode(event, payload)
	if err != nil {
		return err
	}
	if b.rdb == nil {
		b.deliver(channel, data, except)
		return nil
	}
	frame, err := json.Marshal(relayFrame{Except: except, Data: data})
	if err != nil {
		return fmt.Errorf("marshal relay frame: %w", err)
	}
	return b.rdb.Publish(ctx, redisChannelPrefix+channel, frame).Err()
}

// Start subscribes to the relay pattern and forwards frames to the local hub
// until ctx is cancelled. It returns once the subscription is confirmed.
func (b *RedisBroadcaster) Start(ctx context.Context) error {
	if b.rdb == nil {
		return nil
	}
	sub := b.rdb.PSubscribe(ctx, redisChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe relay: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("panic in relay subscriber", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					b.relay(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

func (b *RedisBroadcaster) relay(redisChannel, payload string) {
	channel, ok := strings.CutPrefix(redisChannel, redisChannelPrefix)
	if !ok {
		return
	}
	var frame relayFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		slog.Warn("invalid relay frame", slog.String("channel", redisChannel), slog.Any("error", err))
		return
	}
	b.deliver(channel, frame.Data, frame.Except)
}
