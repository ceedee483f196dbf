package push

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker fans payloads out over Redis Pub/Sub so every API instance
// can serve a user's stream.
type RedisBroker struct {
	client redis.UniversalClient
	buffer int
	logger *zap.Logger
}

// NewRedisBroker wraps client.
func NewRedisBroker(client redis.UniversalClient, buffer int, logger *zap.Logger) *RedisBroker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &RedisBroker{client: client, buffer: buffer, logger: logger}
}

// Publish implements Publisher. Transport failures are reported as ErrUndelivered.
func (b *RedisBroker) Publish(ctx context.Context, userID string, payload []byte) error {
	if err := b.client.Publish(ctx, UserChannel(userID), payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUndelivered, err)
	}
	return nil
}

// Subscribe implements Subscriber. The subscription is confirmed before it
// is returned so no message published afterwards is missed.
func (b *RedisBroker) Subscribe(ctx context.Context, userID string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, UserChannel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", UserChannel(userID), err)
	}

	sub := &redisSubscription{pubsub: pubsub, ch: make(chan []byte, b.buffer)}
	go func() {
		defer close(sub.ch)
		for msg := range pubsub.Channel() {
			select {
			case sub.ch <- []byte(msg.Payload):
			default:
				b.logger.Warn("dropping push message for slow stream", zap.String("user_id", userID))
			}
		}
	}()
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan []byte
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.ch
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
