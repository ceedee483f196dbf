// Package push delivers notification payloads to connected clients on a
// best-effort basis. Durable notification rows remain the source of truth.
package push

import (
	"context"
	"errors"
)

// ErrUndelivered marks a publish that reached no or only some subscribers.
var ErrUndelivered = errors.New("push: message not delivered")

// UserChannel is the per-user channel name.
func UserChannel(userID string) string {
	return "notify:user:" + userID
}

// Publisher sends a payload to every live subscription of a user.
type Publisher interface {
	Publish(ctx context.Context, userID string, payload []byte) error
}

// Subscription is one client's live feed.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Subscriber opens live feeds.
type Subscriber interface {
	Subscribe(ctx context.Context, userID string) (Subscription, error)
}

// Broker is both ends of the push channel.
type Broker interface {
	Publisher
	Subscriber
}
