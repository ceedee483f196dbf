package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-engine/internal/clock"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/events"
	"github.com/spec-kit/issue-engine/internal/push"
	"github.com/spec-kit/issue-engine/internal/repository"
	"github.com/spec-kit/issue-engine/internal/testutil"
)

var start = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

func enqueueEvent(t *testing.T, store repository.Store, at time.Time) events.Event {
	t.Helper()
	event, err := events.New(events.EventIssueCreated, "issue-1", events.Actor{UserID: "cit-1", Role: domain.RoleCitizen}, at,
		events.IssueCreatedPayload{ReporterID: "cit-1", Title: "Broken light", Category: domain.CategoryLighting, Severity: 2})
	require.NoError(t, err)
	entry, err := events.ToOutbox(event)
	require.NoError(t, err)
	require.NoError(t, store.Outbox().Enqueue(context.Background(), &entry))
	return event
}

func newRelay(store repository.Store, dispatcher events.Dispatcher, clk clock.Clock) *OutboxRelay {
	return NewOutboxRelay(store, dispatcher, clk, nil, nil, RelayOptions{
		BatchSize:       2,
		BaseBackoff:     time.Second,
		MaxBackoff:      10 * time.Second,
		MaxPushAttempts: 2,
	})
}

func TestRelayDispatchesDueEvents(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t)
	clk := clock.Fake(start)
	for i := 0; i < 3; i++ {
		enqueueEvent(t, store, start)
	}

	var seen []string
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventIssueCreated, func(_ context.Context, e events.Event) error {
		seen = append(seen, e.ID)
		return nil
	})

	processed, err := newRelay(store, dispatcher, clk).Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, processed)
	require.Len(t, seen, 3)

	pending, err := store.Outbox().PendingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)

	processed, err = newRelay(store, dispatcher, clk).Drain(ctx)
	require.NoError(t, err)
	require.Zero(t, processed)
}

func TestRelayRetriesStoreFailuresWithBackoff(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t)
	clk := clock.Fake(start)
	event := enqueueEvent(t, store, start)

	failing := true
	calls := 0
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventIssueCreated, func(context.Context, events.Event) error {
		calls++
		if failing {
			return errors.New("database unavailable")
		}
		return nil
	})
	relay := newRelay(store, dispatcher, clk)

	_, err := relay.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	due, err := store.Outbox().FetchDue(ctx, clk.Now(), 10)
	require.NoError(t, err)
	require.Empty(t, due)

	clk.Advance(time.Second)
	due, err = store.Outbox().FetchDue(ctx, clk.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, event.ID, due[0].ID)
	require.Equal(t, 1, due[0].Attempts)
	require.Contains(t, due[0].LastError, "database unavailable")

	failing = false
	_, err = relay.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	pending, err := store.Outbox().PendingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestRelayDropsPushFailuresAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t)
	clk := clock.Fake(start)
	enqueueEvent(t, store, start)

	calls := 0
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventIssueCreated, func(context.Context, events.Event) error {
		calls++
		return fmt.Errorf("%w: no route", push.ErrUndelivered)
	})
	relay := newRelay(store, dispatcher, clk)

	_, err := relay.Drain(ctx)
	require.NoError(t, err)
	pending, err := store.Outbox().PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, pending)

	clk.Advance(time.Minute)
	_, err = relay.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	pending, err = store.Outbox().PendingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestPushOnly(t *testing.T) {
	undelivered := fmt.Errorf("%w: slow client", push.ErrUndelivered)
	other := errors.New("insert failed")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "sentinel", err: push.ErrUndelivered, want: true},
		{name: "wrapped", err: fmt.Errorf("handler 0: %w", undelivered), want: true},
		{name: "joined push", err: errors.Join(undelivered, fmt.Errorf("x: %w", push.ErrUndelivered)), want: true},
		{name: "joined mixed", err: errors.Join(undelivered, other), want: false},
		{name: "other", err: other, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, pushOnly(tt.err))
		})
	}
}

func TestBackoffIsCapped(t *testing.T) {
	relay := newRelay(nil, nil, clock.Fake(start))
	require.Equal(t, time.Second, relay.backoff(1))
	require.Equal(t, 2*time.Second, relay.backoff(2))
	require.Equal(t, 8*time.Second, relay.backoff(4))
	require.Equal(t, 10*time.Second, relay.backoff(5))
	require.Equal(t, 10*time.Second, relay.backoff(50))
}
