package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-engine/internal/clock"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/events"
	"github.com/spec-kit/issue-engine/internal/observability"
	"github.com/spec-kit/issue-engine/internal/push"
	"github.com/spec-kit/issue-engine/internal/repository"
)

// RelayOptions tunes the outbox relay.
type RelayOptions struct {
	PollInterval    time.Duration
	BatchSize       int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	MaxPushAttempts int
}

func (o RelayOptions) withDefaults() RelayOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff < o.BaseBackoff {
		o.MaxBackoff = 5 * time.Minute
	}
	if o.MaxPushAttempts <= 0 {
		o.MaxPushAttempts = 5
	}
	return o
}

// OutboxRelay drains committed lifecycle events into the dispatcher.
// Delivery is at least once; handlers must tolerate repeats. Run one relay
// per database.
type OutboxRelay struct {
	store      repository.Store
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *observability.Metrics
	opts       RelayOptions
	wake       chan struct{}
}

// NewOutboxRelay creates a relay.
func NewOutboxRelay(store repository.Store, dispatcher events.Dispatcher, clk clock.Clock, logger *zap.Logger, metrics *observability.Metrics, opts RelayOptions) *OutboxRelay {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxRelay{
		store:      store,
		dispatcher: dispatcher,
		clock:      clk,
		logger:     logger,
		metrics:    metrics,
		opts:       opts.withDefaults(),
		wake:       make(chan struct{}, 1),
	}
}

// Nudge asks a running relay to drain now instead of at the next tick.
func (r *OutboxRelay) Nudge() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run drains on every tick or nudge until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started", zap.Duration("poll_interval", r.opts.PollInterval))
	for {
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("outbox drain failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

// Drain processes due entries batch by batch until none remain and returns
// how many it handled.
func (r *OutboxRelay) Drain(ctx context.Context) (int, error) {
	processed := 0
	for {
		entries, err := r.store.Outbox().FetchDue(ctx, r.clock.Now(), r.opts.BatchSize)
		if err != nil {
			return processed, err
		}
		for _, entry := range entries {
			if err := r.process(ctx, entry); err != nil {
				return processed, err
			}
			processed++
		}
		if len(entries) < r.opts.BatchSize {
			break
		}
	}
	if pending, err := r.store.Outbox().PendingCount(ctx); err == nil {
		r.metrics.SetOutboxPending(pending)
	}
	return processed, nil
}

// process dispatches one entry. The returned error only reports failures to
// update the outbox row itself.
func (r *OutboxRelay) process(ctx context.Context, entry domain.OutboxEntry) error {
	log := r.logger.With(
		zap.String("event_id", entry.ID),
		zap.String("event_type", entry.EventType),
		zap.String("issue_id", entry.IssueID))

	event, err := events.FromOutbox(entry)
	if err != nil {
		log.Error("dropping undecodable outbox entry", zap.Error(err))
		r.metrics.RecordOutboxEvent(entry.EventType, "dropped")
		return r.store.Outbox().MarkDispatched(ctx, entry.ID, r.clock.Now())
	}

	dispatchErr := r.dispatcher.Publish(ctx, event)
	now := r.clock.Now()
	attempts := entry.Attempts + 1

	switch {
	case dispatchErr == nil:
		r.metrics.RecordOutboxEvent(entry.EventType, "dispatched")
		return r.store.Outbox().MarkDispatched(ctx, entry.ID, now)

	case pushOnly(dispatchErr):
		if attempts >= r.opts.MaxPushAttempts {
			log.Warn("giving up on push delivery; notifications are stored",
				zap.Int("attempts", attempts), zap.Error(dispatchErr))
			r.metrics.RecordOutboxEvent(entry.EventType, "push_dropped")
			return r.store.Outbox().MarkDispatched(ctx, entry.ID, now)
		}
		log.Debug("push delivery incomplete; retrying", zap.Int("attempts", attempts), zap.Error(dispatchErr))
		r.metrics.RecordOutboxEvent(entry.EventType, "push_retry")
		return r.store.Outbox().MarkFailed(ctx, entry.ID, attempts, now.Add(r.backoff(attempts)), dispatchErr.Error())

	default:
		log.Warn("outbox dispatch failed; retrying", zap.Int("attempts", attempts), zap.Error(dispatchErr))
		r.metrics.RecordOutboxEvent(entry.EventType, "retry")
		return r.store.Outbox().MarkFailed(ctx, entry.ID, attempts, now.Add(r.backoff(attempts)), dispatchErr.Error())
	}
}

// backoff doubles from BaseBackoff per attempt, capped at MaxBackoff.
func (r *OutboxRelay) backoff(attempts int) time.Duration {
	delay := r.opts.BaseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= r.opts.MaxBackoff {
			return r.opts.MaxBackoff
		}
	}
	return delay
}

// pushOnly reports whether every leaf of err is push.ErrUndelivered.
func pushOnly(err error) bool {
	if err == nil {
		return false
	}
	if err == push.ErrUndelivered { //nolint:errorlint // leaf comparison while walking the tree
		return true
	}
	switch wrapped := err.(type) {
	case interface{ Unwrap() []error }:
		children := wrapped.Unwrap()
		if len(children) == 0 {
			return false
		}
		for _, child := range children {
			if !pushOnly(child) {
				return false
			}
		}
		return true
	case interface{ Unwrap() error }:
		return pushOnly(wrapped.Unwrap())
	}
	return false
}
