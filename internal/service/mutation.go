package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/events"
	"github.com/spec-kit/issue-engine/internal/lock"
	"github.com/spec-kit/issue-engine/internal/repository"
	apperrors "github.com/spec-kit/issue-engine/pkg/util/errorutil"
)

// Nudger wakes the outbox relay after a commit so notifications do not wait
// for the next poll.
type Nudger interface {
	Nudge()
}

type noopNudger struct{}

func (noopNudger) Nudge() {}

// mutator runs lifecycle writes: under the per-issue lock, within the
// operation deadline, inside one transaction, retried once on a stale
// version.
type mutator struct {
	store   repository.Store
	locker  lock.IssueLocker
	nudger  Nudger
	timeout time.Duration
	logger  *zap.Logger
}

func newMutator(store repository.Store, locker lock.IssueLocker, nudger Nudger, timeout time.Duration, logger *zap.Logger) *mutator {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if nudger == nil {
		nudger = noopNudger{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &mutator{store: store, locker: locker, nudger: nudger, timeout: timeout, logger: logger}
}

// apply runs fn for issueID. An empty issueID skips locking, which is only
// correct for rows nobody else can see yet.
func (m *mutator) apply(ctx context.Context, issueID string, fn func(ctx context.Context, tx repository.Store) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if issueID != "" {
		unlock, err := m.locker.Lock(ctx, lock.IssueKey(issueID))
		if err != nil {
			return apperrors.MapError(err)
		}
		defer unlock()
	}

	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		err = m.store.WithinTx(ctx, func(tx repository.Store) error {
			return fn(ctx, tx)
		})
		if err == nil {
			m.nudger.Nudge()
			return nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
		m.logger.Debug("optimistic conflict", zap.String("issue_id", issueID), zap.Int("attempt", attempt))
	}

	if errors.Is(err, repository.ErrConflict) {
		return apperrors.NewConflict("issue was modified concurrently", map[string]any{"issue_id": issueID})
	}
	return apperrors.MapError(err)
}

// enqueue writes events to the outbox of the surrounding transaction.
func enqueue(ctx context.Context, tx repository.Store, evts ...events.Event) error {
	for _, event := range evts {
		entry, err := events.ToOutbox(event)
		if err != nil {
			return err
		}
		if err := tx.Outbox().Enqueue(ctx, &entry); err != nil {
			return err
		}
	}
	return nil
}

func notFoundIssue(issueID string) error {
	return apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
}

// loadIssue maps a missing row to NotFound.
func loadIssue(ctx context.Context, tx repository.Store, issueID string) (*domain.Issue, error) {
	issue, err := tx.Issues().GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundIssue(issueID)
		}
		return nil, err
	}
	return issue, nil
}
