package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-engine/internal/clock"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/events"
	"github.com/spec-kit/issue-engine/internal/lock"
	"github.com/spec-kit/issue-engine/internal/push"
	"github.com/spec-kit/issue-engine/internal/ratelimit"
	"github.com/spec-kit/issue-engine/internal/repository"
	"github.com/spec-kit/issue-engine/internal/service"
	"github.com/spec-kit/issue-engine/internal/testutil"
	"github.com/spec-kit/issue-engine/internal/worker"
	apperrors "github.com/spec-kit/issue-engine/pkg/util/errorutil"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	ctx   context.Context
	store repository.Store
	clock *clock.FakeClock
	hub   *push.Hub

	dispatcher    events.Dispatcher
	relay         *worker.OutboxRelay
	issues        *service.IssueService
	assignments   *service.AssignmentService
	notifications *service.NotificationService
	users         *service.UserService

	admin    domain.User
	citizen  domain.User
	engineer domain.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := testutil.NewTestStore(t)
	clk := clock.Fake(epoch)
	hub := push.NewHub(8)
	locker := lock.NewLocal()
	dispatcher := events.NewInMemoryDispatcher()

	h := &harness{
		ctx:        context.Background(),
		store:      store,
		clock:      clk,
		hub:        hub,
		dispatcher: dispatcher,
	}
	h.relay = worker.NewOutboxRelay(store, dispatcher, clk, nil, nil, worker.RelayOptions{})
	h.notifications = service.NewNotificationService(service.NotificationDependencies{
		Store:     store,
		Publisher: hub,
		Clock:     clk,
	})
	h.notifications.RegisterHandlers(dispatcher)
	h.issues = service.NewIssueService(service.IssueDependencies{
		Store:   store,
		Clock:   clk,
		Locker:  locker,
		Nudger:  h.relay,
		Limiter: ratelimit.NewLocalLimiter(clk, 3, 24*time.Hour),
	})
	h.assignments = service.NewAssignmentService(service.AssignmentDependencies{
		Store:  store,
		Clock:  clk,
		Locker: locker,
		Nudger: h.relay,
	})
	h.users = service.NewUserService(store, clk, nil)

	h.admin = testutil.SeedUser(t, store, "ada", domain.RoleAdmin, epoch.Add(-72*time.Hour))
	h.citizen = testutil.SeedUser(t, store, "carl", domain.RoleCitizen, epoch.Add(-72*time.Hour))
	h.engineer = testutil.SeedUser(t, store, "erin", domain.RoleEngineer, epoch.Add(-48*time.Hour))
	return h
}

func callerOf(user domain.User) domain.Caller {
	return domain.Caller{ID: user.ID, Role: user.Role, Email: user.Email}
}

// drain delivers every queued lifecycle event.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	_, err := h.relay.Drain(h.ctx)
	require.NoError(t, err)
}

func (h *harness) report(t *testing.T, reporter domain.User, title string, severity int, category domain.IssueCategory) *service.IssueView {
	t.Helper()
	view, err := h.issues.Create(h.ctx, callerOf(reporter), service.CreateIssueInput{
		Title:       title,
		Description: title + " needs attention",
		Category:    category,
		Severity:    severity,
		Latitude:    ptr(28.6),
		Longitude:   ptr(77.2),
	})
	require.NoError(t, err)
	return view
}

func (h *harness) inbox(t *testing.T, user domain.User) []domain.Notification {
	t.Helper()
	page, err := h.notifications.List(h.ctx, callerOf(user), false, 0, 0)
	require.NoError(t, err)
	return page.Items
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperrors.IsCode(err, code), "expected %s, got %v", code, err)
}
