package http_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/issue-engine/internal/api/http"
	"github.com/spec-kit/issue-engine/internal/api/http/handlers"
	"github.com/spec-kit/issue-engine/internal/auth"
	"github.com/spec-kit/issue-engine/internal/clock"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/events"
	"github.com/spec-kit/issue-engine/internal/observability"
	"github.com/spec-kit/issue-engine/internal/push"
	"github.com/spec-kit/issue-engine/internal/service"
	"github.com/spec-kit/issue-engine/internal/testutil"
	"github.com/spec-kit/issue-engine/internal/worker"
)

var epoch = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

type testServer struct {
	app      *fiber.App
	relay    *worker.OutboxRelay
	tokens   map[domain.Role]string
	engineer domain.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := testutil.NewTestStore(t)
	clk := clock.Fake(epoch)
	hub := push.NewHub(4)
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher()
	relay := worker.NewOutboxRelay(store, dispatcher, clk, logger, metrics, worker.RelayOptions{})

	notifications := service.NewNotificationService(service.NotificationDependencies{
		Store: store, Publisher: hub, Clock: clk, Logger: logger, Metrics: metrics,
	})
	notifications.RegisterHandlers(dispatcher)
	issues := service.NewIssueService(service.IssueDependencies{
		Store: store, Clock: clk, Nudger: relay, Logger: logger, Metrics: metrics,
	})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		Store: store, Clock: clk, Nudger: relay, Logger: logger, Metrics: metrics,
	})
	users := service.NewUserService(store, clk, logger)

	tokens := auth.NewTokenManager("test-secret", "issue-engine", time.Hour, clk)

	app := httptransport.NewApp("issue-engine-test", 0)
	httptransport.RegisterMiddlewares(app, logger, metrics, time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("issue-engine", "test", map[string]handlers.Check{"store": store.Ping}),
		Issues:         handlers.NewIssuesHandler(issues),
		Assignments:    handlers.NewAssignmentsHandler(assignments),
		Notifications:  handlers.NewNotificationsHandler(notifications, hub, time.Second, logger),
		Users:          handlers.NewUsersHandler(users),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})

	srv := &testServer{app: app, relay: relay, tokens: map[domain.Role]string{}}
	for _, role := range []domain.Role{domain.RoleCitizen, domain.RoleEngineer, domain.RoleAdmin} {
		user := testutil.SeedUser(t, store, string(role), role, epoch.Add(-time.Hour))
		token, _, err := tokens.GenerateToken(domain.Caller{ID: user.ID, Role: user.Role, Email: user.Email})
		require.NoError(t, err)
		srv.tokens[role] = token
		if role == domain.RoleEngineer {
			srv.engineer = user
		}
	}
	return srv
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, role domain.Role, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[role])
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = srv.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, status)

	resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthenticationRequired(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, http.MethodGet, "/issues", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHENTICATED", env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/issues", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	status, env := srv.do(t, http.MethodGet, "/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestIssueLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, http.MethodPost, "/issues", domain.RoleCitizen, map[string]any{
		"title": "Pothole", "description": "Deep one", "category": "road", "severity": 4,
		"latitude": 28.6, "longitude": 77.2,
	})
	require.Equal(t, http.StatusCreated, status)
	created := decode[map[string]any](t, env)
	issueID := created["id"].(string)
	require.Equal(t, "REPORTED", created["status"])
	require.Greater(t, created["priorityScore"].(float64), 0.0)
	require.Equal(t, "ON_TRACK", created["sla"].(map[string]any)["state"])

	status, env = srv.do(t, http.MethodPost, "/issues", domain.RoleCitizen, map[string]any{"title": "x"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	require.Contains(t, env.Error.Details, "severity")

	status, env = srv.do(t, http.MethodPost, "/issues", domain.RoleCitizen, map[string]any{
		"title": "Pothole", "category": "ROAD", "severity": 4,
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	require.Contains(t, env.Error.Details, "latitude")
	require.Contains(t, env.Error.Details, "longitude")

	status, env = srv.do(t, http.MethodPost, "/issues/"+issueID+"/auto-assign", domain.RoleCitizen, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = srv.do(t, http.MethodPost, "/issues/"+issueID+"/auto-assign", domain.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, status)
	assigned := decode[map[string]any](t, env)
	require.Equal(t, "VERIFIED", assigned["issue"].(map[string]any)["status"])
	require.Equal(t, srv.engineer.ID, assigned["assignment"].(map[string]any)["engineerId"])

	status, env = srv.do(t, http.MethodPatch, "/issues/"+issueID+"/status", domain.RoleEngineer, map[string]any{"status": "RESOLVED"})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	status, _ = srv.do(t, http.MethodPatch, "/issues/"+issueID+"/status", domain.RoleEngineer, map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, status)

	status, env = srv.do(t, http.MethodGet, "/issues/engineers/me/issues", domain.RoleEngineer, nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[map[string]any](t, env)
	require.EqualValues(t, 1, page["total"])

	status, env = srv.do(t, http.MethodGet, "/issues/"+issueID+"/assignments", domain.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, decode[[]map[string]any](t, env), 1)

	status, env = srv.do(t, http.MethodGet, "/stats", domain.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, status)
	stats := decode[map[string]any](t, env)
	require.EqualValues(t, 1, stats["total"])
	require.EqualValues(t, 1, stats["inProgress"])
	require.EqualValues(t, 1, stats["byCategory"].(map[string]any)["ROAD"])

	status, _ = srv.do(t, http.MethodGet, "/stats", domain.RoleCitizen, nil)
	require.Equal(t, http.StatusForbidden, status)
}

func TestNotificationsOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, http.MethodPost, "/issues", domain.RoleCitizen, map[string]any{
		"title": "Broken lamp", "description": "Dark street", "category": "LIGHTING", "severity": 2,
	})
	require.Equal(t, http.StatusCreated, status)
	_, err := srv.relay.Drain(context.Background())
	require.NoError(t, err)

	status, env := srv.do(t, http.MethodGet, "/notifications?unread=true", domain.RoleCitizen, nil)
	require.Equal(t, http.StatusOK, status)
	inbox := decode[map[string]any](t, env)
	require.EqualValues(t, 1, inbox["unread"])
	items := inbox["items"].([]any)
	require.Len(t, items, 1)
	id := items[0].(map[string]any)["id"].(string)

	status, env = srv.do(t, http.MethodPatch, "/notifications/"+id+"/read", domain.RoleAdmin, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)

	for i := 0; i < 2; i++ {
		status, env = srv.do(t, http.MethodPatch, "/notifications/"+id+"/read", domain.RoleCitizen, nil)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, true, decode[map[string]any](t, env)["isRead"])
	}
}

func TestEngineerDirectoryOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, http.MethodPost, "/users/create-engineer", domain.RoleAdmin, map[string]any{
		"name": "Nora", "email": "nora@example.test",
	})
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "ENGINEER", decode[map[string]any](t, env)["role"])

	status, env = srv.do(t, http.MethodPost, "/users/engineers", domain.RoleAdmin, map[string]any{
		"name": "Nora", "email": "nora@example.test",
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "CONFLICT", env.Error.Code)

	status, env = srv.do(t, http.MethodGet, "/users?role=ENGINEER", domain.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, decode[[]map[string]any](t, env), 2)

	status, env = srv.do(t, http.MethodGet, "/assignments/workload", domain.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, decode[[]map[string]any](t, env), 2)

	status, _ = srv.do(t, http.MethodGet, "/users", domain.RoleEngineer, nil)
	require.Equal(t, http.StatusForbidden, status)
}
