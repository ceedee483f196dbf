package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-engine/internal/clock"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/events"
	"github.com/spec-kit/issue-engine/internal/observability"
	"github.com/spec-kit/issue-engine/internal/push"
	"github.com/spec-kit/issue-engine/internal/repository"
	apperrors "github.com/spec-kit/issue-engine/pkg/util/errorutil"
)

// notificationNamespace seeds the uuid v5 ids that make redelivered events
// land on the rows they already produced.
var notificationNamespace = uuid.MustParse("6f1f4c1e-8f8e-4b7a-9a43-4c1f0e5d2a17")

// Recipient is either a single user or every user holding a role.
type Recipient struct {
	UserID string
	Role   domain.Role
}

// ToUser addresses one user.
func ToUser(userID string) Recipient {
	return Recipient{UserID: userID}
}

// ToRole addresses every user holding role at fan-out time.
func ToRole(role domain.Role) Recipient {
	return Recipient{Role: role}
}

func (r Recipient) String() string {
	if r.UserID != "" {
		return "user:" + r.UserID
	}
	return "role:" + string(r.Role)
}

// NotificationService turns lifecycle events into durable per-user
// notifications and pushes them to connected clients.
type NotificationService struct {
	store     repository.Store
	publisher push.Publisher
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	Store     repository.Store
	Publisher push.Publisher
	Clock     clock.Clock
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &NotificationService{
		store:     deps.Store,
		publisher: deps.Publisher,
		clock:     clk,
		logger:    logger,
		metrics:   deps.Metrics,
	}
}

// RegisterHandlers subscribes to lifecycle events.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventIssueCreated, n.handleIssueCreated)
	dispatcher.Subscribe(events.EventIssueAssigned, n.handleIssueAssigned)
	dispatcher.Subscribe(events.EventIssueStatusChanged, n.handleIssueStatusChanged)
}

type delivery struct {
	to      Recipient
	message string
}

func (n *NotificationService) handleIssueCreated(ctx context.Context, event events.Event) error {
	var payload events.IssueCreatedPayload
	if err := event.Decode(&payload); err != nil {
		return err
	}
	return n.fanOut(ctx, event, domain.NotificationIssueCreated, []delivery{
		{to: ToUser(payload.ReporterID), message: fmt.Sprintf("Your issue %q was received", payload.Title)},
		{to: ToRole(domain.RoleAdmin), message: fmt.Sprintf("New %s issue reported: %q (severity %d)",
			strings.ToLower(string(payload.Category)), payload.Title, payload.Severity)},
	})
}

func (n *NotificationService) handleIssueAssigned(ctx context.Context, event events.Event) error {
	var payload events.IssueAssignedPayload
	if err := event.Decode(&payload); err != nil {
		return err
	}
	return n.fanOut(ctx, event, domain.NotificationIssueAssigned, []delivery{
		{to: ToUser(payload.ReporterID), message: fmt.Sprintf("Your issue %q was assigned to %s", payload.Title, payload.EngineerName)},
		{to: ToUser(payload.EngineerID), message: fmt.Sprintf("You were assigned issue %q", payload.Title)},
		{to: ToRole(domain.RoleAdmin), message: fmt.Sprintf("Issue %q assigned to %s (%s)",
			payload.Title, payload.EngineerName, strings.ToLower(string(payload.Strategy)))},
	})
}

func (n *NotificationService) handleIssueStatusChanged(ctx context.Context, event events.Event) error {
	var payload events.IssueStatusChangedPayload
	if err := event.Decode(&payload); err != nil {
		return err
	}
	deliveries := []delivery{
		{to: ToUser(payload.ReporterID), message: fmt.Sprintf("Your issue %q is now %s", payload.Title, payload.NewStatus)},
		{to: ToRole(domain.RoleAdmin), message: fmt.Sprintf("Issue %q moved from %s to %s",
			payload.Title, payload.OldStatus, payload.NewStatus)},
	}
	if event.Actor.Role == domain.RoleAdmin && payload.EngineerID != nil {
		deliveries = append(deliveries, delivery{
			to:      ToUser(*payload.EngineerID),
			message: fmt.Sprintf("Issue %q assigned to you is now %s", payload.Title, payload.NewStatus),
		})
	}
	return n.fanOut(ctx, event, domain.NotificationIssueStatusChanged, deliveries)
}

// Emit notifies a user or a role outside the lifecycle events. It returns
// the number of recipients reached.
func (n *NotificationService) Emit(ctx context.Context, to Recipient, message string) (int, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return 0, apperrors.NewValidationError("message is required", nil)
	}
	if to.UserID == "" && !to.Role.Valid() {
		return 0, apperrors.NewValidationError("recipient must be a user id or a role", map[string]any{"role": to.Role})
	}
	event := events.Event{ID: uuid.NewString(), Timestamp: n.clock.Now()}
	reached, err := n.deliver(ctx, event, domain.NotificationGeneric, []delivery{{to: to, message: message}})
	if err != nil && !errors.Is(err, push.ErrUndelivered) {
		return reached, apperrors.MapError(err)
	}
	return reached, nil
}

func (n *NotificationService) fanOut(ctx context.Context, event events.Event, kind domain.NotificationKind, deliveries []delivery) error {
	_, err := n.deliver(ctx, event, kind, deliveries)
	return err
}

// deliver resolves recipients, writes one row per distinct user and pushes
// it. Persistence errors abort; push errors are collected and returned as
// ErrUndelivered once every row is stored.
func (n *NotificationService) deliver(ctx context.Context, event events.Event, kind domain.NotificationKind, deliveries []delivery) (int, error) {
	seen := make(map[string]struct{})
	var pushErrs []error
	for _, d := range deliveries {
		userIDs, err := n.resolve(ctx, d.to)
		if err != nil {
			return len(seen), fmt.Errorf("resolve %s: %w", d.to, err)
		}
		for _, userID := range userIDs {
			if _, dup := seen[userID]; dup {
				continue
			}
			seen[userID] = struct{}{}

			notification := n.build(event, kind, userID, d.message)
			created, err := n.store.Notifications().CreateIfAbsent(ctx, notification)
			if err != nil {
				return len(seen), fmt.Errorf("persist notification for %s: %w", userID, err)
			}
			n.metrics.RecordNotification(string(kind), created)

			if err := n.push(ctx, notification); err != nil {
				pushErrs = append(pushErrs, err)
			}
		}
	}
	return len(seen), errors.Join(pushErrs...)
}

func (n *NotificationService) resolve(ctx context.Context, to Recipient) ([]string, error) {
	if to.UserID != "" {
		return []string{to.UserID}, nil
	}
	users, err := n.store.Users().ListByRole(ctx, to.Role)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(users))
	for i, user := range users {
		ids[i] = user.ID
	}
	return ids, nil
}

func (n *NotificationService) build(event events.Event, kind domain.NotificationKind, userID, message string) *domain.Notification {
	notification := &domain.Notification{
		ID:          NotificationID(event.ID, userID),
		RecipientID: userID,
		EventID:     event.ID,
		Kind:        kind,
		Message:     message,
		CreatedAt:   n.clock.Now(),
	}
	if event.IssueID != "" {
		issueID := event.IssueID
		notification.IssueID = &issueID
	}
	return notification
}

// NotificationID derives the stable id of the row one event produces for
// one recipient.
func NotificationID(eventID, recipientID string) string {
	return uuid.NewSHA1(notificationNamespace, []byte(eventID+"/"+recipientID)).String()
}

// PushMessage is the payload sent to live clients.
type PushMessage struct {
	ID        string                  `json:"id"`
	Kind      domain.NotificationKind `json:"kind"`
	Message   string                  `json:"message"`
	IssueID   *string                 `json:"issueId,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
}

func (n *NotificationService) push(ctx context.Context, notification *domain.Notification) error {
	if n.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(PushMessage{
		ID:        notification.ID,
		Kind:      notification.Kind,
		Message:   notification.Message,
		IssueID:   notification.IssueID,
		CreatedAt: notification.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("%w: encode: %v", push.ErrUndelivered, err)
	}
	if err := n.publisher.Publish(ctx, notification.RecipientID, payload); err != nil {
		n.metrics.RecordPushFailure()
		n.logger.Debug("push failed",
			zap.String("notification_id", notification.ID),
			zap.String("recipient_id", notification.RecipientID),
			zap.Error(err))
		if !errors.Is(err, push.ErrUndelivered) {
			err = fmt.Errorf("%w: %v", push.ErrUndelivered, err)
		}
		return err
	}
	return nil
}

// NotificationPage is one page of a caller's notifications.
type NotificationPage struct {
	Items  []domain.Notification
	Unread int
	Limit  int
	Offset int
}

// List returns the caller's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, caller domain.Caller, unreadOnly bool, limit, offset int) (*NotificationPage, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthenticated("caller required")
	}
	limit, offset = pageBounds(limit, offset)
	items, err := n.store.Notifications().ListByRecipient(ctx, repository.NotificationFilter{
		RecipientID: caller.ID,
		UnreadOnly:  unreadOnly,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	unread, err := n.store.Notifications().CountUnread(ctx, caller.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return &NotificationPage{Items: items, Unread: unread, Limit: limit, Offset: offset}, nil
}

// UnreadCount returns how many of the caller's notifications are unread.
func (n *NotificationService) UnreadCount(ctx context.Context, caller domain.Caller) (int, error) {
	if !caller.Authenticated() {
		return 0, apperrors.NewUnauthenticated("caller required")
	}
	count, err := n.store.Notifications().CountUnread(ctx, caller.ID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// MarkRead flags a notification as read for its recipient. Repeat calls
// return the row unchanged.
func (n *NotificationService) MarkRead(ctx context.Context, caller domain.Caller, notificationID string) (*domain.Notification, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthenticated("caller required")
	}
	notification, err := n.loadNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if notification.RecipientID != caller.ID {
		return nil, apperrors.NewUnauthorized("notification belongs to another user")
	}
	if notification.IsRead {
		return notification, nil
	}
	if _, err := n.store.Notifications().MarkRead(ctx, notificationID, n.clock.Now()); err != nil {
		return nil, apperrors.MapError(err)
	}
	return n.loadNotification(ctx, notificationID)
}

func (n *NotificationService) loadNotification(ctx context.Context, notificationID string) (*domain.Notification, error) {
	notification, err := n.store.Notifications().GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return nil, apperrors.MapError(err)
	}
	return notification, nil
}
