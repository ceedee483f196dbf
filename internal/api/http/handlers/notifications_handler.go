package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-engine/internal/api/dto"
	"github.com/spec-kit/issue-engine/internal/push"
	"github.com/spec-kit/issue-engine/internal/service"
	apperrors "github.com/spec-kit/issue-engine/pkg/util/errorutil"
)

// NotificationsHandler serves the caller's inbox and live stream.
type NotificationsHandler struct {
	service    *service.NotificationService
	subscriber push.Subscriber
	heartbeat  time.Duration
	logger     *zap.Logger
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService, subscriber push.Subscriber, heartbeat time.Duration, logger *zap.Logger) *NotificationsHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationsHandler{service: notificationService, subscriber: subscriber, heartbeat: heartbeat, logger: logger}
}

// ListNotifications GET /notifications.
func (h *NotificationsHandler) ListNotifications(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	page, err := h.service.List(c.UserContext(), caller,
		parseBoolQuery(c, "unread", false),
		parseIntQuery(c, "limit", 0),
		parseIntQuery(c, "offset", 0))
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, notificationResponse(&page.Items[i]))
	}
	return c.JSON(fiber.Map{"data": dto.NotificationListResponse{
		Items:  items,
		Unread: page.Unread,
		Limit:  page.Limit,
		Offset: page.Offset,
	}})
}

// MarkRead PATCH /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	notification, err := h.service.MarkRead(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": notificationResponse(notification)})
}

// Stream GET /notifications/stream. Each pushed notification becomes one
// server-sent event; comments keep idle connections open. The stream ends
// when a write fails because the client went away.
func (h *NotificationsHandler) Stream(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	if h.subscriber == nil {
		return apperrors.NewInternalError(errors.New("push subscriber not configured"))
	}
	// The subscription outlives the request context, which fasthttp
	// recycles once the handler returns.
	sub, err := h.subscriber.Subscribe(context.Background(), caller.ID)
	if err != nil {
		return apperrors.MapError(err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	logger := h.logger.With(zap.String("caller_id", caller.ID))
	heartbeat := h.heartbeat
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			if err := sub.Close(); err != nil {
				logger.Debug("closing push subscription", zap.Error(err))
			}
			logger.Debug("notification stream closed")
		}()
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case msg, ok := <-sub.Messages():
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: notification\ndata: %s\n\n", msg)
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}
