package worker

import (
	"context"

	"github.com/spec-kit/issue-engine/internal/events"
	"github.com/spec-kit/issue-engine/internal/service"
)

// StartNotificationWorker registers notification handlers on dispatcher and
// runs the relay in the background. The returned channel closes once the
// relay has stopped after ctx is cancelled.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, dispatcher events.Dispatcher, relay *OutboxRelay) <-chan struct{} {
	done := make(chan struct{})
	if notificationService == nil || relay == nil {
		close(done)
		return done
	}
	notificationService.RegisterHandlers(dispatcher)
	go func() {
		defer close(done)
		relay.Run(ctx)
	}()
	return done
}
