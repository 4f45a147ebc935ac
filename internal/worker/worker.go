package worker

import (
	"context"

	"github.com/deskflow/helpdesk-service/internal/service"
)

// StartBackground subscribes the notification handlers and arms the SLA
// scheduler. The returned func stops the scheduler.
func StartBackground(ctx context.Context, notifications *service.NotificationService, scheduler *SLAScheduler) func() {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if scheduler == nil {
		return func() {}
	}
	scheduler.Start(ctx)
	return scheduler.Stop
}
