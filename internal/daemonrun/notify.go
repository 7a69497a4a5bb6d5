package daemonrun

import (
	"context"
	"log/slog"

	"fieldsync/internal/logging"
	"fieldsync/internal/notifications"
	"fieldsync/internal/syncer"
)

// reportNotifier publishes background pass outcomes. Notification failures
// are logged and never affect the pass.
func reportNotifier(notifier notifications.Service, logger *slog.Logger) syncer.ReportHook {
	return func(ctx context.Context, report syncer.Report) {
		if notifier == nil {
			return
		}
		if report.Succeeded > 0 {
			publish(ctx, notifier, logger, notifications.EventSyncCompleted, notifications.Payload{
				"succeeded": report.Succeeded,
				"failed":    report.Failed,
				"duration":  report.Duration,
			})
		}
		if report.DeadLettered > 0 {
			publish(ctx, notifier, logger, notifications.EventDeadLetters, notifications.Payload{
				"count": report.DeadLettered,
			})
		}
	}
}

func publish(ctx context.Context, notifier notifications.Service, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.Error(err),
			logging.String("event", string(event)),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "sync continues without push notifications"),
		)
	}
}
