package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"subtrack/internal/amqp"
	"subtrack/internal/metrics"
	"subtrack/internal/notify"
	"subtrack/internal/preferences"
)

// SettingsStore reads and writes the per-user application context.
type SettingsStore interface {
	Load(ctx context.Context, userID string) (preferences.Settings, error)
	Save(ctx context.Context, userID string, settings preferences.Settings) error
}

// ReminderWorker delivers due reminders as push notifications.
type ReminderWorker struct {
	settings SettingsStore
	pusher   notify.Pusher
}

func NewReminderWorker(settings SettingsStore, pusher notify.Pusher) *ReminderWorker {
	return &ReminderWorker{settings: settings, pusher: pusher}
}

// HandleReminderDue pushes one reminder when the user has notifications
// enabled and a registered device. A returned error requeues the message.
func (w *ReminderWorker) HandleReminderDue(ctx context.Context, msg *amqp.ReminderDueMessage) error {
	slog.InfoContext(ctx, "Processing reminder",
		"reminder_id", msg.ReminderID,
		"subscription_id", msg.SubscriptionID,
		"user_id", msg.UserID)

	settings, err := w.settings.Load(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !settings.CanPush() {
		slog.InfoContext(ctx, "Push disabled for user, dropping reminder",
			"user_id", msg.UserID,
			"notifications_enabled", settings.NotificationsEnabled,
			"has_push_token", settings.PushToken != "")
		metrics.RecordReminderDelivery("skipped")
		return nil
	}

	err = w.pusher.Push(ctx, notify.Notification{
		To:    settings.PushToken,
		Title: msg.Title,
		Body:  msg.Body,
		Data: map[string]string{
			"reminderId":     msg.ReminderID,
			"subscriptionId": msg.SubscriptionID,
			"renewsOn":       msg.RenewsOn,
		},
	})
	if errors.Is(err, notify.ErrDeviceNotRegistered) {
		slog.WarnContext(ctx, "Push token no longer registered, clearing it", "user_id", msg.UserID)
		metrics.RecordReminderDelivery("unregistered")
		settings.PushToken = ""
		if err := w.settings.Save(ctx, msg.UserID, settings); err != nil {
			return fmt.Errorf("clear push token: %w", err)
		}
		return nil
	}
	if err != nil {
		metrics.RecordReminderDelivery("failed")
		return fmt.Errorf("push reminder: %w", err)
	}
	metrics.RecordReminderDelivery("sent")

	slog.InfoContext(ctx, "Reminder delivered",
		"reminder_id", msg.ReminderID,
		"user_id", msg.UserID)
	return nil
}
