package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"subtrack/internal/analytics"
	"subtrack/internal/core"
)

const (
	reminderTitle      = "Subscription Renewal Reminder"
	reminderDateLayout = "Jan 02, 2006"
)

// maxSkippedCycles bounds the search for a renewal whose notify time is
// still ahead, for leads longer than one billing period.
const maxSkippedCycles = 24

// Scheduler turns subscriptions into pending reminders.
type Scheduler struct {
	store Store
	lead  time.Duration
	now   func() time.Time
}

// NewScheduler creates a scheduler. A non-positive lead uses DefaultLeadTime.
func NewScheduler(store Store, lead time.Duration) *Scheduler {
	if lead <= 0 {
		lead = DefaultLeadTime
	}
	return &Scheduler{store: store, lead: lead, now: time.Now}
}

// ReminderText renders the notification title and body for a renewal.
func ReminderText(sub core.Subscription, renewsOn core.Date) (title, body string) {
	body = fmt.Sprintf("Your subscription to %s will renew on %s. Amount: %s",
		sub.Name, renewsOn.Format(reminderDateLayout), core.FormatUSD(sub.Amount.Decimal()))
	return reminderTitle, body
}

// Schedule replaces any pending reminder of sub with one that fires lead
// before its next renewal. A non-positive lead uses the scheduler default.
// When the notify time of the next renewal has already passed, the following
// cycle is used. The returned ID cancels the reminder; ok is false when sub
// has no projectable renewal.
func (s *Scheduler) Schedule(ctx context.Context, sub core.Subscription, lead time.Duration) (string, bool, error) {
	if lead <= 0 {
		lead = s.lead
	}
	if _, err := s.store.CancelSubscriptionReminders(ctx, sub.UserID, sub.ID); err != nil {
		return "", false, fmt.Errorf("cancel previous reminders: %w", err)
	}

	now := s.now()
	renewsOn, ok := analytics.NextRenewal(sub, now)
	if !ok {
		slog.WarnContext(ctx, "Subscription has no projectable renewal, reminder not scheduled",
			"subscription_id", sub.ID, "billing_frequency", sub.Frequency)
		return "", false, nil
	}
	notifyAt := renewsOn.Add(-lead)
	for i := 0; !notifyAt.After(now); i++ {
		if i == maxSkippedCycles {
			return "", false, nil
		}
		renewsOn, _ = analytics.NextRenewal(sub, renewsOn.AddDate(0, 0, 1))
		notifyAt = renewsOn.Add(-lead)
	}

	title, body := ReminderText(sub, renewsOn)
	reminder := Reminder{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		NotifyAt:       notifyAt.UTC(),
		RenewsOn:       renewsOn,
		Title:          title,
		Body:           body,
		Status:         StatusPending,
		CreatedAt:      now.UTC(),
	}
	if err := s.store.SaveReminder(ctx, reminder); err != nil {
		return "", false, fmt.Errorf("save reminder: %w", err)
	}

	slog.InfoContext(ctx, "Renewal reminder scheduled",
		"reminder_id", reminder.ID,
		"subscription_id", sub.ID,
		"renews_on", renewsOn.String(),
		"notify_at", reminder.NotifyAt)
	return reminder.ID, true, nil
}

// Cancel cancels one pending reminder by handle.
func (s *Scheduler) Cancel(ctx context.Context, userID, id string) error {
	return s.store.CancelReminder(ctx, userID, id)
}

// CancelSubscription cancels every pending reminder of one subscription.
func (s *Scheduler) CancelSubscription(ctx context.Context, userID, subscriptionID string) (int, error) {
	return s.store.CancelSubscriptionReminders(ctx, userID, subscriptionID)
}

// CancelAll cancels every pending reminder of the user.
func (s *Scheduler) CancelAll(ctx context.Context, userID string) (int, error) {
	n, err := s.store.CancelAllReminders(ctx, userID)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "All reminders canceled", "user_id", userID, "count", n)
	return n, nil
}

// Pending lists the user's pending reminders, soonest first.
func (s *Scheduler) Pending(ctx context.Context, userID string) ([]Reminder, error) {
	return s.store.ListReminders(ctx, userID)
}
