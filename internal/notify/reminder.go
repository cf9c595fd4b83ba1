// Package notify schedules renewal reminders and delivers them as push
// notifications.
package notify

import (
	"context"
	"errors"
	"time"

	"subtrack/internal/core"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusSent     Status = "sent"
	StatusCanceled Status = "canceled"
)

// DefaultLeadTime is how long before a renewal the reminder fires.
const DefaultLeadTime = 72 * time.Hour

var ErrReminderNotFound = errors.New("reminder not found")

// Reminder is a scheduled notification for one upcoming renewal. Its ID is
// the cancelable handle returned to callers.
type Reminder struct {
	ID             string
	SubscriptionID string
	UserID         string
	NotifyAt       time.Time
	RenewsOn       core.Date
	Title          string
	Body           string
	Status         Status
	CreatedAt      time.Time
	SentAt         time.Time
}

// Store persists reminders. Cancel operations on unknown or already
// delivered reminders return ErrReminderNotFound.
type Store interface {
	SaveReminder(ctx context.Context, r Reminder) error
	GetReminder(ctx context.Context, userID, id string) (Reminder, error)
	CancelReminder(ctx context.Context, userID, id string) error
	CancelSubscriptionReminders(ctx context.Context, userID, subscriptionID string) (int, error)
	CancelAllReminders(ctx context.Context, userID string) (int, error)
	// DueReminders returns pending reminders with NotifyAt <= now, oldest first.
	DueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error)
	MarkReminderSent(ctx context.Context, id string, sentAt time.Time) error
	// ListReminders returns the user's pending reminders ordered by NotifyAt.
	ListReminders(ctx context.Context, userID string) ([]Reminder, error)
}
