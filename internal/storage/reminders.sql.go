package storage

import (
	"context"
	"database/sql"
)

const reminderColumns = `id, subscription_id, user_id, notify_at, renews_on, title, body, status, created_at, sent_at`

func scanReminder(row interface{ Scan(...interface{}) error }) (Reminder, error) {
	var i Reminder
	err := row.Scan(
		&i.ID,
		&i.SubscriptionID,
		&i.UserID,
		&i.NotifyAt,
		&i.RenewsOn,
		&i.Title,
		&i.Body,
		&i.Status,
		&i.CreatedAt,
		&i.SentAt,
	)
	return i, err
}

func collectReminders(rows *sql.Rows) ([]Reminder, error) {
	defer rows.Close()
	var items []Reminder
	for rows.Next() {
		i, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createReminder = `
INSERT INTO reminders (id, subscription_id, user_id, notify_at, renews_on, title, body, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateReminderParams struct {
	ID             string
	SubscriptionID string
	UserID         string
	NotifyAt       string
	RenewsOn       string
	Title          string
	Body           string
	Status         string
	CreatedAt      string
}

func (q *Queries) CreateReminder(ctx context.Context, arg CreateReminderParams) error {
	_, err := q.db.ExecContext(ctx, createReminder,
		arg.ID,
		arg.SubscriptionID,
		arg.UserID,
		arg.NotifyAt,
		arg.RenewsOn,
		arg.Title,
		arg.Body,
		arg.Status,
		arg.CreatedAt,
	)
	return err
}

const getReminder = `SELECT ` + reminderColumns + ` FROM reminders WHERE id = ? AND user_id = ?`

func (q *Queries) GetReminder(ctx context.Context, id, userID string) (Reminder, error) {
	return scanReminder(q.db.QueryRowContext(ctx, getReminder, id, userID))
}

const cancelReminder = `
UPDATE reminders SET status = 'canceled'
WHERE id = ? AND user_id = ? AND status = 'pending'`

func (q *Queries) CancelReminder(ctx context.Context, id, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, cancelReminder, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const cancelSubscriptionReminders = `
UPDATE reminders SET status = 'canceled'
WHERE user_id = ? AND subscription_id = ? AND status = 'pending'`

func (q *Queries) CancelSubscriptionReminders(ctx context.Context, userID, subscriptionID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, cancelSubscriptionReminders, userID, subscriptionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const cancelAllReminders = `
UPDATE reminders SET status = 'canceled'
WHERE user_id = ? AND status = 'pending'`

func (q *Queries) CancelAllReminders(ctx context.Context, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, cancelAllReminders, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listDueReminders = `
SELECT ` + reminderColumns + `
FROM reminders
WHERE status = 'pending' AND notify_at <= ?
ORDER BY notify_at ASC, rowid ASC
LIMIT ?`

func (q *Queries) ListDueReminders(ctx context.Context, now string, limit int64) ([]Reminder, error) {
	rows, err := q.db.QueryContext(ctx, listDueReminders, now, limit)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

const listPendingRemindersByUser = `
SELECT ` + reminderColumns + `
FROM reminders
WHERE user_id = ? AND status = 'pending'
ORDER BY notify_at ASC, rowid ASC`

func (q *Queries) ListPendingRemindersByUser(ctx context.Context, userID string) ([]Reminder, error) {
	rows, err := q.db.QueryContext(ctx, listPendingRemindersByUser, userID)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

const markReminderSent = `
UPDATE reminders SET status = 'sent', sent_at = ?
WHERE id = ? AND status = 'pending'`

func (q *Queries) MarkReminderSent(ctx context.Context, id, sentAt string) (int64, error) {
	result, err := q.db.ExecContext(ctx, markReminderSent, sentAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
