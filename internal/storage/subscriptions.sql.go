package storage

import (
	"context"
)

const subscriptionColumns = `id, user_id, name, amount_cents, billing_frequency, start_date, category, created_at, updated_at`

func scanSubscription(row interface{ Scan(...interface{}) error }) (Subscription, error) {
	var i Subscription
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Name,
		&i.AmountCents,
		&i.BillingFrequency,
		&i.StartDate,
		&i.Category,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createSubscription = `
INSERT INTO subscriptions (id, user_id, name, amount_cents, billing_frequency, start_date, category, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + subscriptionColumns

type CreateSubscriptionParams struct {
	ID               string
	UserID           string
	Name             string
	AmountCents      int64
	BillingFrequency string
	StartDate        string
	Category         string
	CreatedAt        string
	UpdatedAt        string
}

func (q *Queries) CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) (Subscription, error) {
	row := q.db.QueryRowContext(ctx, createSubscription,
		arg.ID,
		arg.UserID,
		arg.Name,
		arg.AmountCents,
		arg.BillingFrequency,
		arg.StartDate,
		arg.Category,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanSubscription(row)
}

const getSubscription = `
SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE id = ? AND user_id = ?`

func (q *Queries) GetSubscription(ctx context.Context, id, userID string) (Subscription, error) {
	return scanSubscription(q.db.QueryRowContext(ctx, getSubscription, id, userID))
}

const listSubscriptionsByUser = `
SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE user_id = ?
ORDER BY created_at DESC, rowid DESC`

func (q *Queries) ListSubscriptionsByUser(ctx context.Context, userID string) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, listSubscriptionsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Subscription
	for rows.Next() {
		i, err := scanSubscription(rows)
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

const updateSubscription = `
UPDATE subscriptions
SET name = ?, amount_cents = ?, billing_frequency = ?, start_date = ?, category = ?, updated_at = ?
WHERE id = ? AND user_id = ?
RETURNING ` + subscriptionColumns

type UpdateSubscriptionParams struct {
	Name             string
	AmountCents      int64
	BillingFrequency string
	StartDate        string
	Category         string
	UpdatedAt        string
	ID               string
	UserID           string
}

func (q *Queries) UpdateSubscription(ctx context.Context, arg UpdateSubscriptionParams) (Subscription, error) {
	row := q.db.QueryRowContext(ctx, updateSubscription,
		arg.Name,
		arg.AmountCents,
		arg.BillingFrequency,
		arg.StartDate,
		arg.Category,
		arg.UpdatedAt,
		arg.ID,
		arg.UserID,
	)
	return scanSubscription(row)
}

const deleteSubscription = `DELETE FROM subscriptions WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteSubscription(ctx context.Context, id, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSubscription, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
