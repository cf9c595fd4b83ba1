// Package postgres stores subscriptions in the hosted Postgres database
// behind the mobile client. Amounts are numeric there and are converted to
// cents on read.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"subtrack/internal/core"
	"subtrack/internal/store"
)

type subscriptionRow struct {
	ID               string          `db:"id"`
	UserID           string          `db:"user_id"`
	Name             string          `db:"name"`
	Amount           decimal.Decimal `db:"amount"`
	BillingFrequency string          `db:"billing_frequency"`
	StartDate        time.Time       `db:"start_date"`
	Category         sql.NullString  `db:"category"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

const subscriptionColumns = `id, user_id, name, amount, billing_frequency, start_date, category, created_at, updated_at`

type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewRepository(db), nil
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (row subscriptionRow) domain(ctx context.Context) core.Subscription {
	cat := core.Category(row.Category.String)
	if !cat.Valid() {
		if row.Category.Valid && row.Category.String != "" {
			slog.WarnContext(ctx, "Unknown category in postgres, using Other",
				"id", row.ID, "category", row.Category.String)
		}
		cat = core.Other
	}
	return core.Subscription{
		ID:        row.ID,
		UserID:    row.UserID,
		Name:      row.Name,
		Amount:    core.MoneyFromDecimal(row.Amount),
		Frequency: core.BillingFrequency(row.BillingFrequency),
		StartDate: core.DateOf(row.StartDate.UTC()),
		Category:  cat,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (r *Repository) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	var rows []subscriptionRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	out := make([]core.Subscription, len(rows))
	for i, row := range rows {
		out[i] = row.domain(ctx)
	}
	return out, nil
}

func (r *Repository) GetSubscription(ctx context.Context, userID, id string) (core.Subscription, error) {
	var row subscriptionRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, store.ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return row.domain(ctx), nil
}

func (r *Repository) CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	if err := s.Validate(); err != nil {
		return core.Subscription{}, err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := r.now().UTC()
	var row subscriptionRow
	err := r.db.GetContext(ctx, &row,
		`INSERT INTO subscriptions (id, user_id, name, amount, billing_frequency, start_date, category, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 RETURNING `+subscriptionColumns,
		s.ID, s.UserID, s.Name, s.Amount.Decimal(), string(s.Frequency), s.StartDate.Time, string(s.Category), now)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	return row.domain(ctx), nil
}

func (r *Repository) UpdateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	if err := s.Validate(); err != nil {
		return core.Subscription{}, err
	}
	var row subscriptionRow
	err := r.db.GetContext(ctx, &row,
		`UPDATE subscriptions
		 SET name = $1, amount = $2, billing_frequency = $3, start_date = $4, category = $5, updated_at = $6
		 WHERE id = $7 AND user_id = $8
		 RETURNING `+subscriptionColumns,
		s.Name, s.Amount.Decimal(), string(s.Frequency), s.StartDate.Time, string(s.Category), r.now().UTC(), s.ID, s.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, store.ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	return row.domain(ctx), nil
}

func (r *Repository) DeleteSubscription(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Get implements preferences.KV
func (r *Repository) Get(ctx context.Context, userID, key string) (string, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value,
		`SELECT value FROM user_preferences WHERE user_id = $1 AND key = $2`, userID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements preferences.KV
func (r *Repository) Set(ctx context.Context, userID, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, key, value, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		userID, key, value, r.now().UTC())
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}
