package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"subtrack/internal/core"
	"subtrack/internal/notify"
	"subtrack/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements the subscription store, the preference KV and
// the reminder store on one SQLite database.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(timeLayout)
}

func toDomain(ctx context.Context, s Subscription) core.Subscription {
	start, err := core.ParseDate(s.StartDate)
	if err != nil {
		slog.WarnContext(ctx, "Invalid start date in database", "id", s.ID, "start_date", s.StartDate)
	}
	cat := core.Category(s.Category)
	if !cat.Valid() {
		slog.WarnContext(ctx, "Unknown category in database, using Other", "id", s.ID, "category", s.Category)
		cat = core.Other
	}
	return core.Subscription{
		ID:        s.ID,
		UserID:    s.UserID,
		Name:      s.Name,
		Amount:    core.Money{Cents: s.AmountCents},
		Frequency: core.BillingFrequency(s.BillingFrequency),
		StartDate: start,
		Category:  cat,
		CreatedAt: parseTime(s.CreatedAt),
		UpdatedAt: parseTime(s.UpdatedAt),
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ListSubscriptions implements store.SubscriptionReader
func (r *SQLiteRepository) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	rows, err := r.queries.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	out := make([]core.Subscription, len(rows))
	for i, row := range rows {
		out[i] = toDomain(ctx, row)
	}
	return out, nil
}

// GetSubscription implements store.SubscriptionReader
func (r *SQLiteRepository) GetSubscription(ctx context.Context, userID, id string) (core.Subscription, error) {
	row, err := r.queries.GetSubscription(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, store.ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return toDomain(ctx, row), nil
}

// CreateSubscription implements store.SubscriptionWriter
func (r *SQLiteRepository) CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	if err := s.Validate(); err != nil {
		return core.Subscription{}, err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := r.timestamp()
	row, err := r.queries.CreateSubscription(ctx, CreateSubscriptionParams{
		ID:               s.ID,
		UserID:           s.UserID,
		Name:             s.Name,
		AmountCents:      s.Amount.Cents,
		BillingFrequency: string(s.Frequency),
		StartDate:        s.StartDate.String(),
		Category:         string(s.Category),
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}

	slog.InfoContext(ctx, "Subscription saved to SQLite",
		"id", row.ID,
		"name", row.Name,
		"amount_cents", row.AmountCents,
		"billing_frequency", row.BillingFrequency)

	return toDomain(ctx, row), nil
}

// UpdateSubscription implements store.SubscriptionWriter
func (r *SQLiteRepository) UpdateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	if err := s.Validate(); err != nil {
		return core.Subscription{}, err
	}
	row, err := r.queries.UpdateSubscription(ctx, UpdateSubscriptionParams{
		Name:             s.Name,
		AmountCents:      s.Amount.Cents,
		BillingFrequency: string(s.Frequency),
		StartDate:        s.StartDate.String(),
		Category:         string(s.Category),
		UpdatedAt:        r.timestamp(),
		ID:               s.ID,
		UserID:           s.UserID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, store.ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	return toDomain(ctx, row), nil
}

// DeleteSubscription implements store.SubscriptionWriter
func (r *SQLiteRepository) DeleteSubscription(ctx context.Context, userID, id string) error {
	n, err := r.queries.DeleteSubscription(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	slog.InfoContext(ctx, "Subscription deleted from SQLite", "id", id)
	return nil
}

// Get implements preferences.KV
func (r *SQLiteRepository) Get(ctx context.Context, userID, key string) (string, bool, error) {
	value, err := r.queries.GetPreference(ctx, userID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements preferences.KV
func (r *SQLiteRepository) Set(ctx context.Context, userID, key, value string) error {
	err := r.queries.UpsertPreference(ctx, UpsertPreferenceParams{
		UserID:    userID,
		Key:       key,
		Value:     value,
		UpdatedAt: r.timestamp(),
	})
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

func reminderToDomain(r Reminder) notify.Reminder {
	renews, _ := core.ParseDate(r.RenewsOn)
	out := notify.Reminder{
		ID:             r.ID,
		SubscriptionID: r.SubscriptionID,
		UserID:         r.UserID,
		NotifyAt:       parseTime(r.NotifyAt),
		RenewsOn:       renews,
		Title:          r.Title,
		Body:           r.Body,
		Status:         notify.Status(r.Status),
		CreatedAt:      parseTime(r.CreatedAt),
	}
	if r.SentAt.Valid {
		out.SentAt = parseTime(r.SentAt.String)
	}
	return out
}

func remindersToDomain(rows []Reminder) []notify.Reminder {
	out := make([]notify.Reminder, len(rows))
	for i, row := range rows {
		out[i] = reminderToDomain(row)
	}
	return out
}

// SaveReminder implements notify.Store
func (r *SQLiteRepository) SaveReminder(ctx context.Context, rem notify.Reminder) error {
	if rem.Status == "" {
		rem.Status = notify.StatusPending
	}
	if rem.CreatedAt.IsZero() {
		rem.CreatedAt = r.now()
	}
	err := r.queries.CreateReminder(ctx, CreateReminderParams{
		ID:             rem.ID,
		SubscriptionID: rem.SubscriptionID,
		UserID:         rem.UserID,
		NotifyAt:       rem.NotifyAt.UTC().Format(timeLayout),
		RenewsOn:       rem.RenewsOn.String(),
		Title:          rem.Title,
		Body:           rem.Body,
		Status:         string(rem.Status),
		CreatedAt:      rem.CreatedAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

// GetReminder implements notify.Store
func (r *SQLiteRepository) GetReminder(ctx context.Context, userID, id string) (notify.Reminder, error) {
	row, err := r.queries.GetReminder(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return notify.Reminder{}, notify.ErrReminderNotFound
	}
	if err != nil {
		return notify.Reminder{}, fmt.Errorf("get reminder: %w", err)
	}
	return reminderToDomain(row), nil
}

// CancelReminder implements notify.Store
func (r *SQLiteRepository) CancelReminder(ctx context.Context, userID, id string) error {
	n, err := r.queries.CancelReminder(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	if n == 0 {
		return notify.ErrReminderNotFound
	}
	return nil
}

// CancelSubscriptionReminders implements notify.Store
func (r *SQLiteRepository) CancelSubscriptionReminders(ctx context.Context, userID, subscriptionID string) (int, error) {
	n, err := r.queries.CancelSubscriptionReminders(ctx, userID, subscriptionID)
	if err != nil {
		return 0, fmt.Errorf("cancel subscription reminders: %w", err)
	}
	return int(n), nil
}

// CancelAllReminders implements notify.Store
func (r *SQLiteRepository) CancelAllReminders(ctx context.Context, userID string) (int, error) {
	n, err := r.queries.CancelAllReminders(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("cancel all reminders: %w", err)
	}
	return int(n), nil
}

// DueReminders implements notify.Store
func (r *SQLiteRepository) DueReminders(ctx context.Context, now time.Time, limit int) ([]notify.Reminder, error) {
	rows, err := r.queries.ListDueReminders(ctx, now.UTC().Format(timeLayout), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return remindersToDomain(rows), nil
}

// MarkReminderSent implements notify.Store
func (r *SQLiteRepository) MarkReminderSent(ctx context.Context, id string, sentAt time.Time) error {
	n, err := r.queries.MarkReminderSent(ctx, id, sentAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if n == 0 {
		return notify.ErrReminderNotFound
	}
	slog.InfoContext(ctx, "Reminder marked as sent", "id", id)
	return nil
}

// ListReminders implements notify.Store
func (r *SQLiteRepository) ListReminders(ctx context.Context, userID string) ([]notify.Reminder, error) {
	rows, err := r.queries.ListPendingRemindersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return remindersToDomain(rows), nil
}
