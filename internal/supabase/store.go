package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"subtrack/internal/core"
	"subtrack/internal/export"
	"subtrack/internal/store"
)

const subscriptionsTable = "subscriptions"

// Store implements store.SubscriptionStore over PostgREST. Rows use the same
// column names as the export dump.
type Store struct {
	client *Client
	now    func() time.Time
}

func NewStore(client *Client) *Store {
	return &Store{client: client, now: time.Now}
}

func eq(v string) string { return "eq." + v }

func (s *Store) decodeRows(ctx context.Context, data []byte) ([]core.Subscription, error) {
	var records []export.Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}
	out := make([]core.Subscription, 0, len(records))
	for _, r := range records {
		cat := core.Category(r.Category)
		if !cat.Valid() {
			if r.Category != "" {
				slog.WarnContext(ctx, "Unknown category from supabase, using Other", "id", r.ID, "category", r.Category)
			}
			r.Category = string(core.Other)
		}
		sub, err := r.Subscription()
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed subscription row", "id", r.ID, "error", err)
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", eq(userID))
	q.Set("order", "created_at.desc")
	data, err := s.client.Select(ctx, subscriptionsTable, q)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return s.decodeRows(ctx, data)
}

func (s *Store) GetSubscription(ctx context.Context, userID, id string) (core.Subscription, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", eq(id))
	q.Set("user_id", eq(userID))
	data, err := s.client.Select(ctx, subscriptionsTable, q)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return s.single(ctx, data)
}

func (s *Store) single(ctx context.Context, data []byte) (core.Subscription, error) {
	if gjson.GetBytes(data, "#").Int() == 0 {
		return core.Subscription{}, store.ErrNotFound
	}
	subs, err := s.decodeRows(ctx, data)
	if err != nil {
		return core.Subscription{}, err
	}
	if len(subs) == 0 {
		return core.Subscription{}, store.ErrNotFound
	}
	return subs[0], nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := s.now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now
	body, err := json.Marshal(export.FromSubscription(sub))
	if err != nil {
		return core.Subscription{}, fmt.Errorf("encode subscription: %w", err)
	}
	data, err := s.client.Insert(ctx, subscriptionsTable, body)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	return s.single(ctx, data)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}
	rec := export.FromSubscription(sub)
	patch := map[string]any{
		"name":              rec.Name,
		"amount":            rec.Amount,
		"billing_frequency": rec.BillingFrequency,
		"start_date":        rec.StartDate,
		"category":          rec.Category,
		"updated_at":        s.now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("encode subscription: %w", err)
	}
	q := url.Values{}
	q.Set("id", eq(sub.ID))
	q.Set("user_id", eq(sub.UserID))
	data, err := s.client.Update(ctx, subscriptionsTable, q, body)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	return s.single(ctx, data)
}

func (s *Store) DeleteSubscription(ctx context.Context, userID, id string) error {
	q := url.Values{}
	q.Set("id", eq(id))
	q.Set("user_id", eq(userID))
	data, err := s.client.Delete(ctx, subscriptionsTable, q)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if gjson.GetBytes(data, "#").Int() == 0 {
		return store.ErrNotFound
	}
	return nil
}
