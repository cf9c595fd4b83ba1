package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/store"
)

func newSub(user, name string) core.Subscription {
	return core.Subscription{
		UserID:    user,
		Name:      name,
		Amount:    core.Money{Cents: 500},
		Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 1, 1),
		Category:  core.Other,
	}
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	a, err := s.CreateSubscription(ctx, newSub("u1", "A"))
	if err != nil || a.ID == "" || !a.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected create: %+v err=%v", a, err)
	}
	b, _ := s.CreateSubscription(ctx, newSub("u1", "B"))
	if _, err := s.CreateSubscription(ctx, newSub("u2", "C")); err != nil {
		t.Fatal(err)
	}

	list, _ := s.ListSubscriptions(ctx, "u1")
	if len(list) != 2 || list[0].ID != b.ID {
		t.Fatalf("expected newest first for u1, got %+v", list)
	}

	if _, err := s.GetSubscription(ctx, "u2", a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-user get should be not found, got %v", err)
	}

	a.Name = "A2"
	s.now = func() time.Time { return fixed.Add(time.Hour) }
	updated, err := s.UpdateSubscription(ctx, a)
	if err != nil || updated.Name != "A2" || !updated.CreatedAt.Equal(fixed) || !updated.UpdatedAt.After(fixed) {
		t.Fatalf("unexpected update: %+v err=%v", updated, err)
	}

	if err := s.DeleteSubscription(ctx, "u1", a.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSubscription(ctx, "u1", a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestStoreRejectsInvalid(t *testing.T) {
	bad := newSub("u1", "")
	if _, err := New().CreateSubscription(context.Background(), bad); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("missing file should give empty store, got %v", err)
	}
	if list, _ := s.ListSubscriptions(context.Background(), "u"); len(list) != 0 {
		t.Fatalf("expected empty store")
	}

	path := filepath.Join(dir, "seed.json")
	doc := `{"exportDate":"2025-01-01T00:00:00Z","subscriptions":[
{"id":"s1","user_id":"u","name":"Netflix","amount":15.49,"billing_frequency":"monthly","start_date":"2024-06-01","category":"Entertainment","created_at":"2024-06-01T08:00:00Z","updated_at":"2024-06-01T08:00:00Z"},
{"id":"s2","user_id":"u","name":"iCloud","amount":"0.99","billing_frequency":"monthly","start_date":"2024-07-01","category":"","created_at":"2024-07-01T08:00:00Z","updated_at":"2024-07-01T08:00:00Z"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile() error = %v", err)
	}
	list, _ := s.ListSubscriptions(context.Background(), "u")
	if len(list) != 2 || list[0].ID != "s2" || list[0].Category != core.Other {
		t.Fatalf("unexpected seeded list: %+v", list)
	}
}
