package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"subtrack/internal/amqp"
	"subtrack/internal/core"
	"subtrack/internal/notify"
	"subtrack/internal/store"
	"subtrack/internal/store/memory"
)

type fakePublisher struct {
	mu        sync.Mutex
	events    []*amqp.SubscriptionEventMessage
	reminders []*amqp.ReminderDueMessage
	err       error
}

func (f *fakePublisher) PublishSubscriptionEvent(_ context.Context, msg *amqp.SubscriptionEventMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, msg)
	return nil
}

func (f *fakePublisher) PublishReminderDue(_ context.Context, msg *amqp.ReminderDueMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reminders = append(f.reminders, msg)
	return nil
}

func newTestService(t *testing.T) (*SubscriptionService, *notify.MemoryStore, *fakePublisher) {
	t.Helper()
	reminders := notify.NewMemoryStore()
	pub := &fakePublisher{}
	svc := NewSubscriptionService(memory.New(), notify.NewScheduler(reminders, 0), pub)
	return svc, reminders, pub
}

func monthlySub(user, name string) core.Subscription {
	start := core.DateOf(time.Now().AddDate(0, -2, 0))
	return core.Subscription{
		UserID:    user,
		Name:      name,
		Amount:    core.Money{Cents: 1599},
		Frequency: core.Monthly,
		StartDate: start,
		Category:  core.Entertainment,
	}
}

func TestSubscriptionService_Create(t *testing.T) {
	svc, reminders, pub := newTestService(t)
	ctx := context.Background()

	sub := monthlySub("u1", "  Netflix ")
	sub.Category = ""
	created, err := svc.Create(ctx, sub)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Error("Create() should assign an ID")
	}
	if created.Name != "Netflix" {
		t.Errorf("Create() Name = %q, want trimmed", created.Name)
	}
	if created.Category != core.Other {
		t.Errorf("Create() Category = %q, want %q", created.Category, core.Other)
	}

	pending, _ := reminders.ListReminders(ctx, "u1")
	if len(pending) != 1 || pending[0].SubscriptionID != created.ID {
		t.Fatalf("pending reminders = %+v, want one for %s", pending, created.ID)
	}
	if len(pub.events) != 1 || pub.events[0].Event != amqp.EventCreated {
		t.Errorf("events = %+v, want one created event", pub.events)
	}
}

func TestSubscriptionService_CreateValidation(t *testing.T) {
	svc, _, pub := newTestService(t)

	tests := []struct {
		name   string
		mutate func(*core.Subscription)
		want   error
	}{
		{"empty name", func(s *core.Subscription) { s.Name = "  " }, core.ErrEmptyName},
		{"negative amount", func(s *core.Subscription) { s.Amount = core.Money{Cents: -1} }, core.ErrInvalidAmount},
		{"bad frequency", func(s *core.Subscription) { s.Frequency = "weekly" }, core.ErrInvalidFrequency},
		{"unknown category", func(s *core.Subscription) { s.Category = "Pets" }, core.ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := monthlySub("u1", "Netflix")
			tt.mutate(&sub)
			_, err := svc.Create(context.Background(), sub)
			if !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
	if len(pub.events) != 0 {
		t.Errorf("invalid creates published %d events", len(pub.events))
	}
}

func TestSubscriptionService_UpdateReschedules(t *testing.T) {
	svc, reminders, pub := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, monthlySub("u1", "Spotify"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	before, _ := reminders.ListReminders(ctx, "u1")

	created.Frequency = core.Annually
	created.Amount = core.Money{Cents: 9999}
	if _, err := svc.Update(ctx, created); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	after, _ := reminders.ListReminders(ctx, "u1")
	if len(after) != 1 {
		t.Fatalf("pending reminders after update = %d, want 1", len(after))
	}
	if after[0].ID == before[0].ID {
		t.Error("Update() should replace the pending reminder")
	}
	if len(pub.events) != 2 || pub.events[1].Event != amqp.EventUpdated {
		t.Errorf("events = %+v, want created then updated", pub.events)
	}
}

func TestSubscriptionService_DeleteCancelsReminders(t *testing.T) {
	svc, reminders, pub := newTestService(t)
	ctx := context.Background()

	created, _ := svc.Create(ctx, monthlySub("u1", "iCloud"))
	if err := svc.Delete(ctx, "u1", created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	pending, _ := reminders.ListReminders(ctx, "u1")
	if len(pending) != 0 {
		t.Errorf("pending reminders after delete = %d, want 0", len(pending))
	}
	if last := pub.events[len(pub.events)-1]; last.Event != amqp.EventDeleted {
		t.Errorf("last event = %s, want deleted", last.Event)
	}

	if err := svc.Delete(ctx, "u1", created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestSubscriptionService_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, _, pub := newTestService(t)
	pub.err = errors.New("circuit breaker is open")

	if _, err := svc.Create(context.Background(), monthlySub("u1", "Netflix")); err != nil {
		t.Errorf("Create() error = %v, want nil when publishing fails", err)
	}
}

func TestSubscriptionService_NilSideEffects(t *testing.T) {
	svc := NewSubscriptionService(memory.New(), nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, monthlySub("u1", "Netflix"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Delete(ctx, "u1", created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestSubscriptionService_Summary(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	music := monthlySub("u1", "Spotify")
	music.Amount = core.Money{Cents: 1200}
	music.Category = core.Music
	shopping := monthlySub("u1", "Amazon Prime")
	shopping.Amount = core.Money{Cents: 1000}
	shopping.Category = core.Shopping
	for _, s := range []core.Subscription{music, shopping, monthlySub("u2", "Other user")} {
		if _, err := svc.Create(ctx, s); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	sum, err := svc.Summary(ctx, "u1", 7)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.Count != 2 {
		t.Errorf("Summary() Count = %d, want 2", sum.Count)
	}
	if got := sum.MonthlyTotal.StringFixed(2); got != "22.00" {
		t.Errorf("Summary() MonthlyTotal = %s, want 22.00", got)
	}
	if got := sum.AnnualTotal.StringFixed(2); got != "264.00" {
		t.Errorf("Summary() AnnualTotal = %s, want 264.00", got)
	}
}
