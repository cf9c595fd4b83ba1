package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"subtrack/internal/amqp"
	"subtrack/internal/analytics"
	"subtrack/internal/core"
	"subtrack/internal/metrics"
	"subtrack/internal/notify"
	"subtrack/internal/store"
)

// EventPublisher announces subscription changes to other processes.
type EventPublisher interface {
	PublishSubscriptionEvent(ctx context.Context, msg *amqp.SubscriptionEventMessage) error
}

// SubscriptionService orchestrates subscription writes across the store, the
// reminder scheduler and the message bus. Only the store is required; a nil
// scheduler or publisher disables that side effect.
type SubscriptionService struct {
	store     store.SubscriptionStore
	reminders *notify.Scheduler
	events    EventPublisher
	now       func() time.Time
}

func NewSubscriptionService(st store.SubscriptionStore, reminders *notify.Scheduler, events EventPublisher) *SubscriptionService {
	return &SubscriptionService{
		store:     st,
		reminders: reminders,
		events:    events,
		now:       time.Now,
	}
}

func (s *SubscriptionService) List(ctx context.Context, userID string) ([]core.Subscription, error) {
	subs, err := s.store.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *SubscriptionService) Get(ctx context.Context, userID, id string) (core.Subscription, error) {
	return s.store.GetSubscription(ctx, userID, id)
}

// Create validates and saves sub, then schedules its renewal reminder and
// publishes a created event. Side-effect failures are logged, not returned.
func (s *SubscriptionService) Create(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	sub.Name = strings.TrimSpace(sub.Name)
	if sub.Category == "" {
		sub.Category = core.Other
	}
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}

	created, err := s.store.CreateSubscription(ctx, sub)
	metrics.RecordSubscriptionWrite("create", err == nil)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("save subscription: %w", err)
	}

	slog.InfoContext(ctx, "Subscription created",
		"subscription_id", created.ID,
		"user_id", created.UserID,
		"name", created.Name,
		"amount_cents", created.Amount.Cents,
		"billing_frequency", created.Frequency)

	s.scheduleReminder(ctx, created)
	s.publish(ctx, amqp.EventCreated, created.ID, created.UserID)
	return created, nil
}

// Update replaces an existing subscription and reschedules its reminder.
func (s *SubscriptionService) Update(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	sub.Name = strings.TrimSpace(sub.Name)
	if sub.Category == "" {
		sub.Category = core.Other
	}
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}

	updated, err := s.store.UpdateSubscription(ctx, sub)
	metrics.RecordSubscriptionWrite("update", err == nil)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}

	s.scheduleReminder(ctx, updated)
	s.publish(ctx, amqp.EventUpdated, updated.ID, updated.UserID)
	return updated, nil
}

// Delete removes the subscription and cancels its pending reminders.
func (s *SubscriptionService) Delete(ctx context.Context, userID, id string) error {
	err := s.store.DeleteSubscription(ctx, userID, id)
	metrics.RecordSubscriptionWrite("delete", err == nil)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}

	if s.reminders != nil {
		if n, err := s.reminders.CancelSubscription(ctx, userID, id); err != nil {
			slog.ErrorContext(ctx, "Failed to cancel reminders of deleted subscription",
				"subscription_id", id, "error", err)
		} else if n > 0 {
			slog.InfoContext(ctx, "Canceled reminders of deleted subscription",
				"subscription_id", id, "count", n)
		}
	}

	s.publish(ctx, amqp.EventDeleted, id, userID)
	return nil
}

// Summary aggregates the user's subscriptions with renewals due in the next
// windowDays days.
func (s *SubscriptionService) Summary(ctx context.Context, userID string, windowDays int) (analytics.Summary, error) {
	subs, err := s.List(ctx, userID)
	if err != nil {
		return analytics.Summary{}, err
	}
	return analytics.Summarize(subs, windowDays, s.now()), nil
}

func (s *SubscriptionService) scheduleReminder(ctx context.Context, sub core.Subscription) {
	if s.reminders == nil {
		return
	}
	if _, _, err := s.reminders.Schedule(ctx, sub, 0); err != nil {
		slog.ErrorContext(ctx, "Failed to schedule renewal reminder",
			"subscription_id", sub.ID, "error", err)
	}
}

func (s *SubscriptionService) publish(ctx context.Context, event amqp.EventType, id, userID string) {
	if s.events == nil {
		slog.DebugContext(ctx, "Event publisher not available, skipping subscription event", "event", event)
		return
	}
	if err := s.events.PublishSubscriptionEvent(ctx, amqp.NewSubscriptionEventMessage(event, id, userID)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish subscription event",
			"event", event, "subscription_id", id, "error", err)
	}
}

// Close closes the store and publisher when they hold resources.
func (s *SubscriptionService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if c, ok := s.events.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close subscription service: %w", errors.Join(errs...))
	}
	return nil
}
