package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"subtrack/internal/amqp"
	"subtrack/internal/core"
	"subtrack/internal/metrics"
	"subtrack/internal/notify"
	"subtrack/internal/store"
)

// ReminderPublisher hands a due reminder to the delivery worker.
type ReminderPublisher interface {
	PublishReminderDue(ctx context.Context, msg *amqp.ReminderDueMessage) error
}

// DispatcherConfig holds configuration for the reminder dispatcher
type DispatcherConfig struct {
	// PollInterval is how often Start checks for due reminders (default: 1m)
	PollInterval time.Duration

	// Schedule is a cron expression ("@every 30s", "*/5 * * * *") that replaces
	// PollInterval when set.
	Schedule string

	// BatchSize is the max number of reminders dispatched per run (default: 50)
	BatchSize int
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		PollInterval: time.Minute,
		BatchSize:    50,
	}
}

// ReminderDispatcher publishes reminders whose notify time has come, marks
// them sent and schedules the reminder for the following billing cycle.
type ReminderDispatcher struct {
	reminders notify.Store
	scheduler *notify.Scheduler
	subs      store.SubscriptionReader
	publisher ReminderPublisher
	config    DispatcherConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReminderDispatcher(
	reminders notify.Store,
	scheduler *notify.Scheduler,
	subs store.SubscriptionReader,
	publisher ReminderPublisher,
	config DispatcherConfig,
) *ReminderDispatcher {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultDispatcherConfig().BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultDispatcherConfig().PollInterval
	}
	return &ReminderDispatcher{
		reminders: reminders,
		scheduler: scheduler,
		subs:      subs,
		publisher: publisher,
		config:    config,
	}
}

// DispatchDue dispatches one batch of reminders due at now and returns how
// many were handed off. A reminder whose publish fails stays pending and is
// retried on the next run.
func (d *ReminderDispatcher) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	if d.reminders == nil || d.publisher == nil {
		return 0, fmt.Errorf("dispatcher not properly initialized")
	}

	due, err := d.reminders.DueReminders(ctx, now, d.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Dispatching due reminders",
		"count", len(due),
		"dispatch_time", now.Format(time.RFC3339))

	dispatched := 0
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return dispatched, err
		}

		msg := amqp.NewReminderDueMessage(r.ID, r.SubscriptionID, r.UserID, r.Title, r.Body, r.RenewsOn.String())
		err := d.publisher.PublishReminderDue(ctx, msg)
		metrics.RecordReminderDispatch(err == nil)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to publish due reminder",
				"reminder_id", r.ID,
				"subscription_id", r.SubscriptionID,
				"error", err)
			continue
		}

		if err := d.reminders.MarkReminderSent(ctx, r.ID, now); err != nil {
			slog.ErrorContext(ctx, "Failed to mark reminder sent",
				"reminder_id", r.ID, "error", err)
			continue
		}
		dispatched++

		d.scheduleNext(ctx, r)
	}

	slog.InfoContext(ctx, "Reminder dispatch complete",
		"dispatched", dispatched,
		"total_due", len(due))

	return dispatched, nil
}

func (d *ReminderDispatcher) scheduleNext(ctx context.Context, r notify.Reminder) {
	if d.scheduler == nil || d.subs == nil {
		return
	}
	sub, err := d.subs.GetSubscription(ctx, r.UserID, r.SubscriptionID)
	if errors.Is(err, store.ErrNotFound) {
		slog.DebugContext(ctx, "Subscription gone, no further reminders", "subscription_id", r.SubscriptionID)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load subscription for next reminder",
			"subscription_id", r.SubscriptionID, "error", err)
		return
	}
	if _, _, err := d.scheduler.Schedule(ctx, sub, 0); err != nil {
		slog.ErrorContext(ctx, "Failed to schedule next reminder",
			"subscription_id", sub.ID, "error", err)
	}
}

// ScheduleAll schedules a reminder for each given subscription that has a
// projectable renewal. Used to backfill reminders after an import.
func (d *ReminderDispatcher) ScheduleAll(ctx context.Context, subs []core.Subscription) int {
	if d.scheduler == nil {
		return 0
	}
	scheduled := 0
	for _, sub := range subs {
		_, ok, err := d.scheduler.Schedule(ctx, sub, 0)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to schedule reminder", "subscription_id", sub.ID, "error", err)
			continue
		}
		if ok {
			scheduled++
		}
	}
	return scheduled
}

// Start begins the polling loop. Returns an error if already running.
func (d *ReminderDispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("reminder dispatcher is already running")
	}

	var c *cron.Cron
	if d.config.Schedule != "" {
		c = cron.New()
		if _, err := c.AddFunc(d.config.Schedule, func() { d.runOnce(ctx, time.Now()) }); err != nil {
			return fmt.Errorf("invalid dispatch schedule %q: %w", d.config.Schedule, err)
		}
	}

	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	if c != nil {
		go d.runCron(ctx, c, d.stopCh, d.doneCh)
	} else {
		go d.runLoop(ctx, d.stopCh, d.doneCh)
	}

	slog.InfoContext(ctx, "Reminder dispatcher started",
		"poll_interval", d.config.PollInterval,
		"schedule", d.config.Schedule,
		"batch_size", d.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for the current batch to finish. It is
// safe to call again, concurrently or after a timeout; later calls wait for
// the same loop.
func (d *ReminderDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	done := d.doneCh
	if d.running {
		d.running = false
		close(d.stopCh)
	}
	d.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		slog.InfoContext(ctx, "Reminder dispatcher stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reminder dispatcher stop timed out")
		return ctx.Err()
	}
}

func (d *ReminderDispatcher) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *ReminderDispatcher) runLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.runOnce(ctx, time.Now())

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.runOnce(ctx, now)
		}
	}
}

// runCron dispatches once immediately, then on every tick of c until stopped.
// Stopping waits for a dispatch already in progress.
func (d *ReminderDispatcher) runCron(ctx context.Context, c *cron.Cron, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	d.runOnce(ctx, time.Now())
	c.Start()

	select {
	case <-stop:
	case <-ctx.Done():
	}
	<-c.Stop().Done()
}

func (d *ReminderDispatcher) runOnce(ctx context.Context, now time.Time) {
	if _, err := d.DispatchDue(ctx, now); err != nil {
		slog.ErrorContext(ctx, "Reminder dispatch failed", "error", err)
	}
}
