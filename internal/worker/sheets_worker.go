package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"subtrack/internal/amqp"
	"subtrack/internal/metrics"
	"subtrack/internal/sheets"
	"subtrack/internal/store"
)

// SheetsSyncWorker keeps each user's spreadsheet tab in step with the store.
// Every event republishes the user's full list, so duplicate or out of order
// events converge on the same table.
type SheetsSyncWorker struct {
	subs      store.SubscriptionReader
	publisher sheets.Publisher
	inflight  singleflight.Group
}

func NewSheetsSyncWorker(subs store.SubscriptionReader, publisher sheets.Publisher) *SheetsSyncWorker {
	return &SheetsSyncWorker{subs: subs, publisher: publisher}
}

// HandleSubscriptionEvent processes a single subscription event from AMQP
func (w *SheetsSyncWorker) HandleSubscriptionEvent(ctx context.Context, msg *amqp.SubscriptionEventMessage) error {
	slog.InfoContext(ctx, "Processing subscription event",
		"event", msg.Event,
		"subscription_id", msg.SubscriptionID,
		"user_id", msg.UserID)

	if err := w.SyncUser(ctx, msg.UserID); err != nil {
		return fmt.Errorf("sync user %s: %w", msg.UserID, err)
	}
	return nil
}

// SyncUser publishes the user's current subscriptions. Concurrent calls for
// the same user share one publish.
func (w *SheetsSyncWorker) SyncUser(ctx context.Context, userID string) error {
	_, err, shared := w.inflight.Do(userID, func() (interface{}, error) {
		subs, err := w.subs.ListSubscriptions(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list subscriptions: %w", err)
		}
		start := time.Now()
		err = w.publisher.PublishSubscriptions(ctx, userID, subs)
		metrics.RecordSheetsSync(time.Since(start), err == nil)
		if err != nil {
			return nil, fmt.Errorf("publish to sheets: %w", err)
		}
		return nil, nil
	})
	if shared {
		slog.DebugContext(ctx, "Coalesced sheets sync", "user_id", userID)
	}
	return err
}

// StartupSync republishes every listed user, recovering from events missed
// while the worker was down.
func (w *SheetsSyncWorker) StartupSync(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		slog.InfoContext(ctx, "No users configured for startup sheets sync")
		return nil
	}

	successCount := 0
	errorCount := 0
	for _, userID := range userIDs {
		if err := w.SyncUser(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync user during startup",
				"user_id", userID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sheets sync completed",
		"total", len(userIDs),
		"synced", successCount,
		"errors", errorCount)

	if errorCount > 0 && successCount == 0 {
		return fmt.Errorf("startup sheets sync failed for all %d users", errorCount)
	}
	return nil
}
