package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"subtrack/internal/amqp"
	"subtrack/internal/cli"
	"subtrack/internal/config"
	applog "subtrack/internal/log"
	"subtrack/internal/notify"
	"subtrack/internal/preferences"
	"subtrack/internal/services"
	"subtrack/internal/sheets/google"
	"subtrack/internal/store"
	"subtrack/internal/worker"
)

// localDelivery hands due reminders straight to the push worker when no
// broker is configured.
type localDelivery struct {
	worker *worker.ReminderWorker
}

func (l localDelivery) PublishReminderDue(ctx context.Context, msg *amqp.ReminderDueMessage) error {
	return l.worker.HandleReminderDue(ctx, msg)
}

func main() {
	configFile := flag.String("config", "", "Path to a TOML, YAML, or JSON configuration file")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(*configFile)
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting reminder-worker",
		"backend", cfg.DataBackend,
		"schedule", cfg.ReminderSchedule,
		"push_provider", cfg.PushProvider)

	result, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open backend", "error", err)
		os.Exit(1)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, amqp.Queues{
			Reminders: cfg.AMQPReminderQueue,
			Events:    cfg.AMQPEventsQueue,
		})
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			_ = result.Close()
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - reminders are delivered in-process and sheets sync is off")
	}

	prefs := preferences.NewService(result.Preferences)
	reminderWorker := worker.NewReminderWorker(prefs, newPusher(cfg))

	var publisher services.ReminderPublisher = localDelivery{worker: reminderWorker}
	if amqpClient != nil {
		publisher = amqpClient
	}

	scheduler := notify.NewScheduler(result.Reminders, cfg.ReminderLeadTime)
	dispatcher := services.NewReminderDispatcher(result.Reminders, scheduler, result.Store, publisher,
		services.DispatcherConfig{
			BatchSize: cfg.ReminderBatchSize,
			Schedule:  cfg.ReminderSchedule,
		})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := dispatcher.Stop(ctx); err != nil {
			logger.Error("Failed to stop reminder dispatcher", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", "error", err)
			}
		}
		if err := result.Close(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	})

	backfillReminders(ctx, logger, dispatcher, result.Store, knownUsers(cfg))

	if err := dispatcher.Start(ctx); err != nil {
		logger.Error("Failed to start reminder dispatcher", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.RunWithRetry(gctx, "reminder delivery", func(ctx context.Context) error {
				return amqpClient.ConsumeReminderDue(ctx, reminderWorker.HandleReminderDue)
			})
		})

		if cfg.SheetsEnabled() {
			syncWorker, err := newSheetsWorker(ctx, cfg, result.Store)
			if err != nil {
				logger.Error("Failed to initialize Google Sheets client", "error", err)
				os.Exit(1)
			}
			if err := syncWorker.StartupSync(ctx, cfg.SheetsSyncUsers); err != nil {
				logger.Error("Failed startup sheets sync", "error", err)
			}
			g.Go(func() error {
				return amqpClient.RunWithRetry(gctx, "sheets sync", func(ctx context.Context) error {
					return amqpClient.ConsumeSubscriptionEvents(ctx, syncWorker.HandleSubscriptionEvent)
				})
			})
		} else {
			logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", "error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("reminder-worker stopped")
}

func newPusher(cfg *config.Config) notify.Pusher {
	if cfg.PushProvider == "expo" {
		return notify.NewExpoPusher(cfg.ExpoPushURL, cfg.ExpoAccessToken)
	}
	return notify.LogPusher{}
}

func newSheetsWorker(ctx context.Context, cfg *config.Config, subs store.SubscriptionReader) (*worker.SheetsSyncWorker, error) {
	client, err := google.New(ctx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		TabPrefix:       cfg.GoogleSheetTabPrefix,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	return worker.NewSheetsSyncWorker(subs, client), nil
}

// knownUsers lists the users whose reminders are backfilled at startup.
func knownUsers(cfg *config.Config) []string {
	seen := map[string]bool{}
	var users []string
	for _, u := range append([]string{cfg.DefaultUserID}, cfg.SheetsSyncUsers...) {
		if u != "" && !seen[u] {
			seen[u] = true
			users = append(users, u)
		}
	}
	return users
}

// backfillReminders schedules reminders for subscriptions that have none,
// such as records seeded from a data file.
func backfillReminders(ctx context.Context, logger *applog.Logger, d *services.ReminderDispatcher, subs store.SubscriptionReader, users []string) {
	for _, userID := range users {
		list, err := subs.ListSubscriptions(ctx, userID)
		if err != nil {
			logger.Error("Failed to list subscriptions for reminder backfill", "user_id", userID, "error", err)
			continue
		}
		n := d.ScheduleAll(ctx, list)
		logger.Info("Reminder backfill complete", "user_id", userID, "scheduled", n)
	}
}
