package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"subtrack/internal/amqp"
	"subtrack/internal/cache"
	"subtrack/internal/cli"
	apphttp "subtrack/internal/http"
	applog "subtrack/internal/log"
	"subtrack/internal/metrics"
	"subtrack/internal/notify"
	"subtrack/internal/preferences"
	"subtrack/internal/services"
	"subtrack/internal/store/cached"
)

const (
	listCacheUsers = 1000
	listCacheTTL   = 30 * time.Second
)

func main() {
	configFile := flag.String("config", "", "Path to a TOML, YAML, or JSON configuration file")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(*configFile)
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	logger.Info("Starting subtrack API", "port", cfg.Port, "backend", cfg.DataBackend)

	result, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open backend", "error", err)
		os.Exit(1)
	}

	subStore := cached.New(result.Store, listCacheUsers, listCacheTTL)
	if cfg.MetricsEnabled {
		if err := metrics.RegisterCacheStats("subscription_lists", subStore.Cache().Stats); err != nil {
			logger.Warn("Failed to register cache metrics", "error", err)
		}
	}

	// Subscription events feed the sheets sync in reminder-worker. The API
	// keeps serving without a broker.
	var events services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, amqp.Queues{
			Reminders: cfg.AMQPReminderQueue,
			Events:    cfg.AMQPEventsQueue,
		})
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, subscription events disabled", "error", err)
			amqpClient = nil
		} else {
			events = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - subscription events will not be published")
	}

	scheduler := notify.NewScheduler(result.Reminders, cfg.ReminderLeadTime)
	subscriptions := services.NewSubscriptionService(subStore, scheduler, events)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		DefaultUserID:      cfg.DefaultUserID,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MetricsEnabled:     cfg.MetricsEnabled,
		RenewalWindowDays:  cfg.RenewalWindowDays,
	}, apphttp.Deps{
		Subscriptions: subscriptions,
		Reminders:     scheduler,
		Preferences:   preferences.NewService(result.Preferences),
		Ready:         result.Ping,
		Caches:        []cache.Cleaner{subStore.Cache()},
		Logger:        logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
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

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
