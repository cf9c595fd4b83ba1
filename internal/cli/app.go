package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"subtrack/internal/amqp"
	applog "subtrack/internal/log"
	"subtrack/internal/notify"
	"subtrack/internal/preferences"
	"subtrack/internal/services"
)

// Deps are the services the commands run against.
type Deps struct {
	UserID        string
	Subscriptions *services.SubscriptionService
	Reminders     *notify.Scheduler
	Preferences   *preferences.Service
	WindowDays    int
	Close         func() error
}

// App is the subtrack-cli command tree.
type App struct {
	rootCmd *cobra.Command
	out     io.Writer
	now     func() time.Time

	configFile string
	userID     string

	deps *Deps
	open func(ctx context.Context, configFile string) (*Deps, error)
}

// NewApp builds the CLI against the configured backend.
func NewApp(version string) *App {
	return newApp(version, os.Stdout, nil, openDeps)
}

// NewAppWithDeps builds the CLI against already constructed services.
func NewAppWithDeps(deps *Deps, out io.Writer) *App {
	return newApp("dev", out, deps, nil)
}

func newApp(version string, out io.Writer, deps *Deps, open func(context.Context, string) (*Deps, error)) *App {
	app := &App{out: out, now: time.Now, deps: deps, open: open}

	root := &cobra.Command{
		Use:           "subtrack-cli",
		Short:         "Track recurring subscriptions and what they cost",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.ensureDeps(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetVersionTemplate(`{{printf "subtrack-cli version: %s\n" .Version}}`)

	root.PersistentFlags().StringVarP(&app.configFile, "config-file", "C", "", "Path to a TOML, YAML, or JSON configuration file")
	root.PersistentFlags().StringVarP(&app.userID, "user", "u", "", "User whose subscriptions to use (default: configured default user)")

	root.AddCommand(
		app.listCmd(),
		app.addCmd(),
		app.deleteCmd(),
		app.summaryCmd(),
		app.trendCmd(),
		app.renewalsCmd(),
		app.exportCmd(),
		app.importCmd(),
		app.themeCmd(),
		app.remindersCmd(),
	)

	app.rootCmd = root
	return app
}

// Execute runs the CLI application.
func (a *App) Execute() error {
	return a.ExecuteContext(context.Background())
}

func (a *App) ExecuteContext(ctx context.Context) error {
	return a.rootCmd.ExecuteContext(ctx)
}

// SetArgs overrides os.Args, for tests.
func (a *App) SetArgs(args []string) {
	a.rootCmd.SetArgs(args)
}

func (a *App) ensureDeps(ctx context.Context) error {
	if a.deps != nil {
		return nil
	}
	if a.open == nil {
		return errors.New("no backend configured")
	}
	deps, err := a.open(ctx, a.configFile)
	if err != nil {
		return err
	}
	a.deps = deps
	return nil
}

func (a *App) close() error {
	if a.deps == nil || a.deps.Close == nil {
		return nil
	}
	return a.deps.Close()
}

func (a *App) user() string {
	if a.userID != "" {
		return a.userID
	}
	if a.deps != nil && a.deps.UserID != "" {
		return a.deps.UserID
	}
	return "default"
}

// openDeps wires the services the same way the API server does, minus the
// HTTP layer. Subscription events are published when AMQP is configured so
// other processes see CLI writes.
func openDeps(ctx context.Context, configFile string) (*Deps, error) {
	LoadEnvFile()
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	// keep CLI output clean: only warnings and worse reach the log
	if cfg.LogLevel == "info" || cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	logger := SetupLogger(cfg, applog.ComponentCLI)

	result, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var events services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, amqp.Queues{
			Reminders: cfg.AMQPReminderQueue,
			Events:    cfg.AMQPEventsQueue,
		})
		if err != nil {
			logger.Warn("AMQP unavailable, subscription events will not be published", "error", err)
		} else {
			events = amqpClient
		}
	}

	scheduler := notify.NewScheduler(result.Reminders, cfg.ReminderLeadTime)
	subs := services.NewSubscriptionService(result.Store, scheduler, events)

	return &Deps{
		UserID:        cfg.DefaultUserID,
		Subscriptions: subs,
		Reminders:     scheduler,
		Preferences:   preferences.NewService(result.Preferences),
		WindowDays:    cfg.RenewalWindowDays,
		Close: func() error {
			var errs []error
			if amqpClient != nil {
				if err := amqpClient.Close(); err != nil {
					errs = append(errs, fmt.Errorf("amqp: %w", err))
				}
			}
			if err := result.Close(); err != nil {
				errs = append(errs, fmt.Errorf("backend: %w", err))
			}
			return errors.Join(errs...)
		},
	}, nil
}
