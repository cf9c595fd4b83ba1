package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"subtrack/internal/notify"
	"subtrack/internal/preferences"
	"subtrack/internal/storage"
	"subtrack/internal/storage/postgres"
	"subtrack/internal/store/memory"
	"subtrack/internal/supabase"
)

// SeedFileName is the export dump the memory backend loads from its data
// directory.
const SeedFileName = "subscriptions.json"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case PostgresBackend:
		result, err = f.createPostgresBackend(ctx, config)
	case SupabaseBackend:
		result, err = f.createSupabaseBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.PreferencesBackend == "redis" {
		if err := f.useRedisPreferences(ctx, config, result); err != nil {
			result.Close()
			return nil, err
		}
	} else if config.PreferencesBackend == "memory" {
		result.Preferences = preferences.NewMemoryKV()
	}
	return result, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	st, err := memory.NewFromFile(filepath.Join(dataDir, SeedFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Store:       st,
		Reminders:   notify.NewMemoryStore(),
		Preferences: preferences.NewMemoryKV(),
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:       repo,
		Reminders:   repo,
		Preferences: repo,
		Ping:        repo.Ping,
		Cleanup:     repo.Close,
	}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := postgres.Open(ctx, config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}

	// The hosted schema has no reminders table; reminders stay in process.
	f.logger.Info("Initialized Postgres backend", "reminders", "memory")

	return &BackendResult{
		Store:       repo,
		Reminders:   notify.NewMemoryStore(),
		Preferences: repo,
		Ping:        repo.Ping,
		Cleanup:     repo.Close,
	}, nil
}

func (f *DefaultFactory) createSupabaseBackend(config Config) (*BackendResult, error) {
	client, err := supabase.New(supabase.Config{
		ProjectURL: config.SupabaseURL,
		APIKey:     config.SupabaseAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
	}

	f.logger.Info("Initialized Supabase backend", "project_url", config.SupabaseURL)

	return &BackendResult{
		Store:       supabase.NewStore(client),
		Reminders:   notify.NewMemoryStore(),
		Preferences: preferences.NewMemoryKV(),
	}, nil
}

func (f *DefaultFactory) useRedisPreferences(ctx context.Context, config Config, result *BackendResult) error {
	client, err := preferences.OpenRedis(ctx, config.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis preferences: %w", err)
	}
	f.logger.Info("Using Redis for preferences")

	result.Preferences = preferences.NewRedisKV(client)

	backendPing, backendCleanup := result.Ping, result.Cleanup
	result.Ping = func(ctx context.Context) error {
		if backendPing != nil {
			if err := backendPing(ctx); err != nil {
				return err
			}
		}
		return client.Ping(ctx).Err()
	}
	result.Cleanup = func() error {
		var errs []error
		if backendCleanup != nil {
			errs = append(errs, backendCleanup())
		}
		errs = append(errs, client.Close())
		return errors.Join(errs...)
	}
	return nil
}
