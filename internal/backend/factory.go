package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rwa/internal/amqp"
	"rwa/internal/services"
	"rwa/internal/storage"
	"rwa/internal/storage/postgres"
	"rwa/internal/store"
	"rwa/internal/store/memory"
)

type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory logs to logger, or to the default logger when nil.
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the store named by config.Type.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	result := f.withEvents(sqliteRepo, config)
	result.Listen = sqliteRepo.Watch
	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", result.Publisher != nil)
	return result, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := postgres.Connect(ctx, config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}

	result := f.withEvents(repo, config)
	result.Listen = repo.Listen
	f.logger.Info("Initialized Postgres backend", "amqp_enabled", result.Publisher != nil)
	return result, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	st := memory.NewFromFiles(config.DataDirectory)
	f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)

	return &BackendResult{
		Store:   st,
		Cleanup: st.Close,
	}, nil
}

// withEvents attaches the optional AMQP publisher to a durable store.
func (f *DefaultFactory) withEvents(st store.Store, config Config) *BackendResult {
	result := &BackendResult{Store: st, Cleanup: st.Close}
	if !config.Events.Enabled() {
		return result
	}

	amqpClient, err := amqp.NewClient(config.Events.URL, config.Events.Exchange, config.Events.Queue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		return result
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.Events.Exchange,
		"queue", config.Events.Queue)

	// assigned only when non-nil so the interface stays nil without AMQP
	var publisher services.EventPublisher = amqpClient
	result.Publisher = publisher
	result.Cleanup = func() error {
		return errors.Join(amqpClient.Close(), st.Close())
	}
	return result
}
