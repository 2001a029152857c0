package backend

import (
	"context"
	"fmt"

	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
	"fintrack/internal/storage/mongostore"
)

type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLite(ctx, config)
	case MongoBackend:
		return f.createMongo(ctx, config)
	case MemoryBackend:
		return f.createMemory(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLite(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		log.FieldBackend, SQLiteBackend, "db_path", config.SQLiteDBPath)

	return &Result{
		Store:   repo,
		Cleanup: func(context.Context) error { return repo.Close() },
	}, nil
}

func (f *DefaultFactory) createMongo(ctx context.Context, config Config) (*Result, error) {
	store, err := mongostore.Connect(ctx, mongostore.Config{
		URI:            config.MongoURI,
		Database:       config.MongoDatabase,
		ConnectTimeout: config.MongoConnectTimeout,
		Timezone:       config.Timezone,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize MongoDB store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized MongoDB backend",
		log.FieldBackend, MongoBackend, "database", config.MongoDatabase)

	return &Result{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createMemory(ctx context.Context) (*Result, error) {
	f.logger.WarnContext(ctx, "Using in-memory backend; data is lost on restart",
		log.FieldBackend, MemoryBackend)

	return &Result{
		Store:   memory.New(),
		Cleanup: func(context.Context) error { return nil },
	}, nil
}
