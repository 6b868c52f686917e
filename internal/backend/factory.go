package backend

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/ledger"
	"ledger/internal/services"
	"ledger/internal/storage"
	"ledger/internal/storage/memory"
)

var (
	_ ledger.Store = (*storage.SQLiteRepository)(nil)
	_ ledger.Store = (*memory.Store)(nil)

	_ services.EventPublisher = (*amqp.Client)(nil)
)

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

// CreateBackend opens the configured store, connects the optional event
// publisher and wraps both in a LedgerService.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var store ledger.Store
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(storage.Options{
			Path:               config.SQLiteDBPath,
			StrictCategoryRefs: config.StrictCategoryRefs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend",
			"db_path", repo.Path(),
			"strict_category_refs", config.StrictCategoryRefs)
		store = repo
	case MemoryBackend:
		store = memory.New(memory.DefaultCategories(), memory.WithStrictCategoryRefs(config.StrictCategoryRefs))
		f.logger.InfoContext(ctx, "Initialized memory backend",
			"strict_category_refs", config.StrictCategoryRefs)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	svc := services.NewLedgerService(store, f.publisher(ctx, config))

	return &BackendResult{
		Ledger:  svc,
		Cleanup: svc.Close,
	}, nil
}

// publisher returns nil when events are disabled or the broker is unreachable;
// the ledger keeps serving either way.
func (f *DefaultFactory) publisher(ctx context.Context, config Config) services.EventPublisher {
	if config.AMQPURL == "" {
		return nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}

	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
