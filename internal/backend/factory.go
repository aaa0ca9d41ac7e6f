package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spendtrack/internal/amqp"
	"spendtrack/internal/identity"
	"spendtrack/internal/ledger"
	"spendtrack/internal/ledger/httpapi"
	"spendtrack/internal/ledger/memory"
	"spendtrack/internal/storage"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *slog.Logger
}

// Ensure interface conformance
var _ Factory = (*DefaultFactory)(nil)

func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory. A broker that cannot be reached only
// disables notifications.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var cleanups []CleanupFunc
	cleanup := func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}

	client, err := f.createLedger(config)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := f.createIdentity(config)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		cleanups = append(cleanups, closeStore)
	}

	b := Backend{
		Ledger:   client,
		Identity: store,
		Remote:   config.Ledger == HTTPLedger,
	}

	if config.AMQPURL != "" {
		notifier, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPRoutingKey)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change notifications", "error", err)
		} else {
			b.Notifier = notifier
			cleanups = append(cleanups, notifier.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"routing_key", config.AMQPRoutingKey)
		}
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		"ledger", config.Ledger,
		"identity", config.Identity,
		"notifications", b.Notifier != nil)

	return &BackendResult{Backend: b, Cleanup: cleanup}, nil
}

func (f *DefaultFactory) createLedger(config Config) (ledger.Client, error) {
	switch config.Ledger {
	case HTTPLedger:
		client, err := httpapi.New(httpapi.Config{
			BaseURL: config.LedgerBaseURL,
			Timeout: config.LedgerTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ledger client: %w", err)
		}
		return client, nil
	case MemoryLedger:
		f.logger.Warn("Using in-memory ledger, records are lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", config.Ledger)
	}
}

func (f *DefaultFactory) createIdentity(config Config) (identity.Store, CleanupFunc, error) {
	switch config.Identity {
	case SQLiteIdentity:
		store, err := storage.NewSQLiteStore(config.IdentityDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize identity store: %w", err)
		}
		f.logger.Info("Initialized SQLite identity store", "db_path", config.IdentityDBPath)
		return store, store.Close, nil
	case MemoryIdentity:
		return identity.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported identity backend: %s", config.Identity)
	}
}
