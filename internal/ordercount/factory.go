package ordercount

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"google.golang.org/api/option"

	"github.com/dukerupert/shoppy/internal"
)

// NewStore builds the configured backend. The returned cleanup releases
// connections and must be called on shutdown.
func NewStore(ctx context.Context, cfg internal.OrderCountConfig, logger *slog.Logger) (Store, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case "memory", "":
		logger.Warn("using in-memory order counts; counts reset on restart")
		return NewMemoryStore(), noop, nil

	case "postgres":
		if err := migrate(cfg.DatabaseURL, logger); err != nil {
			return nil, nil, err
		}

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database ping failed: %w", err)
		}
		logger.Info("order counts backed by postgres")
		return NewPostgresStore(pool, logger), pool.Close, nil

	case "firebase":
		app, err := newFirebaseApp(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		client, err := app.Database(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create realtime database client: %w", err)
		}
		logger.Info("order counts backed by firebase realtime database", "url", cfg.FirebaseDatabaseURL)
		return NewFirebaseStore(client, cfg.PollInterval, logger), noop, nil

	case "firestore":
		app, err := newFirebaseApp(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close firestore client", "error", err)
			}
		}
		logger.Info("order counts backed by firestore", "project_id", cfg.FirebaseProjectID)
		return NewFirestoreStore(client, logger), cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown order count backend: %s", cfg.Backend)
	}
}

func newFirebaseApp(ctx context.Context, cfg internal.OrderCountConfig) (*firebase.App, error) {
	fbCfg := &firebase.Config{
		ProjectID:   cfg.FirebaseProjectID,
		DatabaseURL: cfg.FirebaseDatabaseURL,
	}

	var opts []option.ClientOption
	if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}

	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return app, nil
}

func migrate(databaseURL string, logger *slog.Logger) error {
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := internal.RunMigrations(sqlDB, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
