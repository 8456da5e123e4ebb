package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"ldn/internal/constants"
	"ldn/internal/store"
	"ldn/pkg/migrations"
)

// InitStore opens the message store selected by store.driver, applying the
// embedded migrations first when database.run_migrations is set. SQL backed
// stores are wrapped in a circuit breaker; their handle stays reachable through
// SQL and is closed by ShutdownDatabases.
func (dc *DatabaseConnector) InitStore(ctx context.Context, opts ...store.Option) (store.Store, error) {
	switch dc.Config.Store.Driver {
	case constants.StoreDriverMemory:
		dc.Logger.Warn("Using in-memory message store, messages will not survive a restart")
		return store.NewMemoryStore(opts...), nil

	case constants.StoreDriverSQLite:
		db, err := store.OpenSQLite(dc.Config.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
		}
		if dc.Config.Database.RunMigrations {
			if err := migrations.RunSQLite(db.DB, migrations.Up); err != nil {
				db.Close()
				return nil, err
			}
		}
		dc.sqlDB = db
		dc.Logger.Infow("SQLite message store opened", "path", dc.Config.Store.SQLitePath)
		return store.NewCircuitBreakerStore(store.NewSQLiteStore(db, opts...), constants.StoreDriverSQLite, dc.Config.CircuitBreaker), nil

	case constants.StoreDriverPostgres:
		db, err := dc.InitPostgreSQL(ctx)
		if err != nil {
			return nil, err
		}
		if db == nil {
			return nil, fmt.Errorf("store.driver is postgres but database.postgres.host is empty")
		}
		if dc.Config.Database.RunMigrations {
			if err := migrations.RunPostgres(db, migrations.Up); err != nil {
				db.Close()
				return nil, err
			}
		}
		dc.sqlDB = sqlx.NewDb(db, "postgres")
		return store.NewCircuitBreakerStore(store.NewPostgresStore(db, opts...), constants.StoreDriverPostgres, dc.Config.CircuitBreaker), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", dc.Config.Store.Driver)
	}
}
