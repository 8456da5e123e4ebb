package main

import (
	"context"
	"fmt"

	"ldn/internal/config"
	"ldn/internal/constants"
	"ldn/internal/logger"
	"ldn/internal/store"
	"ldn/pkg/bootstrap"
	"ldn/pkg/migrations"
)

// runMigrations migrates the configured store. Going up it also creates the
// repository objects collection indexes when MongoDB is configured.
func runMigrations(ctx context.Context, cfg *config.Config, log logger.Logger, dir migrations.Direction) error {
	dc := bootstrap.NewDatabaseConnector(cfg, log)

	switch cfg.Store.Driver {
	case constants.StoreDriverSQLite:
		db, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrations.RunSQLite(db.DB, dir); err != nil {
			return err
		}

	case constants.StoreDriverPostgres:
		db, err := dc.InitPostgreSQL(ctx)
		if err != nil {
			return err
		}
		if db == nil {
			return fmt.Errorf("store.driver is postgres but database.postgres.host is empty")
		}
		defer db.Close()
		if err := migrations.RunPostgres(db, dir); err != nil {
			return err
		}

	case constants.StoreDriverMemory:
		log.Info("Memory store has no schema, nothing to migrate")

	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	log.Infow("SQL migrations complete", "driver", cfg.Store.Driver, "direction", dir)

	if dir != migrations.Up {
		return nil
	}

	client, err := dc.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	if client == nil {
		return nil
	}
	defer client.Disconnect(ctx)

	cfg.Database.RunMigrations = true
	if _, err := dc.ObjectsCollection(ctx, client); err != nil {
		return err
	}
	log.Info("MongoDB objects collection ready")
	return nil
}
