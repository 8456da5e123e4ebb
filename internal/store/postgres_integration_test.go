//go:build integration

package store

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgresmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ldn/pkg/migrations"
)

var (
	pgOnce sync.Once
	pgDB   *sql.DB
	pgErr  error
)

func init() {
	backends["postgres"] = func(t *testing.T, clock *testClock) Store {
		db := sharedPostgres(t)
		_, err := db.Exec(`TRUNCATE ldn_messages, ldn_origin_services`)
		require.NoError(t, err)
		return NewPostgresStore(db, WithClock(clock.Now))
	}
}

// sharedPostgres starts one container for the whole package run.
func sharedPostgres(t *testing.T) *sql.DB {
	t.Helper()

	pgOnce.Do(func() {
		if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
			os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
		}

		ctx := context.Background()
		container, err := postgresmodule.Run(ctx, "postgres:15",
			postgresmodule.WithDatabase("ldn_test"),
			postgresmodule.WithUsername("test_user"),
			postgresmodule.WithPassword("test_password"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		if err != nil {
			pgErr = err
			return
		}

		conn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			pgErr = err
			return
		}

		db, err := sql.Open("postgres", conn)
		if err != nil {
			pgErr = err
			return
		}
		if err := db.PingContext(ctx); err != nil {
			pgErr = err
			return
		}
		if err := migrations.RunPostgres(db, migrations.Up); err != nil {
			pgErr = err
			return
		}
		pgDB = db
	})

	if pgErr != nil {
		t.Fatalf("failed to start postgres: %v", pgErr)
	}
	return pgDB
}
