//go:build integration

// Package dbtest starts a throwaway Postgres with the real migrations applied.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"employeehub/internal/platform/db"
)

// Start runs a Postgres container, migrates it and returns a pool. The
// container is terminated when the test finishes.
func Start(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("employeehub"),
		tcpostgres.WithUsername("employeehub"),
		tcpostgres.WithPassword("employeehub"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool, migrationsDir(t)); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return pool
}

// migrationsDir walks up from the test's package directory to the module root.
func migrationsDir(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found above test directory")
		}
		dir = parent
	}
}

// InsertEmployee adds an active employee and returns its id.
func InsertEmployee(t *testing.T, pool *pgxpool.Pool, firstName, email string, start time.Time, reportsTo *string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), `
    INSERT INTO employees (first_name, last_name, email, role, start_date, reports_to)
    VALUES ($1, 'Test', $2, 'Carer', $3, $4)
    RETURNING id::text
  `, firstName, email, start, reportsTo).Scan(&id)
	if err != nil {
		t.Fatalf("insert employee: %v", err)
	}
	return id
}
