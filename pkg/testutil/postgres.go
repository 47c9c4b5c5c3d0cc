// Package testutil holds test helpers for the pharmacy service: a shared
// PostgreSQL testcontainer, SQLite and sqlmock databases, fixtures and HTTP helpers.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

const postgresImage = "postgres:15-alpine"

// One container serves every integration test in the process.
var (
	pgOnce      sync.Once
	pgContainer *postgres.PostgresContainer
	pgDB        *database.DB
	pgErr       error
)

// PostgresSuite is a handle on the shared PostgreSQL database.
type PostgresSuite struct {
	DB *database.DB
}

// RequirePostgres returns the shared database, starting the container on
// first use. The test is skipped under -short or without a container runtime.
func RequirePostgres(t *testing.T) *PostgresSuite {
	t.Helper()
	SkipIfShort(t)

	pgOnce.Do(func() {
		pgContainer, pgDB, pgErr = startPostgres(context.Background())
	})
	if pgErr != nil {
		t.Skipf("postgres container unavailable: %v", pgErr)
	}
	return &PostgresSuite{DB: pgDB}
}

func startPostgres(ctx context.Context) (*postgres.PostgresContainer, *database.DB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(postgresImage),
		postgres.WithDatabase("pharmacy_test"),
		postgres.WithUsername("pharmacy"),
		postgres.WithPassword("pharmacy"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres container: %w", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, fmt.Errorf("postgres connection string: %w", err)
	}

	db, err := database.New(&config.DatabaseConfig{Driver: config.DriverPostgres, URL: url}, logger.Nop())
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	return container, db, nil
}

// Truncate empties tables and resets their identity sequences.
func (s *PostgresSuite) Truncate(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := s.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" RESTART IDENTITY CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// TerminatePostgres stops the shared container. Call it from TestMain once all tests ran.
func TerminatePostgres(ctx context.Context) {
	if pgDB != nil {
		_ = pgDB.Close()
	}
	if pgContainer != nil {
		_ = pgContainer.Terminate(ctx)
	}
}
