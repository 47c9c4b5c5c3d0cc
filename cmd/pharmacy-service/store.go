package main

import (
	"context"
	"fmt"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/handler"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// backend is a storage implementation together with its health check.
type backend interface {
	domain.Store
	handler.HealthChecker
}

// openStore opens the configured storage. SQLite schemas are created on the
// fly; PostgreSQL is migrated explicitly with `migrate up`.
func openStore(ctx context.Context, cfg *config.DatabaseConfig, log *logger.Logger) (backend, func() error, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return repository.NewMemoryStore(), func() error { return nil }, nil
	}

	db, err := database.New(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
	}

	return repository.NewSQLStore(db), db.Close, nil
}
