package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// NewSQLiteDB opens a fresh file-backed SQLite database under t.TempDir.
// The database is closed when the test ends.
func NewSQLiteDB(t *testing.T) *database.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "pharmacy.db"),
		BusyTimeout: 10 * time.Second,
	}

	db, err := database.New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
