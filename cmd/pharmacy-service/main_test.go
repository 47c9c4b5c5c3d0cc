package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

func TestRootCommand(t *testing.T) {
	root := newRootCmd()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())

	up, _, err := root.Find([]string{"migrate", "up"})
	require.NoError(t, err)
	assert.Equal(t, "up", up.Name())
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, closeFn, err := openStore(ctx, &config.DatabaseConfig{Driver: config.DriverMemory}, logger.Nop())
		require.NoError(t, err)
		defer closeFn()
		assert.Equal(t, "up", store.Health(ctx)["status"])
	})

	t.Run("sqlite is migrated on open", func(t *testing.T) {
		cfg := &config.DatabaseConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "pharmacy.db"),
		}
		store, closeFn, err := openStore(ctx, cfg, logger.Nop())
		require.NoError(t, err)
		defer closeFn()

		medicines, err := store.ListMedicines(ctx)
		require.NoError(t, err)
		assert.Empty(t, medicines)
	})
}
