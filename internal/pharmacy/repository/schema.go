package repository

import (
	"context"
	"fmt"

	"github.com/medflow/pharmacy-backend/pkg/database"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS medicines (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		form        TEXT NOT NULL DEFAULT '',
		unit        TEXT NOT NULL DEFAULT 'tablet',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS lots (
		id             BIGSERIAL PRIMARY KEY,
		medicine_id    TEXT NOT NULL REFERENCES medicines(id),
		lot_no         TEXT NOT NULL DEFAULT '',
		received_date  DATE,
		expiry_date    DATE,
		qty_in         INTEGER NOT NULL CONSTRAINT lots_qty_in_check CHECK (qty_in >= 0),
		qty_remaining  INTEGER NOT NULL CONSTRAINT lots_qty_remaining_check CHECK (qty_remaining >= 0 AND qty_remaining <= qty_in),
		unit_cost      NUMERIC NOT NULL DEFAULT 0 CONSTRAINT lots_unit_cost_check CHECK (unit_cost >= 0),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lots_fifo ON lots (medicine_id, received_date, id) WHERE qty_remaining > 0`,
	`CREATE INDEX IF NOT EXISTS idx_lots_expiry ON lots (medicine_id, expiry_date)`,
	`CREATE TABLE IF NOT EXISTS dispense_entries (
		id            BIGSERIAL PRIMARY KEY,
		dispense_id   TEXT NOT NULL,
		visit_id      TEXT NOT NULL,
		medicine_id   TEXT NOT NULL REFERENCES medicines(id),
		lot_id        BIGINT NOT NULL REFERENCES lots(id),
		qty           INTEGER NOT NULL CONSTRAINT dispense_entries_qty_positive CHECK (qty > 0),
		unit_cost     NUMERIC NOT NULL,
		unit_price    NUMERIC NOT NULL,
		dispensed_by  TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dispense_entries_created ON dispense_entries (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_dispense_entries_visit ON dispense_entries (visit_id)`,
	`CREATE INDEX IF NOT EXISTS idx_dispense_entries_lot ON dispense_entries (lot_id)`,
}

// Money columns are TEXT on SQLite: NUMERIC affinity would coerce amounts to REAL.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS medicines (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		form        TEXT NOT NULL DEFAULT '',
		unit        TEXT NOT NULL DEFAULT 'tablet',
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS lots (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		medicine_id    TEXT NOT NULL REFERENCES medicines(id),
		lot_no         TEXT NOT NULL DEFAULT '',
		received_date  DATE,
		expiry_date    DATE,
		qty_in         INTEGER NOT NULL CONSTRAINT lots_qty_in_check CHECK (qty_in >= 0),
		qty_remaining  INTEGER NOT NULL CONSTRAINT lots_qty_remaining_check CHECK (qty_remaining >= 0 AND qty_remaining <= qty_in),
		unit_cost      TEXT NOT NULL DEFAULT '0' CONSTRAINT lots_unit_cost_check CHECK (CAST(unit_cost AS REAL) >= 0),
		created_at     DATETIME NOT NULL,
		updated_at     DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lots_fifo ON lots (medicine_id, received_date, id)`,
	`CREATE TABLE IF NOT EXISTS dispense_entries (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		dispense_id   TEXT NOT NULL,
		visit_id      TEXT NOT NULL,
		medicine_id   TEXT NOT NULL REFERENCES medicines(id),
		lot_id        INTEGER NOT NULL REFERENCES lots(id),
		qty           INTEGER NOT NULL CONSTRAINT dispense_entries_qty_positive CHECK (qty > 0),
		unit_cost     TEXT NOT NULL,
		unit_price    TEXT NOT NULL,
		dispensed_by  TEXT NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dispense_entries_created ON dispense_entries (created_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_dispense_entries_visit ON dispense_entries (visit_id)`,
}

// Migrate creates the pharmacy tables for the connected driver. It is idempotent.
func Migrate(ctx context.Context, db *database.DB) error {
	statements := sqliteSchema
	if db.IsPostgres() {
		statements = postgresSchema
	}

	return db.Transaction(ctx, func(ctx context.Context) error {
		for i, stmt := range statements {
			if _, err := db.Ext(ctx).ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration step %d: %w", i+1, err)
			}
		}
		return nil
	})
}
