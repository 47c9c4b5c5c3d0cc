package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/database"
)

const entryColumns = `id, dispense_id, visit_id, medicine_id, lot_id, qty, unit_cost, unit_price, dispensed_by, created_at`

// LedgerRepository appends and reads dispense entries. There is no update or delete.
type LedgerRepository struct {
	db *database.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Record appends an entry and returns its ID.
func (r *LedgerRepository) Record(ctx context.Context, e *domain.DispenseEntry) (int64, error) {
	e.CreatedAt = now()

	query := r.db.Rebind(`
		INSERT INTO dispense_entries (dispense_id, visit_id, medicine_id, lot_id, qty, unit_cost, unit_price, dispensed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.Ext(ctx).QueryRowxContext(ctx, query,
		e.DispenseID, e.VisitID, e.MedicineID, e.LotID, e.Qty,
		e.UnitCost, e.UnitPrice, e.DispensedBy, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return 0, fmt.Errorf("record dispense entry for lot %d: %w", e.LotID, err)
	}
	return e.ID, nil
}

// Query returns entries matching filter, newest first.
func (r *LedgerRepository) Query(ctx context.Context, filter domain.EntryFilter) ([]domain.DispenseEntry, error) {
	where, args := entryWhere(filter)

	query := `SELECT ` + entryColumns + ` FROM dispense_entries` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	entries := []domain.DispenseEntry{}
	if err := sqlx.SelectContext(ctx, r.db.Ext(ctx), &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query dispense entries: %w", err)
	}
	return entries, nil
}

// Totals streams the matching entries into their totals without holding them.
// Money columns are summed as decimals in Go, since SQLite stores them as text.
func (r *LedgerRepository) Totals(ctx context.Context, filter domain.EntryFilter) (domain.Totals, error) {
	totals := domain.Aggregate(nil)
	where, args := entryWhere(filter)

	query := r.db.Rebind(`SELECT qty, unit_cost, unit_price FROM dispense_entries` + where)
	rows, err := r.db.Ext(ctx).QueryxContext(ctx, query, args...)
	if err != nil {
		return totals, fmt.Errorf("total dispense entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.DispenseEntry
		if err := rows.StructScan(&e); err != nil {
			return totals, fmt.Errorf("scan dispense entry: %w", err)
		}
		totals.Add(e)
	}
	if err := rows.Err(); err != nil {
		return totals, fmt.Errorf("total dispense entries: %w", err)
	}
	return totals, nil
}

// entryWhere renders filter as a WHERE clause with ? placeholders.
func entryWhere(filter domain.EntryFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if lo := filter.Lower(); lo != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *lo)
	}
	if hi := filter.Upper(); hi != nil {
		where = append(where, "created_at < ?")
		args = append(args, *hi)
	}
	if filter.MedicineID != "" {
		where = append(where, "medicine_id = ?")
		args = append(args, filter.MedicineID)
	}
	if filter.VisitID != "" {
		where = append(where, "visit_id = ?")
		args = append(args, filter.VisitID)
	}

	if len(where) == 0 {
		return "", args
	}
	return ` WHERE ` + strings.Join(where, " AND "), args
}
