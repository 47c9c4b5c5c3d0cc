package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/database"
)

const lotColumns = `id, medicine_id, lot_no, received_date, expiry_date, qty_in, qty_remaining, unit_cost, created_at`

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// AddLot inserts a received lot and assigns its ID.
func (r *LotRepository) AddLot(ctx context.Context, lot *domain.Lot) (int64, error) {
	lot.CreatedAt = now()

	query := r.db.Rebind(`
		INSERT INTO lots (medicine_id, lot_no, received_date, expiry_date, qty_in, qty_remaining, unit_cost, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.Ext(ctx).QueryRowxContext(ctx, query,
		lot.MedicineID, lot.LotNo, lot.ReceivedDate, lot.ExpiryDate,
		lot.QtyIn, lot.QtyRemaining, lot.UnitCost, lot.CreatedAt, lot.CreatedAt,
	).Scan(&lot.ID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return 0, domain.ErrMedicineNotFound
		}
		return 0, fmt.Errorf("insert lot: %w", err)
	}
	return lot.ID, nil
}

// GetLot gets a lot by ID
func (r *LotRepository) GetLot(ctx context.Context, id int64) (*domain.Lot, error) {
	var lot domain.Lot
	query := r.db.Rebind(`SELECT ` + lotColumns + ` FROM lots WHERE id = ?`)

	if err := sqlx.GetContext(ctx, r.db.Ext(ctx), &lot, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLotNotFound
		}
		return nil, fmt.Errorf("get lot %d: %w", id, err)
	}
	return &lot, nil
}

// ListLots lists every lot of a medicine for the inventory view.
func (r *LotRepository) ListLots(ctx context.Context, medicineID string) ([]domain.Lot, error) {
	lots := []domain.Lot{}
	query := r.db.Rebind(`
		SELECT ` + lotColumns + ` FROM lots
		WHERE medicine_id = ?
		ORDER BY expiry_date ASC NULLS LAST, id DESC
	`)

	if err := sqlx.SelectContext(ctx, r.db.Ext(ctx), &lots, query, medicineID); err != nil {
		return nil, fmt.Errorf("list lots for %s: %w", medicineID, err)
	}
	return lots, nil
}

// LotsAvailable returns the lots with stock left in FIFO order. On PostgreSQL
// the rows stay locked until the surrounding transaction ends.
func (r *LotRepository) LotsAvailable(ctx context.Context, medicineID string) ([]domain.Lot, error) {
	lots := []domain.Lot{}
	query := `
		SELECT ` + lotColumns + ` FROM lots
		WHERE medicine_id = ? AND qty_remaining > 0
		ORDER BY received_date ASC NULLS FIRST, id ASC`
	if r.db.IsPostgres() {
		query += ` FOR UPDATE`
	}

	if err := sqlx.SelectContext(ctx, r.db.Ext(ctx), &lots, r.db.Rebind(query), medicineID); err != nil {
		return nil, fmt.Errorf("available lots for %s: %w", medicineID, err)
	}
	return lots, nil
}

// ApplyDraw decrements a lot of medicineID. The guarded update never lets
// qty_remaining go below zero and never touches another medicine's lot; a
// draw it refuses is reported as an invariant violation.
func (r *LotRepository) ApplyDraw(ctx context.Context, medicineID string, lotID int64, amount int) error {
	if amount <= 0 {
		return &domain.InvariantError{LotID: lotID, Amount: amount, Reason: "draw must be positive"}
	}

	query := r.db.Rebind(`
		UPDATE lots SET qty_remaining = qty_remaining - ?, updated_at = ?
		WHERE id = ? AND medicine_id = ? AND qty_remaining >= ?
	`)

	res, err := r.db.Ext(ctx).ExecContext(ctx, query, amount, now(), lotID, medicineID, amount)
	if err != nil {
		return fmt.Errorf("apply draw to lot %d: %w", lotID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply draw to lot %d: %w", lotID, err)
	}
	if n == 1 {
		return nil
	}

	lot, err := r.GetLot(ctx, lotID)
	switch {
	case errors.Is(err, domain.ErrLotNotFound):
		return &domain.InvariantError{LotID: lotID, Amount: amount, Reason: "lot does not exist"}
	case err != nil:
		return err
	case lot.MedicineID != medicineID:
		return &domain.InvariantError{LotID: lotID, Amount: amount, Reason: "lot belongs to another medicine"}
	}
	return &domain.InvariantError{
		LotID:     lotID,
		Amount:    amount,
		Remaining: lot.QtyRemaining,
		Reason:    "draw exceeds remaining quantity",
	}
}
