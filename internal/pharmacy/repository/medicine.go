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

// MedicineRepository stores the local medicine catalog.
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// UpsertMedicine inserts a medicine or refreshes its name, form and unit.
func (r *MedicineRepository) UpsertMedicine(ctx context.Context, m *domain.Medicine) error {
	if m.Unit == "" {
		m.Unit = domain.DefaultUnit
	}
	m.UpdatedAt = now()

	query := r.db.Rebind(`
		INSERT INTO medicines (id, name, form, unit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			form = excluded.form,
			unit = excluded.unit,
			updated_at = excluded.updated_at
	`)

	ext := r.db.Ext(ctx)
	if _, err := ext.ExecContext(ctx, query, m.ID, m.Name, m.Form, m.Unit, m.UpdatedAt, m.UpdatedAt); err != nil {
		return fmt.Errorf("upsert medicine %s: %w", m.ID, err)
	}

	if err := sqlx.GetContext(ctx, ext, &m.CreatedAt, r.db.Rebind(`SELECT created_at FROM medicines WHERE id = ?`), m.ID); err != nil {
		return fmt.Errorf("upsert medicine %s: %w", m.ID, err)
	}
	return nil
}

// GetMedicine gets a medicine by ID
func (r *MedicineRepository) GetMedicine(ctx context.Context, id string) (*domain.Medicine, error) {
	var m domain.Medicine
	query := r.db.Rebind(`SELECT id, name, form, unit, created_at, updated_at FROM medicines WHERE id = ?`)

	if err := sqlx.GetContext(ctx, r.db.Ext(ctx), &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMedicineNotFound
		}
		return nil, fmt.Errorf("get medicine %s: %w", id, err)
	}
	return &m, nil
}

// ListMedicines lists the catalog ordered by name
func (r *MedicineRepository) ListMedicines(ctx context.Context) ([]domain.Medicine, error) {
	medicines := []domain.Medicine{}
	query := `SELECT id, name, form, unit, created_at, updated_at FROM medicines ORDER BY name, id`

	if err := sqlx.SelectContext(ctx, r.db.Ext(ctx), &medicines, query); err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	return medicines, nil
}
