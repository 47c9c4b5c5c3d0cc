package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/database"
)

// now is the timestamp source for rows written by this package. Timestamps are
// UTC at microsecond precision so PostgreSQL and SQLite round-trip them unchanged.
var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// SQLStore is the domain.Store backed by PostgreSQL or SQLite.
type SQLStore struct {
	db *database.DB
	*MedicineRepository
	*LotRepository
	ledger *LedgerRepository
}

// NewSQLStore creates a store over db.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{
		db:                 db,
		MedicineRepository: NewMedicineRepository(db),
		LotRepository:      NewLotRepository(db),
		ledger:             NewLedgerRepository(db),
	}
}

// WithinMedicine runs fn in one transaction. On PostgreSQL a transaction-scoped
// advisory lock keyed by the medicine serializes dispenses of that medicine only;
// on SQLite the immediate transaction holds the database write lock.
func (s *SQLStore) WithinMedicine(ctx context.Context, medicineID string, fn func(ctx context.Context, tx domain.DispenseTx) error) error {
	err := s.db.Transaction(ctx, func(ctx context.Context) error {
		if s.db.IsPostgres() {
			if _, err := s.db.Ext(ctx).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, medicineID); err != nil {
				return fmt.Errorf("lock medicine %s: %w", medicineID, err)
			}
		}
		return fn(ctx, sqlTx{lots: s.LotRepository, ledger: s.ledger, medicineID: medicineID})
	})
	if database.IsRetryable(err) {
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
	return err
}

// Query reads committed ledger entries.
func (s *SQLStore) Query(ctx context.Context, filter domain.EntryFilter) ([]domain.DispenseEntry, error) {
	return s.ledger.Query(ctx, filter)
}

// Totals aggregates committed ledger entries.
func (s *SQLStore) Totals(ctx context.Context, filter domain.EntryFilter) (domain.Totals, error) {
	return s.ledger.Totals(ctx, filter)
}

// Health reports the state of the underlying database.
func (s *SQLStore) Health(ctx context.Context) map[string]string {
	return s.db.Health(ctx)
}

// sqlTx is the DispenseTx of one WithinMedicine call. Draws are confined to
// the lots of medicineID, the medicine whose lock is held.
type sqlTx struct {
	lots       *LotRepository
	ledger     *LedgerRepository
	medicineID string
}

func (tx sqlTx) LotsAvailable(ctx context.Context, medicineID string) ([]domain.Lot, error) {
	return tx.lots.LotsAvailable(ctx, medicineID)
}

func (tx sqlTx) ApplyDraw(ctx context.Context, lotID int64, amount int) error {
	return tx.lots.ApplyDraw(ctx, tx.medicineID, lotID, amount)
}

func (tx sqlTx) Record(ctx context.Context, e *domain.DispenseEntry) (int64, error) {
	return tx.ledger.Record(ctx, e)
}

func (tx sqlTx) Query(ctx context.Context, filter domain.EntryFilter) ([]domain.DispenseEntry, error) {
	return tx.ledger.Query(ctx, filter)
}

func (tx sqlTx) Totals(ctx context.Context, filter domain.EntryFilter) (domain.Totals, error) {
	return tx.ledger.Totals(ctx, filter)
}

var (
	_ domain.Store      = (*SQLStore)(nil)
	_ domain.DispenseTx = sqlTx{}
)
