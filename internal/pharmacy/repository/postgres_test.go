package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/medflow/pharmacy-backend/pkg/testutil"
)

var lotRowColumns = []string{"id", "medicine_id", "lot_no", "received_date", "expiry_date", "qty_in", "qty_remaining", "unit_cost", "created_at"}

func TestSQLStore_PostgresLocksMedicineAndLots(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	store := repository.NewSQLStore(mockDB.DB)
	received := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mockDB.Mock.ExpectBegin()
	mockDB.ExpectExec(`SELECT pg_advisory_xact_lock(hashtext($1))`).
		WithArgs("M1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.Mock.ExpectQuery(`ORDER BY received_date ASC NULLS FIRST, id ASC FOR UPDATE`).
		WithArgs("M1").
		WillReturnRows(testutil.MockRows(lotRowColumns...).
			AddRow(1, "M1", "A", nil, nil, 10, 10, "2.00", received).
			AddRow(2, "M1", "B", received, nil, 10, 4, "3.50", received))
	mockDB.Mock.ExpectCommit()

	var lots []domain.Lot
	err := store.WithinMedicine(context.Background(), "M1", func(ctx context.Context, tx domain.DispenseTx) error {
		var err error
		lots, err = tx.LotsAvailable(ctx, "M1")
		return err
	})

	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Nil(t, lots[0].ReceivedDate)
	assert.True(t, lots[1].UnitCost.Equal(decimal.RequireFromString("3.5")))
	mockDB.ExpectationsWereMet(t)
}

func TestSQLStore_ConflictIsRetryable(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	store := repository.NewSQLStore(mockDB.DB)

	mockDB.Mock.ExpectBegin()
	mockDB.ExpectExec(`SELECT pg_advisory_xact_lock(hashtext($1))`).
		WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
	mockDB.Mock.ExpectRollback()

	err := store.WithinMedicine(context.Background(), "M1", func(ctx context.Context, tx domain.DispenseTx) error {
		t.Fatal("callback must not run without the lock")
		return nil
	})

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.True(t, domain.IsRetryable(err))
	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_ApplyDrawRefused(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewLotRepository(mockDB.DB)

	mockDB.ExpectExec(`UPDATE lots SET qty_remaining = qty_remaining - $1, updated_at = $2 WHERE id = $3 AND medicine_id = $4 AND qty_remaining >= $5`).
		WithArgs(7, testutil.AnyTime{}, int64(3), "M1", 7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.Mock.ExpectQuery(`FROM lots WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(testutil.MockRows(lotRowColumns...).
			AddRow(3, "M1", "C", nil, nil, 10, 5, "1", time.Now()))

	err := repo.ApplyDraw(context.Background(), "M1", 3, 7)

	var invErr *domain.InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 5, invErr.Remaining)
	assert.Equal(t, 7, invErr.Amount)
	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_ApplyDrawOtherMedicine(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewLotRepository(mockDB.DB)

	mockDB.ExpectExec(`UPDATE lots SET qty_remaining`).
		WithArgs(2, testutil.AnyTime{}, int64(9), "M1", 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.Mock.ExpectQuery(`FROM lots WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(testutil.MockRows(lotRowColumns...).
			AddRow(9, "M2", "X", nil, nil, 10, 10, "1", time.Now()))

	err := repo.ApplyDraw(context.Background(), "M1", 9, 2)

	var invErr *domain.InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "lot belongs to another medicine", invErr.Reason)
	mockDB.ExpectationsWereMet(t)
}

func TestLedgerRepository_RecordAndQuerySQL(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewLedgerRepository(mockDB.DB)
	ctx := context.Background()

	mockDB.Mock.ExpectQuery(`INSERT INTO dispense_entries`).
		WithArgs("d-1", "v-1", "M1", int64(2), 3, decimal.NewFromInt(2), decimal.NewFromInt(5), "nurse-1", testutil.AnyTime{}).
		WillReturnRows(testutil.MockRows("id").AddRow(41))

	entry := &domain.DispenseEntry{
		DispenseID: "d-1", VisitID: "v-1", MedicineID: "M1", LotID: 2, Qty: 3,
		UnitCost: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(5), DispensedBy: "nurse-1",
	}
	id, err := repo.Record(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, int64(41), id)

	from := testutil.MustDate("2024-05-01")
	to := testutil.MustDate("2024-05-31")
	mockDB.ExpectQuery(`SELECT id, dispense_id, visit_id, medicine_id, lot_id, qty, unit_cost, unit_price, dispensed_by, created_at FROM dispense_entries WHERE created_at >= $1 AND created_at < $2 AND medicine_id = $3 ORDER BY created_at DESC, id DESC LIMIT $4`).
		WithArgs(*from, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), "M1", 500).
		WillReturnRows(testutil.MockRows("id", "dispense_id", "visit_id", "medicine_id", "lot_id", "qty", "unit_cost", "unit_price", "dispensed_by", "created_at"))

	entries, err := repo.Query(ctx, domain.EntryFilter{From: from, To: to, MedicineID: "M1", Limit: 500})
	require.NoError(t, err)
	assert.Empty(t, entries)
	mockDB.ExpectationsWereMet(t)
}
