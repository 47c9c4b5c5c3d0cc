package database_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

func newMock(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return database.Wrap(sqlx.NewDb(raw, "postgres"), logger.Nop()), mock
}

func TestTransaction_CommitsAndSharesTx(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE lots").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.Transaction(context.Background(), func(ctx context.Context) error {
		_, isTx := db.Ext(ctx).(*sqlx.Tx)
		assert.True(t, isTx)

		// nested calls join the outer transaction
		return db.Transaction(ctx, func(ctx context.Context) error {
			_, err := db.Ext(ctx).ExecContext(ctx, "UPDATE lots SET qty_remaining = 0")
			return err
		})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	boom := stderrors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := db.Transaction(context.Background(), func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExt_WithoutTransaction(t *testing.T) {
	db, _ := newMock(t)
	_, isDB := db.Ext(context.Background()).(*sqlx.DB)
	assert.True(t, isDB)
	assert.True(t, db.IsPostgres())
}

func TestHealth(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer raw.Close()
	db := database.Wrap(sqlx.NewDb(raw, "postgres"), logger.Nop())

	mock.ExpectPing()
	assert.Equal(t, "up", db.Health(context.Background())["status"])

	mock.ExpectPing().WillReturnError(stderrors.New("connection refused"))
	status := db.Health(context.Background())
	assert.Equal(t, "down", status["status"])
	assert.Equal(t, "connection refused", status["error"])
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", stderrors.New("x"), false},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("apply draw: %w", &pq.Error{Code: "40P01"}), true},
		{"lock not available", &pq.Error{Code: "55P03"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite locked", fmt.Errorf("commit: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, database.IsRetryable(tt.err))
		})
	}
}

func TestIsCheckViolation(t *testing.T) {
	assert.True(t, database.IsCheckViolation(&pq.Error{Code: "23514"}))
	assert.True(t, database.IsCheckViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}))
	assert.False(t, database.IsCheckViolation(&pq.Error{Code: "23505"}))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, database.IsForeignKeyViolation(&pq.Error{Code: "23503"}))
	assert.True(t, database.IsForeignKeyViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}))
	assert.False(t, database.IsForeignKeyViolation(stderrors.New("x")))
}

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"negative qty_in", &pq.Error{Code: "23514", Constraint: "lots_qty_in_check"}, errors.ErrValidation},
		{"remaining out of range", &pq.Error{Code: "23514", Constraint: "lots_qty_remaining_check"}, errors.ErrConflict},
		{"unique", &pq.Error{Code: "23505"}, errors.ErrConflict},
		{"unknown medicine", &pq.Error{Code: "23503", Constraint: "lots_medicine_id_fkey"}, errors.ErrNotFound},
		{"not null", &pq.Error{Code: "23502", Column: "lot_no"}, errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := database.MapPQError(tt.err)
			require.NotNil(t, appErr)
			assert.ErrorIs(t, appErr, tt.target)
		})
	}

	assert.Nil(t, database.MapPQError(stderrors.New("not a pq error")))
	assert.Nil(t, database.MapPQError(&pq.Error{Code: "40001"}))
}
