package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

func TestToAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid quantity", domain.ErrInvalidQuantity, http.StatusBadRequest, "INVALID_QUANTITY"},
		{"invalid price", domain.ErrInvalidPrice, http.StatusBadRequest, "INVALID_PRICE"},
		{"invalid price mode", domain.ErrInvalidPriceMode, http.StatusBadRequest, "INVALID_PRICE_MODE"},
		{"insufficient stock", &domain.InsufficientStockError{MedicineID: "m", Requested: 5, Available: 2}, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"medicine not found", domain.ErrMedicineNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"lot not found", fmt.Errorf("load: %w", domain.ErrLotNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", fmt.Errorf("%w: deadlock", domain.ErrConflict), http.StatusServiceUnavailable, "STORAGE_CONFLICT"},
		{"invariant", &domain.InvariantError{LotID: 1, Amount: 3, Reason: "draw exceeds remaining quantity"}, http.StatusInternalServerError, "INVARIANT_VIOLATION"},
		{"check constraint", &pq.Error{Code: "23514", Constraint: "lots_unit_cost_check"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"app error passes through", errors.BadRequest("nope"), http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var appErr *errors.AppError
			require.ErrorAs(t, toAppError(tt.err), &appErr)
			assert.Equal(t, tt.status, appErr.StatusCode)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestToAppError_ShortfallDetails(t *testing.T) {
	var appErr *errors.AppError
	require.ErrorAs(t, toAppError(&domain.InsufficientStockError{MedicineID: "m", Requested: 5, Available: 2}), &appErr)
	assert.Equal(t, map[string]string{
		"medicine_id": "m",
		"requested":   "5",
		"available":   "2",
		"shortfall":   "3",
	}, appErr.Details)
}

func TestToAppError_UnknownStaysInternal(t *testing.T) {
	err := toAppError(assert.AnError)
	var appErr *errors.AppError
	assert.False(t, errors.As(err, &appErr))
}
