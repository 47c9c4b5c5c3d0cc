package handler

import (
	"strconv"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// toAppError maps domain and storage errors onto HTTP errors.
func toAppError(err error) error {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		return errors.Conflict(stockErr.Error()).
			WithCode("INSUFFICIENT_STOCK").
			WithDetails(map[string]string{
				"medicine_id": stockErr.MedicineID,
				"requested":   strconv.Itoa(stockErr.Requested),
				"available":   strconv.Itoa(stockErr.Available),
				"shortfall":   strconv.Itoa(stockErr.Shortfall()),
			})
	}

	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		return errors.BadRequest(err.Error()).WithCode("INVALID_QUANTITY")
	case errors.Is(err, domain.ErrInvalidPrice):
		return errors.BadRequest(err.Error()).WithCode("INVALID_PRICE")
	case errors.Is(err, domain.ErrInvalidPriceMode):
		return errors.BadRequest(err.Error()).WithCode("INVALID_PRICE_MODE")
	case errors.Is(err, domain.ErrInsufficientStock):
		return errors.Conflict(err.Error()).WithCode("INSUFFICIENT_STOCK")
	case errors.Is(err, domain.ErrMedicineNotFound):
		return errors.NotFound("medicine")
	case errors.Is(err, domain.ErrLotNotFound):
		return errors.NotFound("lot")
	case errors.Is(err, domain.ErrConflict):
		return errors.Unavailable("inventory is busy, please retry").WithCode("STORAGE_CONFLICT")
	case errors.Is(err, domain.ErrInvariantViolation):
		return errors.Internal("inventory invariant violated").WithCode("INVARIANT_VIOLATION")
	}

	if mapped := database.MapPQError(err); mapped != nil {
		return mapped
	}
	return err
}
