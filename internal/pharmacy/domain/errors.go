package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuantity is returned when a dispense asks for zero or fewer units.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidPrice is returned for a negative unit price.
	ErrInvalidPrice = errors.New("unit price must not be negative")
	// ErrInvalidPriceMode is returned for a receipt price mode other than unit or total.
	ErrInvalidPriceMode = errors.New("price mode must be unit or total")
	// ErrInsufficientStock is returned when the available lots cannot cover a request.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvariantViolation signals a defect: a draw exceeding what a lot holds.
	ErrInvariantViolation = errors.New("inventory invariant violated")
	// ErrConflict is a transient storage conflict; the whole dispense may be replayed.
	ErrConflict = errors.New("storage conflict")

	ErrMedicineNotFound = errors.New("medicine not found")
	ErrLotNotFound      = errors.New("lot not found")
)

// InsufficientStockError carries the shortfall of a rejected dispense.
type InsufficientStockError struct {
	MedicineID string
	Requested  int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for medicine %s: requested %d, available %d",
		e.MedicineID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// Shortfall is the number of units that could not be covered.
func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

// InvariantError describes a rejected draw.
type InvariantError struct {
	LotID     int64
	Amount    int
	Remaining int
	Reason    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("inventory invariant violated on lot %d: %s (draw %d, remaining %d)",
		e.LotID, e.Reason, e.Amount, e.Remaining)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// IsRetryable reports whether the operation failed on a transient storage conflict.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError reports whether err was caused by the request rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrInvalidPriceMode) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrMedicineNotFound) ||
		errors.Is(err, ErrLotNotFound)
}
