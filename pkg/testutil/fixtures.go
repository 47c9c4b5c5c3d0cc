package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
)

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Medicine creates a medicine fixture with a random ID.
func (f *FixtureFactory) Medicine(opts ...func(*domain.Medicine)) domain.Medicine {
	seq := f.nextSeq()
	m := domain.Medicine{
		ID:   uuid.New().String(),
		Name: fmt.Sprintf("Paracetamol %d", seq),
		Form: "tablet 500mg",
		Unit: domain.DefaultUnit,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// WithMedicineName sets the medicine name
func WithMedicineName(name string) func(*domain.Medicine) {
	return func(m *domain.Medicine) { m.Name = name }
}

// Lot creates a full, unopened lot of medicineID with ten units at unit cost 1.
func (f *FixtureFactory) Lot(medicineID string, opts ...func(*domain.Lot)) domain.Lot {
	seq := f.nextSeq()
	lot := domain.Lot{
		MedicineID:   medicineID,
		LotNo:        fmt.Sprintf("LOT-%04d", seq),
		QtyIn:        10,
		QtyRemaining: 10,
		UnitCost:     decimal.NewFromInt(1),
	}
	for _, opt := range opts {
		opt(&lot)
	}
	return lot
}

// WithQty sets both the received and the remaining quantity.
func WithQty(qty int) func(*domain.Lot) {
	return func(l *domain.Lot) {
		l.QtyIn = qty
		l.QtyRemaining = qty
	}
}

// WithUnitCost sets the unit cost from a decimal string.
func WithUnitCost(cost string) func(*domain.Lot) {
	return func(l *domain.Lot) { l.UnitCost = decimal.RequireFromString(cost) }
}

// WithReceived sets the received date from a YYYY-MM-DD string.
func WithReceived(date string) func(*domain.Lot) {
	return func(l *domain.Lot) { l.ReceivedDate = MustDate(date) }
}

// WithExpiry sets the expiry date from a YYYY-MM-DD string.
func WithExpiry(date string) func(*domain.Lot) {
	return func(l *domain.Lot) { l.ExpiryDate = MustDate(date) }
}

// MustDate parses a YYYY-MM-DD date as UTC midnight.
func MustDate(date string) *time.Time {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return &t
}
