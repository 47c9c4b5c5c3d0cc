package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DispenseEntry is one immutable ledger row: qty units drawn from a single lot
// for a visit, with the lot's unit cost copied at draw time.
type DispenseEntry struct {
	ID          int64           `json:"id" db:"id"`
	DispenseID  string          `json:"dispense_id" db:"dispense_id"`
	VisitID     string          `json:"visit_id" db:"visit_id"`
	MedicineID  string          `json:"medicine_id" db:"medicine_id"`
	LotID       int64           `json:"lot_id" db:"lot_id"`
	Qty         int             `json:"qty" db:"qty"`
	UnitCost    decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	DispensedBy string          `json:"dispensed_by,omitempty" db:"dispensed_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Cost is qty × unit_cost.
func (e DispenseEntry) Cost() decimal.Decimal {
	return e.UnitCost.Mul(decimal.NewFromInt(int64(e.Qty)))
}

// Revenue is qty × unit_price.
func (e DispenseEntry) Revenue() decimal.Decimal {
	return e.UnitPrice.Mul(decimal.NewFromInt(int64(e.Qty)))
}

// EntryFilter selects ledger rows. From and To are calendar dates and the
// range is closed: every entry created on the To day is included.
type EntryFilter struct {
	From       *time.Time
	To         *time.Time
	MedicineID string
	VisitID    string
	// Limit caps the number of rows; zero means no cap.
	Limit int
}

// Lower returns the inclusive lower bound on created_at, if any.
func (f EntryFilter) Lower() *time.Time {
	if f.From == nil {
		return nil
	}
	t := DateOnly(*f.From)
	return &t
}

// Upper returns the exclusive upper bound on created_at: midnight after the To day.
func (f EntryFilter) Upper() *time.Time {
	if f.To == nil {
		return nil
	}
	t := DateOnly(*f.To).AddDate(0, 0, 1)
	return &t
}

// Matches reports whether e satisfies the filter.
func (f EntryFilter) Matches(e DispenseEntry) bool {
	if lo := f.Lower(); lo != nil && e.CreatedAt.Before(*lo) {
		return false
	}
	if hi := f.Upper(); hi != nil && !e.CreatedAt.Before(*hi) {
		return false
	}
	if f.MedicineID != "" && e.MedicineID != f.MedicineID {
		return false
	}
	if f.VisitID != "" && e.VisitID != f.VisitID {
		return false
	}
	return true
}
