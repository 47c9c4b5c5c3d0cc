package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CostScale is the number of decimal places kept on a unit cost derived
// from a lot total.
const CostScale = 4

// Price modes accepted when receiving a lot.
const (
	PriceModeUnit  = "unit"
	PriceModeTotal = "total"
)

// Lot is one received batch of a medicine.
// QtyRemaining only ever decreases and stays within [0, QtyIn].
type Lot struct {
	ID           int64           `json:"id" db:"id"`
	MedicineID   string          `json:"medicine_id" db:"medicine_id"`
	LotNo        string          `json:"lot_no" db:"lot_no"`
	ReceivedDate *time.Time      `json:"received_date,omitempty" db:"received_date"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty" db:"expiry_date"`
	QtyIn        int             `json:"qty_in" db:"qty_in"`
	QtyRemaining int             `json:"qty_remaining" db:"qty_remaining"`
	UnitCost     decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Consumed is the quantity already drawn from the lot.
func (l Lot) Consumed() int {
	return l.QtyIn - l.QtyRemaining
}

// UnitCostFromPrice turns a receipt price into a per-unit cost.
// In total mode the price covers the whole lot and is spread over qtyIn,
// rounded half away from zero to CostScale places. A total that does not
// divide evenly is then off by the rounding remainder once the lot is drawn.
func UnitCostFromPrice(price decimal.Decimal, mode string, qtyIn int) (decimal.Decimal, error) {
	switch mode {
	case "", PriceModeUnit:
		return price, nil
	case PriceModeTotal:
		if qtyIn > 0 {
			return price.DivRound(decimal.NewFromInt(int64(qtyIn)), CostScale), nil
		}
		return price, nil
	default:
		return decimal.Zero, ErrInvalidPriceMode
	}
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FIFOLess orders lots oldest first: a lot without a received date counts as
// the oldest, and lots received on the same day keep creation order.
func FIFOLess(a, b Lot) bool {
	switch {
	case a.ReceivedDate == nil && b.ReceivedDate != nil:
		return true
	case a.ReceivedDate != nil && b.ReceivedDate == nil:
		return false
	case a.ReceivedDate != nil && b.ReceivedDate != nil && !a.ReceivedDate.Equal(*b.ReceivedDate):
		return a.ReceivedDate.Before(*b.ReceivedDate)
	}
	return a.ID < b.ID
}

// SortFIFO sorts lots in dispensing order.
func SortFIFO(lots []Lot) {
	sort.SliceStable(lots, func(i, j int) bool { return FIFOLess(lots[i], lots[j]) })
}

// SortByExpiry sorts lots for the inventory view: earliest expiry first,
// lots without an expiry date last, newest lot first within a date.
func SortByExpiry(lots []Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		return a.ID > b.ID
	})
}
