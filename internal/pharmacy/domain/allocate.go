package domain

import (
	"github.com/shopspring/decimal"
)

// Draw is the quantity planned from one lot.
type Draw struct {
	Lot Lot
	Qty int
}

// Depletes reports whether the draw empties the lot.
func (d Draw) Depletes() bool {
	return d.Qty == d.Lot.QtyRemaining
}

// PlanFIFO walks lots in the given order and takes min(remaining, still needed)
// from each until qty is covered. Lots must already be in FIFO order.
func PlanFIFO(medicineID string, lots []Lot, qty int) ([]Draw, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	toFill := qty
	draws := make([]Draw, 0, len(lots))
	for _, lot := range lots {
		if toFill == 0 {
			break
		}
		if lot.QtyRemaining <= 0 {
			continue
		}
		take := min(lot.QtyRemaining, toFill)
		draws = append(draws, Draw{Lot: lot, Qty: take})
		toFill -= take
	}

	if toFill > 0 {
		return nil, &InsufficientStockError{
			MedicineID: medicineID,
			Requested:  qty,
			Available:  qty - toFill,
		}
	}
	return draws, nil
}

// DispenseRequest asks for qty units of a medicine for a visit at a unit price.
type DispenseRequest struct {
	MedicineID  string          `json:"medicine_id"`
	VisitID     string          `json:"visit_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DispensedBy string          `json:"dispensed_by,omitempty"`
}

// Validate checks the request before any storage is touched.
func (r DispenseRequest) Validate() error {
	if r.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if r.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

// DispenseResult is the outcome of a successful dispense.
type DispenseResult struct {
	DispenseID  string          `json:"dispense_id"`
	MedicineID  string          `json:"medicine_id"`
	VisitID     string          `json:"visit_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DispensedBy string          `json:"dispensed_by,omitempty"`
	Entries     []DispenseEntry `json:"entries"`
	Totals      Totals          `json:"totals"`
	// Depleted lists lots emptied by this dispense.
	Depleted []int64 `json:"depleted_lots,omitempty"`
}
