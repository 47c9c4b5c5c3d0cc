package domain

import "github.com/shopspring/decimal"

// Totals sums a set of ledger entries.
type Totals struct {
	Cost     decimal.Decimal `json:"cost"`
	Revenue  decimal.Decimal `json:"revenue"`
	Profit   decimal.Decimal `json:"profit"`
	Quantity int             `json:"quantity"`
	Entries  int             `json:"entries"`
}

// Aggregate sums cost and revenue over entries. Profit is revenue minus cost.
// The result does not depend on the order of entries; no entries gives zeros.
func Aggregate(entries []DispenseEntry) Totals {
	t := Totals{
		Cost:    decimal.Zero,
		Revenue: decimal.Zero,
		Profit:  decimal.Zero,
	}
	for _, e := range entries {
		t.Add(e)
	}
	return t
}

// Add folds one entry into t, so totals can be built while streaming rows.
func (t *Totals) Add(e DispenseEntry) {
	t.Cost = t.Cost.Add(e.Cost())
	t.Revenue = t.Revenue.Add(e.Revenue())
	t.Profit = t.Revenue.Sub(t.Cost)
	t.Quantity += e.Qty
	t.Entries++
}
