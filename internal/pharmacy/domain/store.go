package domain

import "context"

// LotStore exposes the lots of one medicine to the allocator.
type LotStore interface {
	// LotsAvailable returns the lots of medicineID with stock left, in FIFO order.
	LotsAvailable(ctx context.Context, medicineID string) ([]Lot, error)
	// ApplyDraw takes amount units out of a lot. Drawing more than the lot
	// holds fails with ErrInvariantViolation and changes nothing.
	ApplyDraw(ctx context.Context, lotID int64, amount int) error
}

// LedgerReader reads the dispense ledger.
type LedgerReader interface {
	// Query returns matching entries, newest first.
	Query(ctx context.Context, filter EntryFilter) ([]DispenseEntry, error)
	// Totals aggregates every matching entry. filter.Limit is ignored.
	Totals(ctx context.Context, filter EntryFilter) (Totals, error)
}

// Ledger is the append-only record of dispensed units. Entries are only
// appended inside Store.WithinMedicine.
type Ledger interface {
	LedgerReader
	// Record appends entry, filling in its ID and CreatedAt, and returns the ID.
	Record(ctx context.Context, entry *DispenseEntry) (int64, error)
}

// DispenseTx is the view of storage inside one atomic dispense.
type DispenseTx interface {
	LotStore
	Ledger
}

// Catalog holds the local copy of medicine reference data.
type Catalog interface {
	UpsertMedicine(ctx context.Context, m *Medicine) error
	GetMedicine(ctx context.Context, id string) (*Medicine, error)
	ListMedicines(ctx context.Context) ([]Medicine, error)
}

// Inventory manages lot receipt and the inventory view.
type Inventory interface {
	AddLot(ctx context.Context, lot *Lot) (int64, error)
	GetLot(ctx context.Context, id int64) (*Lot, error)
	// ListLots returns every lot of a medicine, earliest expiry first,
	// lots without expiry last, newest first within a date.
	ListLots(ctx context.Context, medicineID string) ([]Lot, error)
}

// Store is the storage backend of the pharmacy service.
type Store interface {
	Catalog
	Inventory
	LedgerReader

	// WithinMedicine runs fn as one atomic unit holding exclusive access to
	// the stock of medicineID. Writes made through tx become visible together
	// when fn returns nil and are discarded when it returns an error.
	// Different medicines do not block each other. Transient storage
	// conflicts are reported as ErrConflict.
	WithinMedicine(ctx context.Context, medicineID string, fn func(ctx context.Context, tx DispenseTx) error) error
}
