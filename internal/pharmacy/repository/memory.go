package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
)

// MemoryStore is an in-process domain.Store for development and tests.
// Writes made inside WithinMedicine are buffered and applied on success only.
type MemoryStore struct {
	mu          sync.RWMutex
	medicines   map[string]domain.Medicine
	lots        map[int64]*domain.Lot
	entries     []domain.DispenseEntry
	nextLotID   int64
	nextEntryID int64

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		medicines: make(map[string]domain.Medicine),
		lots:      make(map[int64]*domain.Lot),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) UpsertMedicine(_ context.Context, m *domain.Medicine) error {
	if m.Unit == "" {
		m.Unit = domain.DefaultUnit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := now()
	if existing, ok := s.medicines[m.ID]; ok {
		m.CreatedAt = existing.CreatedAt
	} else {
		m.CreatedAt = ts
	}
	m.UpdatedAt = ts
	s.medicines[m.ID] = *m
	return nil
}

func (s *MemoryStore) GetMedicine(_ context.Context, id string) (*domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.medicines[id]
	if !ok {
		return nil, domain.ErrMedicineNotFound
	}
	return &m, nil
}

func (s *MemoryStore) ListMedicines(_ context.Context) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Medicine, 0, len(s.medicines))
	for _, m := range s.medicines {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) AddLot(_ context.Context, lot *domain.Lot) (int64, error) {
	if lot.QtyIn < 0 || lot.QtyRemaining < 0 || lot.QtyRemaining > lot.QtyIn {
		return 0, fmt.Errorf("%w: lot quantities out of range (in %d, remaining %d)",
			domain.ErrInvariantViolation, lot.QtyIn, lot.QtyRemaining)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.medicines[lot.MedicineID]; !ok {
		return 0, domain.ErrMedicineNotFound
	}

	s.nextLotID++
	lot.ID = s.nextLotID
	lot.CreatedAt = now()
	stored := *lot
	s.lots[lot.ID] = &stored
	return lot.ID, nil
}

func (s *MemoryStore) GetLot(_ context.Context, id int64) (*domain.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lot, ok := s.lots[id]
	if !ok {
		return nil, domain.ErrLotNotFound
	}
	out := *lot
	return &out, nil
}

func (s *MemoryStore) ListLots(_ context.Context, medicineID string) ([]domain.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Lot{}
	for _, lot := range s.lots {
		if lot.MedicineID == medicineID {
			out = append(out, *lot)
		}
	}
	domain.SortByExpiry(out)
	return out, nil
}

// LotsAvailable outside a transaction reads committed stock only.
func (s *MemoryStore) LotsAvailable(_ context.Context, medicineID string) ([]domain.Lot, error) {
	return s.available(medicineID, nil), nil
}

func (s *MemoryStore) Query(_ context.Context, filter domain.EntryFilter) ([]domain.DispenseEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return selectEntries(s.entries, nil, filter), nil
}

func (s *MemoryStore) Totals(_ context.Context, filter domain.EntryFilter) (domain.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter.Limit = 0
	return domain.Aggregate(selectEntries(s.entries, nil, filter)), nil
}

// WithinMedicine serializes work per medicine with a dedicated mutex.
func (s *MemoryStore) WithinMedicine(ctx context.Context, medicineID string, fn func(ctx context.Context, tx domain.DispenseTx) error) error {
	lock := s.medicineLock(medicineID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{store: s, medicineID: medicineID, draws: make(map[int64]int)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *MemoryStore) medicineLock(medicineID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[medicineID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[medicineID] = lock
	}
	return lock
}

func (s *MemoryStore) available(medicineID string, pending map[int64]int) []domain.Lot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Lot{}
	for _, lot := range s.lots {
		if lot.MedicineID != medicineID {
			continue
		}
		l := *lot
		l.QtyRemaining -= pending[l.ID]
		if l.QtyRemaining > 0 {
			out = append(out, l)
		}
	}
	domain.SortFIFO(out)
	return out
}

// stamp assigns the next entry ID. Callers hold s.mu.
func (s *MemoryStore) stamp(e *domain.DispenseEntry) {
	s.nextEntryID++
	e.ID = s.nextEntryID
	e.CreatedAt = now()
}

func (s *MemoryStore) commit(tx *memoryTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for lotID, amount := range tx.draws {
		lot := s.lots[lotID]
		if lot == nil || lot.QtyRemaining < amount {
			return &domain.InvariantError{LotID: lotID, Amount: amount, Reason: "lot changed during dispense"}
		}
	}
	for lotID, amount := range tx.draws {
		s.lots[lotID].QtyRemaining -= amount
	}
	s.entries = append(s.entries, tx.entries...)
	return nil
}

// memoryTx buffers the draws and entries of one WithinMedicine call.
type memoryTx struct {
	store      *MemoryStore
	medicineID string
	draws      map[int64]int
	entries    []domain.DispenseEntry
}

func (tx *memoryTx) LotsAvailable(_ context.Context, medicineID string) ([]domain.Lot, error) {
	return tx.store.available(medicineID, tx.draws), nil
}

func (tx *memoryTx) ApplyDraw(_ context.Context, lotID int64, amount int) error {
	tx.store.mu.RLock()
	lot, ok := tx.store.lots[lotID]
	var snapshot domain.Lot
	if ok {
		snapshot = *lot
	}
	tx.store.mu.RUnlock()

	switch {
	case !ok:
		return &domain.InvariantError{LotID: lotID, Amount: amount, Reason: "lot does not exist"}
	case snapshot.MedicineID != tx.medicineID:
		return &domain.InvariantError{LotID: lotID, Amount: amount, Reason: "lot belongs to another medicine"}
	case amount <= 0:
		return &domain.InvariantError{LotID: lotID, Amount: amount, Reason: "draw must be positive"}
	}

	remaining := snapshot.QtyRemaining - tx.draws[lotID]
	if amount > remaining {
		return &domain.InvariantError{
			LotID:     lotID,
			Amount:    amount,
			Remaining: remaining,
			Reason:    "draw exceeds remaining quantity",
		}
	}
	tx.draws[lotID] += amount
	return nil
}

func (tx *memoryTx) Record(_ context.Context, e *domain.DispenseEntry) (int64, error) {
	tx.store.mu.Lock()
	tx.store.stamp(e)
	tx.store.mu.Unlock()

	tx.entries = append(tx.entries, *e)
	return e.ID, nil
}

func (tx *memoryTx) Query(_ context.Context, filter domain.EntryFilter) ([]domain.DispenseEntry, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	return selectEntries(tx.store.entries, tx.entries, filter), nil
}

func (tx *memoryTx) Totals(_ context.Context, filter domain.EntryFilter) (domain.Totals, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	filter.Limit = 0
	return domain.Aggregate(selectEntries(tx.store.entries, tx.entries, filter)), nil
}

func selectEntries(committed, pending []domain.DispenseEntry, filter domain.EntryFilter) []domain.DispenseEntry {
	out := []domain.DispenseEntry{}
	for _, set := range [][]domain.DispenseEntry{committed, pending} {
		for _, e := range set {
			if filter.Matches(e) {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

var (
	_ domain.Store      = (*MemoryStore)(nil)
	_ domain.DispenseTx = (*memoryTx)(nil)
)

// Health always reports up; there is nothing to reach.
func (s *MemoryStore) Health(context.Context) map[string]string {
	return map[string]string{"status": "up", "driver": "memory"}
}
