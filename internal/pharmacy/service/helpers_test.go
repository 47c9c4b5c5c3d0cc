package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/testutil"
)

var fastRetry = service.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

func stores() map[string]func(t *testing.T) domain.Store {
	return map[string]func(t *testing.T) domain.Store{
		"memory": func(t *testing.T) domain.Store { return memoryStore() },
		"sqlite": func(t *testing.T) domain.Store {
			db := testutil.NewSQLiteDB(t)
			require.NoError(t, repository.Migrate(context.Background(), db))
			return repository.NewSQLStore(db)
		},
	}
}

func memoryStore() domain.Store {
	return repository.NewMemoryStore()
}

func forEachStore(t *testing.T, fn func(t *testing.T, store domain.Store)) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) { fn(t, factory(t)) })
	}
}

// recordingEvents captures what the services announce.
type recordingEvents struct {
	mu         sync.Mutex
	dispensed  []*domain.DispenseResult
	received   []*domain.Lot
	depletions []int64
}

func (r *recordingEvents) StockDispensed(_ context.Context, result *domain.DispenseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispensed = append(r.dispensed, result)
}

func (r *recordingEvents) LotReceived(_ context.Context, lot *domain.Lot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, lot)
}

func (r *recordingEvents) LotDepleted(_ context.Context, _ string, lotID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.depletions = append(r.depletions, lotID)
}

type harness struct {
	store    domain.Store
	events   *recordingEvents
	stock    *service.StockService
	dispense *service.DispenseService
	reports  *service.ReportService
	fixtures *testutil.FixtureFactory
}

func newHarness(store domain.Store) *harness {
	events := &recordingEvents{}
	log := logger.Nop()
	return &harness{
		store:    store,
		events:   events,
		stock:    service.NewStockService(store, events, log),
		dispense: service.NewDispenseService(store, events, fastRetry, log),
		reports:  service.NewReportService(store, 500),
		fixtures: testutil.NewFixtureFactory(),
	}
}

func (h *harness) medicine(t *testing.T) domain.Medicine {
	t.Helper()
	m := h.fixtures.Medicine()
	require.NoError(t, h.stock.RegisterMedicine(context.Background(), &m))
	return m
}

func (h *harness) lot(t *testing.T, medicineID string, opts ...func(*domain.Lot)) domain.Lot {
	t.Helper()
	lot := h.fixtures.Lot(medicineID, opts...)
	_, err := h.store.AddLot(context.Background(), &lot)
	require.NoError(t, err)
	return lot
}

func (h *harness) remaining(t *testing.T, lotID int64) int {
	t.Helper()
	lot, err := h.store.GetLot(context.Background(), lotID)
	require.NoError(t, err)
	return lot.QtyRemaining
}
