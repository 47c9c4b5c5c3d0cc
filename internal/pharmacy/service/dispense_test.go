package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/testutil"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func request(medicineID, visit string, qty int, price string) domain.DispenseRequest {
	return domain.DispenseRequest{MedicineID: medicineID, VisitID: visit, Quantity: qty, UnitPrice: dec(price)}
}

func TestDispense_SpansLotsOldestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		h := newHarness(store)
		ctx := context.Background()
		m := h.medicine(t)
		lotB := h.lot(t, m.ID, testutil.WithQty(10), testutil.WithUnitCost("12"), testutil.WithReceived("2024-01-05"))
		lotA := h.lot(t, m.ID, testutil.WithQty(5), testutil.WithUnitCost("10"), testutil.WithReceived("2024-01-01"))

		result, err := h.dispense.Dispense(ctx, request(m.ID, "1", 8, "20"))
		require.NoError(t, err)

		assert.True(t, dec("86").Equal(result.Totals.Cost), result.Totals.Cost.String())
		assert.True(t, dec("160").Equal(result.Totals.Revenue), result.Totals.Revenue.String())
		assert.True(t, dec("74").Equal(result.Totals.Profit), result.Totals.Profit.String())
		assert.True(t, dec("20").Equal(result.UnitPrice))

		require.Len(t, result.Entries, 2)
		assert.Equal(t, lotA.ID, result.Entries[0].LotID)
		assert.Equal(t, 5, result.Entries[0].Qty)
		assert.True(t, dec("10").Equal(result.Entries[0].UnitCost))
		assert.Equal(t, lotB.ID, result.Entries[1].LotID)
		assert.Equal(t, 3, result.Entries[1].Qty)
		assert.True(t, dec("12").Equal(result.Entries[1].UnitCost))
		for _, e := range result.Entries {
			assert.NotZero(t, e.ID)
			assert.Equal(t, result.DispenseID, e.DispenseID)
			assert.Equal(t, "1", e.VisitID)
			assert.True(t, dec("20").Equal(e.UnitPrice))
		}

		assert.Equal(t, 0, h.remaining(t, lotA.ID))
		assert.Equal(t, 7, h.remaining(t, lotB.ID))
		assert.Equal(t, []int64{lotA.ID}, result.Depleted)
		assert.Equal(t, []int64{lotA.ID}, h.events.depletions)
		require.Len(t, h.events.dispensed, 1)

		// insufficient stock leaves everything as it was
		_, err = h.dispense.Dispense(ctx, request(m.ID, "2", 20, "20"))
		require.ErrorIs(t, err, domain.ErrInsufficientStock)
		var stockErr *domain.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 7, stockErr.Available)
		assert.Equal(t, 13, stockErr.Shortfall())

		assert.Equal(t, 0, h.remaining(t, lotA.ID))
		assert.Equal(t, 7, h.remaining(t, lotB.ID))
		entries, err := store.Query(ctx, domain.EntryFilter{})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.Len(t, h.events.dispensed, 1)
	})
}

func TestDispense_InvalidRequests(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		h := newHarness(store)
		ctx := context.Background()
		m := h.medicine(t)
		lot := h.lot(t, m.ID, testutil.WithQty(10))

		testutil.RunTestCases(t, []testutil.TestCase[domain.DispenseRequest, *domain.DispenseResult]{
			{Name: "zero quantity", Input: request(m.ID, "3", 0, "20"), WantErr: domain.ErrInvalidQuantity},
			{Name: "negative quantity", Input: request(m.ID, "3", -4, "20"), WantErr: domain.ErrInvalidQuantity},
			{Name: "negative price", Input: request(m.ID, "3", 1, "-1"), WantErr: domain.ErrInvalidPrice},
			{Name: "unknown medicine", Input: request("nope", "3", 1, "1"), WantErr: domain.ErrInsufficientStock},
		}, func(req domain.DispenseRequest) (*domain.DispenseResult, error) {
			return h.dispense.Dispense(ctx, req)
		})

		assert.Equal(t, 10, h.remaining(t, lot.ID))
		entries, err := store.Query(ctx, domain.EntryFilter{})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestDispense_DonatedStockHasNoCost(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		h := newHarness(store)
		m := h.medicine(t)
		h.lot(t, m.ID, testutil.WithQty(4), testutil.WithUnitCost("0"))

		result, err := h.dispense.Dispense(context.Background(), request(m.ID, "4", 4, "7.5"))
		require.NoError(t, err)
		assert.True(t, result.Totals.Cost.IsZero())
		assert.True(t, result.Totals.Profit.Equal(result.Totals.Revenue))
		assert.True(t, dec("30").Equal(result.Totals.Revenue))
	})
}

func TestDispense_UndatedLotGoesFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		h := newHarness(store)
		m := h.medicine(t)
		dated := h.lot(t, m.ID, testutil.WithQty(5), testutil.WithReceived("2020-01-01"))
		undated := h.lot(t, m.ID, testutil.WithQty(5))

		result, err := h.dispense.Dispense(context.Background(), request(m.ID, "v", 6, "1"))
		require.NoError(t, err)
		require.Len(t, result.Entries, 2)
		assert.Equal(t, undated.ID, result.Entries[0].LotID)
		assert.Equal(t, dated.ID, result.Entries[1].LotID)
	})
}

func TestDispense_ConcurrentRequestsNeverOverdraw(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		h := newHarness(store)
		ctx := context.Background()
		m := h.medicine(t)
		lotA := h.lot(t, m.ID, testutil.WithQty(6), testutil.WithReceived("2024-01-01"))
		lotB := h.lot(t, m.ID, testutil.WithQty(6), testutil.WithReceived("2024-01-02"))
		const total = 12

		quantities := []int{7, 8, 5, 4, 3, 9, 2, 6}
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i, qty := range quantities {
			wg.Add(1)
			go func(i, qty int) {
				defer wg.Done()
				_, err := h.dispense.Dispense(ctx, request(m.ID, "visit", qty, "1"))
				if err == nil {
					mu.Lock()
					succeeded += qty
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, domain.ErrInsufficientStock, "request %d", i)
			}(i, qty)
		}
		wg.Wait()

		assert.LessOrEqual(t, succeeded, total)
		assert.Positive(t, succeeded)

		remaining := h.remaining(t, lotA.ID) + h.remaining(t, lotB.ID)
		assert.Equal(t, total-succeeded, remaining)

		// conservation per lot
		entries, err := store.Query(ctx, domain.EntryFilter{MedicineID: m.ID})
		require.NoError(t, err)
		drawn := map[int64]int{}
		for _, e := range entries {
			drawn[e.LotID] += e.Qty
		}
		for _, id := range []int64{lotA.ID, lotB.ID} {
			lot, err := store.GetLot(ctx, id)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, lot.QtyRemaining, 0)
			assert.Equal(t, lot.QtyIn-lot.QtyRemaining, drawn[id], "lot %d", id)
		}
	})
}

func TestDispense_DistinctMedicinesDoNotInterfere(t *testing.T) {
	h := newHarness(memoryStore())
	ctx := context.Background()
	m1 := h.medicine(t)
	m2 := h.medicine(t)
	h.lot(t, m1.ID, testutil.WithQty(50))
	h.lot(t, m2.ID, testutil.WithQty(50))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, id := range []string{m1.ID, m2.ID} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := h.dispense.Dispense(ctx, request(id, "v", 1, "1"))
				assert.NoError(t, err)
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []string{m1.ID, m2.ID} {
		lots, err := h.store.ListLots(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, lots[0].QtyRemaining)
	}
}

// flakyStore fails the first n dispense transactions with a storage conflict.
type flakyStore struct {
	domain.Store
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) WithinMedicine(ctx context.Context, medicineID string, fn func(context.Context, domain.DispenseTx) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()

	if fail {
		return s.Store.WithinMedicine(ctx, medicineID, func(ctx context.Context, tx domain.DispenseTx) error {
			if err := fn(ctx, tx); err != nil {
				return err
			}
			return domain.ErrConflict
		})
	}
	return s.Store.WithinMedicine(ctx, medicineID, fn)
}

func TestDispense_RetriesStorageConflicts(t *testing.T) {
	store := &flakyStore{Store: memoryStore(), failures: 2}
	h := newHarness(store)
	m := h.medicine(t)
	lot := h.lot(t, m.ID, testutil.WithQty(10))

	result, err := h.dispense.Dispense(context.Background(), request(m.ID, "v", 4, "1"))
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)
	assert.Len(t, result.Entries, 1)
	assert.Equal(t, 6, h.remaining(t, lot.ID))

	entries, err := store.Query(context.Background(), domain.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDispense_GivesUpAfterMaxAttempts(t *testing.T) {
	store := &flakyStore{Store: memoryStore(), failures: 10}
	h := newHarness(store)
	m := h.medicine(t)
	lot := h.lot(t, m.ID, testutil.WithQty(10))

	_, err := h.dispense.Dispense(context.Background(), request(m.ID, "v", 4, "1"))
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, fastRetry.MaxAttempts, store.calls)
	assert.Equal(t, 10, h.remaining(t, lot.ID))
	assert.Empty(t, h.events.dispensed)
}

// brokenTx lets LotsAvailable report more stock than ApplyDraw accepts.
type brokenTx struct {
	domain.DispenseTx
}

func (tx brokenTx) LotsAvailable(ctx context.Context, medicineID string) ([]domain.Lot, error) {
	lots, err := tx.DispenseTx.LotsAvailable(ctx, medicineID)
	for i := range lots {
		lots[i].QtyRemaining += 100
	}
	return lots, err
}

type brokenStore struct {
	domain.Store
}

func (s brokenStore) WithinMedicine(ctx context.Context, medicineID string, fn func(context.Context, domain.DispenseTx) error) error {
	return s.Store.WithinMedicine(ctx, medicineID, func(ctx context.Context, tx domain.DispenseTx) error {
		return fn(ctx, brokenTx{tx})
	})
}

func TestDispense_InvariantViolationIsNotRetried(t *testing.T) {
	inner := memoryStore()
	h := newHarness(brokenStore{inner})
	m := h.medicine(t)
	lot := h.lot(t, m.ID, testutil.WithQty(3))

	_, err := h.dispense.Dispense(context.Background(), request(m.ID, "v", 50, "1"))
	require.ErrorIs(t, err, domain.ErrInvariantViolation)
	assert.Equal(t, 3, h.remaining(t, lot.ID))

	entries, err := inner.Query(context.Background(), domain.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDispense_CancelledContext(t *testing.T) {
	h := newHarness(memoryStore())
	m := h.medicine(t)
	h.lot(t, m.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.dispense.Dispense(ctx, request(m.ID, "v", 1, "1"))
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestRetryPolicyFromConfig(t *testing.T) {
	p := service.RetryPolicyFromConfig(config.DispensingConfig{
		MaxAttempts:    4,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     time.Second,
		ReportLimit:    10,
	})
	assert.Equal(t, service.RetryPolicy{MaxAttempts: 4, InitialBackoff: 10 * time.Millisecond, MaxBackoff: time.Second}, p)
}

func TestDispense_ZeroAttemptsStillRunsOnce(t *testing.T) {
	store := &flakyStore{Store: memoryStore()}
	svc := service.NewDispenseService(store, nil, service.RetryPolicy{}, logger.Nop())
	h := newHarness(store)
	m := h.medicine(t)
	h.lot(t, m.ID)

	_, err := svc.Dispense(context.Background(), request(m.ID, "v", 2, "1"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
}
