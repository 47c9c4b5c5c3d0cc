package consumers

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

func medicineEvent(t *testing.T, eventType string, data messaging.MedicineEvent) *messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(eventType, "catalog-service", "", data)
	require.NoError(t, err)
	return event
}

func TestCatalogConsumer_UpsertsMedicines(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	stock := service.NewStockService(store, nil, logger.Nop())
	c := newCatalogEventConsumer(stock, logger.Nop())

	created := medicineEvent(t, messaging.EventMedicineCreated, messaging.MedicineEvent{
		MedicineID: "med-1", Name: "Metformin", Form: "tablet 500mg",
	})
	require.NoError(t, c.handleMedicine(ctx, created))

	m, err := store.GetMedicine(ctx, "med-1")
	require.NoError(t, err)
	assert.Equal(t, "Metformin", m.Name)
	assert.Equal(t, domain.DefaultUnit, m.Unit)

	// redelivery is harmless
	require.NoError(t, c.handleMedicine(ctx, created))

	updated := medicineEvent(t, messaging.EventMedicineUpdated, messaging.MedicineEvent{
		MedicineID: "med-1", Name: "Metformin XR", Unit: "capsule",
	})
	require.NoError(t, c.handleMedicine(ctx, updated))

	all, err := store.ListMedicines(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Metformin XR", all[0].Name)
	assert.Equal(t, "capsule", all[0].Unit)
}

type failingRegistrar struct{ calls int }

func (f *failingRegistrar) RegisterMedicine(context.Context, *domain.Medicine) error {
	f.calls++
	return errors.New("database down")
}

func TestCatalogConsumer_Errors(t *testing.T) {
	ctx := context.Background()
	registrar := &failingRegistrar{}
	c := newCatalogEventConsumer(registrar, logger.Nop())

	// storage failures are returned so the message is redelivered
	err := c.handleMedicine(ctx, medicineEvent(t, messaging.EventMedicineCreated, messaging.MedicineEvent{MedicineID: "m", Name: "x"}))
	assert.Error(t, err)
	assert.Equal(t, 1, registrar.calls)

	// incomplete payloads are dropped
	err = c.handleMedicine(ctx, medicineEvent(t, messaging.EventMedicineCreated, messaging.MedicineEvent{Name: "no id"}))
	assert.NoError(t, err)
	assert.Equal(t, 1, registrar.calls)

	// undecodable payloads are dead-lettered without redelivery
	bad := &messaging.Event{Type: messaging.EventMedicineCreated, Data: []byte(`"just a string"`)}
	var permanent *backoff.PermanentError
	assert.ErrorAs(t, c.handleMedicine(ctx, bad), &permanent)
}
