package consumers

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

// CatalogQueue is the durable queue the pharmacy reads catalog events from.
const CatalogQueue = "pharmacy-service.catalog-events"

// MedicineRegistrar stores catalog reference data. *service.StockService satisfies it.
type MedicineRegistrar interface {
	RegisterMedicine(ctx context.Context, m *domain.Medicine) error
}

// CatalogEventConsumer keeps the local medicine table in step with the catalog
type CatalogEventConsumer struct {
	consumer  *messaging.Consumer
	medicines MedicineRegistrar
	logger    *logger.Logger
}

// NewCatalogEventConsumer creates a new catalog event consumer
func NewCatalogEventConsumer(rmq *messaging.RabbitMQ, medicines MedicineRegistrar, log *logger.Logger) (*CatalogEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, CatalogQueue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Bind(messaging.ExchangeCatalogEvents, "catalog.medicine.#"); err != nil {
		return nil, err
	}

	c := newCatalogEventConsumer(medicines, log)
	c.consumer = consumer

	consumer.Handle(messaging.EventMedicineCreated, c.handleMedicine)
	consumer.Handle(messaging.EventMedicineUpdated, c.handleMedicine)

	return c, nil
}

func newCatalogEventConsumer(medicines MedicineRegistrar, log *logger.Logger) *CatalogEventConsumer {
	return &CatalogEventConsumer{
		medicines: medicines,
		logger:    log.WithComponent("catalog-consumer"),
	}
}

// Start starts consuming messages
func (c *CatalogEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// handleMedicine upserts the medicine, so created and updated events are idempotent.
func (c *CatalogEventConsumer) handleMedicine(ctx context.Context, event *messaging.Event) error {
	var data messaging.MedicineEvent
	if err := event.UnmarshalData(&data); err != nil {
		return backoff.Permanent(fmt.Errorf("decode %s: %w", event.Type, err))
	}

	if data.MedicineID == "" || data.Name == "" {
		// Redelivery cannot fix a payload without identity.
		c.logger.Warn().
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Msg("ignoring medicine event without id or name")
		return nil
	}

	c.logger.Info().
		Str("medicine_id", data.MedicineID).
		Str("event_type", event.Type).
		Msg("received medicine event")

	return c.medicines.RegisterMedicine(ctx, &domain.Medicine{
		ID:   data.MedicineID,
		Name: data.Name,
		Form: data.Form,
		Unit: data.Unit,
	})
}
