// Package events maps committed stock changes onto pharmacy.events messages.
package events

import (
	"context"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

// Sender publishes one typed payload. *messaging.Publisher satisfies it.
type Sender interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// Publisher implements service.EventPublisher on top of a Sender.
// Send failures are logged and swallowed: the stock change is already committed.
type Publisher struct {
	sender Sender
	logger *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(sender Sender, log *logger.Logger) *Publisher {
	return &Publisher{sender: sender, logger: log.WithComponent("events")}
}

func (p *Publisher) StockDispensed(ctx context.Context, result *domain.DispenseResult) {
	event := messaging.StockDispensedEvent{
		DispenseID:  result.DispenseID,
		MedicineID:  result.MedicineID,
		VisitID:     result.VisitID,
		Quantity:    result.Quantity,
		UnitPrice:   result.UnitPrice,
		Cost:        result.Totals.Cost,
		Revenue:     result.Totals.Revenue,
		Profit:      result.Totals.Profit,
		DispensedBy: result.DispensedBy,
		Lines:       make([]messaging.DispensedLine, 0, len(result.Entries)),
	}
	for _, e := range result.Entries {
		event.Lines = append(event.Lines, messaging.DispensedLine{
			EntryID:  e.ID,
			LotID:    e.LotID,
			Qty:      e.Qty,
			UnitCost: e.UnitCost,
		})
	}
	p.send(ctx, messaging.EventStockDispensed, event)
}

func (p *Publisher) LotReceived(ctx context.Context, lot *domain.Lot) {
	p.send(ctx, messaging.EventLotReceived, messaging.LotReceivedEvent{
		LotID:        lot.ID,
		MedicineID:   lot.MedicineID,
		LotNo:        lot.LotNo,
		QtyIn:        lot.QtyIn,
		UnitCost:     lot.UnitCost,
		ReceivedDate: lot.ReceivedDate,
		ExpiryDate:   lot.ExpiryDate,
	})
}

func (p *Publisher) LotDepleted(ctx context.Context, medicineID string, lotID int64) {
	p.send(ctx, messaging.EventLotDepleted, messaging.LotDepletedEvent{
		LotID:      lotID,
		MedicineID: medicineID,
	})
}

// send stamps the HTTP request ID as correlation ID unless the context
// already carries one, e.g. from a consumed event.
func (p *Publisher) send(ctx context.Context, eventType string, data any) {
	if messaging.CorrelationID(ctx) == "" {
		ctx = messaging.WithCorrelationID(ctx, httputil.GetRequestID(ctx))
	}

	if err := p.sender.Publish(ctx, eventType, data); err != nil {
		p.logger.WithCorrelationID(messaging.CorrelationID(ctx)).Warn().
			Err(err).
			Str("event_type", eventType).
			Msg("failed to publish event")
	}
}
