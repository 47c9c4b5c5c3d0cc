package service

import (
	"context"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
)

// EventPublisher announces committed stock changes. Implementations must not
// fail the caller: the change is already durable when they are invoked.
type EventPublisher interface {
	StockDispensed(ctx context.Context, result *domain.DispenseResult)
	LotReceived(ctx context.Context, lot *domain.Lot)
	LotDepleted(ctx context.Context, medicineID string, lotID int64)
}

type noopPublisher struct{}

func (noopPublisher) StockDispensed(context.Context, *domain.DispenseResult) {}
func (noopPublisher) LotReceived(context.Context, *domain.Lot)               {}
func (noopPublisher) LotDepleted(context.Context, string, int64)             {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
