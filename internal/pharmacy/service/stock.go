package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// ReceiveLotInput describes a delivery of one lot.
type ReceiveLotInput struct {
	MedicineID   string
	LotNo        string
	ReceivedDate *time.Time
	ExpiryDate   *time.Time
	QtyIn        int
	Price        decimal.Decimal
	// PriceMode is "unit" (Price is per unit) or "total" (Price covers the lot).
	PriceMode string
}

// StockService manages the medicine catalog copy and lot receipt.
type StockService struct {
	store  domain.Store
	events EventPublisher
	logger *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(store domain.Store, events EventPublisher, log *logger.Logger) *StockService {
	return &StockService{
		store:  store,
		events: publisherOrNoop(events),
		logger: log.WithComponent("stock"),
	}
}

// RegisterMedicine creates or refreshes a medicine. A missing ID is generated.
func (s *StockService) RegisterMedicine(ctx context.Context, m *domain.Medicine) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.Name = strings.TrimSpace(m.Name)
	m.Unit = strings.TrimSpace(m.Unit)

	if err := s.store.UpsertMedicine(ctx, m); err != nil {
		return err
	}

	s.logger.Info().Str("medicine_id", m.ID).Str("name", m.Name).Msg("medicine registered")
	return nil
}

// GetMedicine gets a medicine by ID
func (s *StockService) GetMedicine(ctx context.Context, id string) (*domain.Medicine, error) {
	return s.store.GetMedicine(ctx, id)
}

// ListMedicines lists all medicines
func (s *StockService) ListMedicines(ctx context.Context) ([]domain.Medicine, error) {
	return s.store.ListMedicines(ctx)
}

// ReceiveLot records a delivered lot. The unit cost is fixed here and never changes.
func (s *StockService) ReceiveLot(ctx context.Context, in ReceiveLotInput) (*domain.Lot, error) {
	if in.QtyIn < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if in.Price.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}

	unitCost, err := domain.UnitCostFromPrice(in.Price, in.PriceMode, in.QtyIn)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetMedicine(ctx, in.MedicineID); err != nil {
		return nil, err
	}

	lot := &domain.Lot{
		MedicineID:   in.MedicineID,
		LotNo:        strings.TrimSpace(in.LotNo),
		ReceivedDate: dateOnly(in.ReceivedDate),
		ExpiryDate:   dateOnly(in.ExpiryDate),
		QtyIn:        in.QtyIn,
		QtyRemaining: in.QtyIn,
		UnitCost:     unitCost,
	}
	if _, err := s.store.AddLot(ctx, lot); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("medicine_id", lot.MedicineID).
		Int64("lot_id", lot.ID).
		Int("qty_in", lot.QtyIn).
		Str("unit_cost", lot.UnitCost.String()).
		Msg("lot received")

	s.events.LotReceived(ctx, lot)
	return lot, nil
}

// GetLot gets a lot by ID
func (s *StockService) GetLot(ctx context.Context, id int64) (*domain.Lot, error) {
	return s.store.GetLot(ctx, id)
}

// ListLots lists the lots of a medicine for the inventory view.
func (s *StockService) ListLots(ctx context.Context, medicineID string) ([]domain.Lot, error) {
	if _, err := s.store.GetMedicine(ctx, medicineID); err != nil {
		return nil, err
	}
	return s.store.ListLots(ctx, medicineID)
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := domain.DateOnly(*t)
	return &d
}
