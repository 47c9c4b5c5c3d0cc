package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// CreateMedicineRequest registers or refreshes a medicine.
type CreateMedicineRequest struct {
	ID   string `json:"id" validate:"omitempty,max=64"`
	Name string `json:"name" validate:"required,max=200"`
	Form string `json:"form" validate:"max=100"`
	Unit string `json:"unit" validate:"max=50"`
}

func (r CreateMedicineRequest) toDomain() *domain.Medicine {
	return &domain.Medicine{ID: r.ID, Name: r.Name, Form: r.Form, Unit: r.Unit}
}

// ReceiveLotRequest records a delivery for the medicine in the URL.
type ReceiveLotRequest struct {
	LotNo        string          `json:"lot_no" validate:"max=100"`
	ReceivedDate *string         `json:"received_date" validate:"omitempty,datetime=2006-01-02"`
	ExpiryDate   *string         `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	QtyIn        int             `json:"qty_in" validate:"gte=0"`
	Price        decimal.Decimal `json:"price"`
	PriceMode    string          `json:"price_mode" validate:"omitempty,oneof=unit total"`
}

func (r ReceiveLotRequest) toInput(medicineID string) (service.ReceiveLotInput, error) {
	received, err := parseDate("received_date", r.ReceivedDate)
	if err != nil {
		return service.ReceiveLotInput{}, err
	}
	expiry, err := parseDate("expiry_date", r.ExpiryDate)
	if err != nil {
		return service.ReceiveLotInput{}, err
	}
	return service.ReceiveLotInput{
		MedicineID:   medicineID,
		LotNo:        r.LotNo,
		ReceivedDate: received,
		ExpiryDate:   expiry,
		QtyIn:        r.QtyIn,
		Price:        r.Price,
		PriceMode:    r.PriceMode,
	}, nil
}

// DispenseRequest dispenses quantity units of a medicine for a visit.
// Quantity and price are checked by the allocator so their errors carry domain codes.
type DispenseRequest struct {
	MedicineID string          `json:"medicine_id" validate:"required,max=64"`
	VisitID    string          `json:"visit_id" validate:"required,max=64"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, *value)
	if err != nil {
		return nil, errors.Validation(map[string]string{field: "must be a date in the format 2006-01-02"})
	}
	return &t, nil
}
