package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	// Pharmacy events
	EventStockDispensed = "pharmacy.stock.dispensed"
	EventLotReceived    = "pharmacy.lot.received"
	EventLotDepleted    = "pharmacy.lot.depleted"

	// Catalog events consumed by the pharmacy
	EventMedicineCreated = "catalog.medicine.created"
	EventMedicineUpdated = "catalog.medicine.updated"
)

// Exchange names
const (
	ExchangePharmacyEvents = "pharmacy.events"
	ExchangeCatalogEvents  = "catalog.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Pharmacy Events

// DispensedLine is one lot drawn by a dispense.
type DispensedLine struct {
	EntryID  int64           `json:"entry_id"`
	LotID    int64           `json:"lot_id"`
	Qty      int             `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// StockDispensedEvent is published after a dispense commits
type StockDispensedEvent struct {
	DispenseID  string          `json:"dispense_id"`
	MedicineID  string          `json:"medicine_id"`
	VisitID     string          `json:"visit_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Cost        decimal.Decimal `json:"cost"`
	Revenue     decimal.Decimal `json:"revenue"`
	Profit      decimal.Decimal `json:"profit"`
	DispensedBy string          `json:"dispensed_by,omitempty"`
	Lines       []DispensedLine `json:"lines"`
}

// LotReceivedEvent is published when a lot is received
type LotReceivedEvent struct {
	LotID        int64           `json:"lot_id"`
	MedicineID   string          `json:"medicine_id"`
	LotNo        string          `json:"lot_no,omitempty"`
	QtyIn        int             `json:"qty_in"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	ReceivedDate *time.Time      `json:"received_date,omitempty"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
}

// LotDepletedEvent is published when a dispense empties a lot
type LotDepletedEvent struct {
	LotID      int64  `json:"lot_id"`
	MedicineID string `json:"medicine_id"`
}

// Catalog Events

// MedicineEvent carries catalog reference data for a medicine.
type MedicineEvent struct {
	MedicineID string `json:"medicine_id"`
	Name       string `json:"name"`
	Form       string `json:"form,omitempty"`
	Unit       string `json:"unit,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}

type correlationKey struct{}

// WithCorrelationID returns a copy of ctx carrying the correlation ID that
// Publish stamps on outgoing events.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

// CorrelationID returns the correlation ID in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
