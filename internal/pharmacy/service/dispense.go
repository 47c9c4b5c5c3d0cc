package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// RetryPolicy bounds how a dispense is replayed after a storage conflict.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// RetryPolicyFromConfig builds the policy from the dispensing section.
func RetryPolicyFromConfig(cfg config.DispensingConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		b.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// DispenseService is the FIFO allocator: it fills a request from the oldest
// lots of a medicine and records one ledger entry per lot drawn.
type DispenseService struct {
	store  domain.Store
	events EventPublisher
	retry  RetryPolicy
	logger *logger.Logger
	newID  func() string
}

// NewDispenseService creates a new dispense service
func NewDispenseService(store domain.Store, events EventPublisher, retry RetryPolicy, log *logger.Logger) *DispenseService {
	return &DispenseService{
		store:  store,
		events: publisherOrNoop(events),
		retry:  retry,
		logger: log.WithComponent("dispense"),
		newID:  func() string { return uuid.New().String() },
	}
}

// Dispense takes req.Quantity units of a medicine, oldest lots first.
// It either commits every draw and entry or changes nothing.
func (s *DispenseService) Dispense(ctx context.Context, req domain.DispenseRequest) (*domain.DispenseResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := s.logger.WithMedicineID(req.MedicineID)

	var (
		result  *domain.DispenseResult
		attempt int
	)
	op := func() error {
		attempt++
		r, err := s.dispenseOnce(ctx, req)
		if err == nil {
			result = r
			return nil
		}
		if domain.IsRetryable(err) {
			log.Warn().Err(err).Int("attempt", attempt).Msg("storage conflict, retrying dispense")
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, s.retry.backOff(ctx)); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvariantViolation):
			log.Error().Err(err).Str("visit_id", req.VisitID).Int("quantity", req.Quantity).
				Msg("inventory invariant violated, dispense rolled back")
		case domain.IsClientError(err):
			log.Info().Err(err).Str("visit_id", req.VisitID).Int("quantity", req.Quantity).Msg("dispense rejected")
		default:
			log.Error().Err(err).Int("attempts", attempt).Msg("dispense failed")
		}
		return nil, err
	}

	log.Info().
		Str("dispense_id", result.DispenseID).
		Str("visit_id", req.VisitID).
		Int("quantity", req.Quantity).
		Int("lots", len(result.Entries)).
		Str("cost", result.Totals.Cost.String()).
		Str("revenue", result.Totals.Revenue.String()).
		Msg("medicine dispensed")

	s.events.StockDispensed(ctx, result)
	for _, lotID := range result.Depleted {
		s.events.LotDepleted(ctx, req.MedicineID, lotID)
	}

	return result, nil
}

func (s *DispenseService) dispenseOnce(ctx context.Context, req domain.DispenseRequest) (*domain.DispenseResult, error) {
	var result *domain.DispenseResult

	err := s.store.WithinMedicine(ctx, req.MedicineID, func(ctx context.Context, tx domain.DispenseTx) error {
		lots, err := tx.LotsAvailable(ctx, req.MedicineID)
		if err != nil {
			return err
		}

		draws, err := domain.PlanFIFO(req.MedicineID, lots, req.Quantity)
		if err != nil {
			return err
		}

		r := &domain.DispenseResult{
			DispenseID:  s.newID(),
			MedicineID:  req.MedicineID,
			VisitID:     req.VisitID,
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
			DispensedBy: req.DispensedBy,
			Entries:     make([]domain.DispenseEntry, 0, len(draws)),
		}
		for _, d := range draws {
			if err := tx.ApplyDraw(ctx, d.Lot.ID, d.Qty); err != nil {
				return err
			}

			entry := domain.DispenseEntry{
				DispenseID:  r.DispenseID,
				VisitID:     req.VisitID,
				MedicineID:  req.MedicineID,
				LotID:       d.Lot.ID,
				Qty:         d.Qty,
				UnitCost:    d.Lot.UnitCost,
				UnitPrice:   req.UnitPrice,
				DispensedBy: req.DispensedBy,
			}
			if _, err := tx.Record(ctx, &entry); err != nil {
				return err
			}
			r.Entries = append(r.Entries, entry)

			if d.Depletes() {
				r.Depleted = append(r.Depleted, d.Lot.ID)
			}
		}
		r.Totals = domain.Aggregate(r.Entries)

		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
