package service

import (
	"context"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
)

// Report is a ledger extract with its totals.
type Report struct {
	Rows   []domain.DispenseEntry `json:"rows"`
	Totals domain.Totals          `json:"totals"`
	// Truncated is set when more rows matched than are returned.
	Truncated bool `json:"truncated"`
}

// ReportService reads the dispense ledger.
type ReportService struct {
	ledger domain.LedgerReader
	limit  int
}

// NewReportService creates a report service returning at most limit rows per call.
func NewReportService(ledger domain.LedgerReader, limit int) *ReportService {
	return &ReportService{ledger: ledger, limit: limit}
}

// Entries returns ledger rows, newest first. A zero limit falls back to the service default.
func (s *ReportService) Entries(ctx context.Context, filter domain.EntryFilter) ([]domain.DispenseEntry, error) {
	if filter.Limit <= 0 || filter.Limit > s.limit {
		filter.Limit = s.limit
	}
	return s.ledger.Query(ctx, filter)
}

// Summary aggregates every entry matching filter. Totals always cover the full
// match set; the returned rows are capped at the service limit.
func (s *ReportService) Summary(ctx context.Context, filter domain.EntryFilter) (*Report, error) {
	totals, err := s.ledger.Totals(ctx, filter)
	if err != nil {
		return nil, err
	}

	// one extra row tells whether the cap cut anything off
	filter.Limit = 0
	if s.limit > 0 {
		filter.Limit = s.limit + 1
	}
	rows, err := s.ledger.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	report := &Report{Rows: rows, Totals: totals}
	if s.limit > 0 && len(rows) > s.limit {
		report.Rows = rows[:s.limit]
		report.Truncated = true
	}
	return report, nil
}
