package handler

import (
	"net/http"
	"strconv"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// ReportHandler handles report endpoints
type ReportHandler struct {
	service *service.ReportService
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc *service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		logger:  log,
	}
}

// Summary returns ledger rows and their cost, revenue and profit
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEntryFilter(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	report, err := h.service.Summary(r.Context(), filter)
	if err != nil {
		httputil.Error(w, toAppError(err))
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, report, &httputil.Meta{
		Count:     len(report.Rows),
		Truncated: report.Truncated,
	})
}

// parseEntryFilter reads from, to, medicine_id, visit_id and limit from the query string.
func parseEntryFilter(r *http.Request) (domain.EntryFilter, error) {
	q := r.URL.Query()
	filter := domain.EntryFilter{
		MedicineID: q.Get("medicine_id"),
		VisitID:    q.Get("visit_id"),
	}

	var err error
	from, to := q.Get("from"), q.Get("to")
	if filter.From, err = parseDate("from", &from); err != nil {
		return filter, err
	}
	if filter.To, err = parseDate("to", &to); err != nil {
		return filter, err
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return filter, errors.Validation(map[string]string{"from": "must not be after to"})
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, errors.Validation(map[string]string{"limit": "must be a positive integer"})
		}
		filter.Limit = limit
	}
	return filter, nil
}
