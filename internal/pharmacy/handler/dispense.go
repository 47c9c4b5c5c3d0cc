package handler

import (
	"net/http"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/actor"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// DispenseHandler handles dispense endpoints
type DispenseHandler struct {
	service *service.DispenseService
	reports *service.ReportService
	logger  *logger.Logger
}

// NewDispenseHandler creates a new dispense handler
func NewDispenseHandler(svc *service.DispenseService, reports *service.ReportService, log *logger.Logger) *DispenseHandler {
	return &DispenseHandler{
		service: svc,
		reports: reports,
		logger:  log,
	}
}

// Create dispenses a medicine from its oldest lots
func (h *DispenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req DispenseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Dispense(r.Context(), domain.DispenseRequest{
		MedicineID:  req.MedicineID,
		VisitID:     req.VisitID,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		DispensedBy: actor.UserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, toAppError(err))
		return
	}

	httputil.Created(w, result)
}

// List returns ledger entries, newest first
func (h *DispenseHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEntryFilter(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	entries, err := h.reports.Entries(r.Context(), filter)
	if err != nil {
		httputil.Error(w, toAppError(err))
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, entries, &httputil.Meta{Count: len(entries), Limit: filter.Limit})
}
