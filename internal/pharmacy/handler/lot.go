package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// LotHandler handles lot endpoints
type LotHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewLotHandler creates a new lot handler
func NewLotHandler(svc *service.StockService, log *logger.Logger) *LotHandler {
	return &LotHandler{
		service: svc,
		logger:  log,
	}
}

// Create receives a lot of the medicine in the URL
func (h *LotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ReceiveLotRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	input, err := req.toInput(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.service.ReceiveLot(r.Context(), input)
	if err != nil {
		httputil.Error(w, toAppError(err))
		return
	}

	httputil.Created(w, lot)
}

// ListByMedicine lists every lot of a medicine, earliest expiry first
func (h *LotHandler) ListByMedicine(w http.ResponseWriter, r *http.Request) {
	lots, err := h.service.ListLots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, toAppError(err))
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, lots, &httputil.Meta{Count: len(lots)})
}

// Get gets a lot by ID
func (h *LotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid lot id"))
		return
	}

	lot, err := h.service.GetLot(r.Context(), id)
	if err != nil {
		httputil.Error(w, toAppError(err))
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}
