package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// MedicineHandler handles medicine endpoints
type MedicineHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(svc *service.StockService, log *logger.Logger) *MedicineHandler {
	return &MedicineHandler{
		service: svc,
		logger:  log,
	}
}

// Create registers a medicine, or refreshes it when the ID exists
func (h *MedicineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMedicineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	m := req.toDomain()
	if err := h.service.RegisterMedicine(r.Context(), m); err != nil {
		httputil.Error(w, toAppError(err))
		return
	}

	httputil.Created(w, m)
}

// List lists medicines
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.service.ListMedicines(r.Context())
	if err != nil {
		httputil.Error(w, toAppError(err))
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, medicines, &httputil.Meta{Count: len(medicines)})
}

// Get gets a medicine by ID
func (h *MedicineHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetMedicine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, toAppError(err))
		return
	}

	httputil.JSON(w, http.StatusOK, m)
}
