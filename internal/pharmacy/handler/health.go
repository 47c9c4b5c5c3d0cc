package handler

import (
	"context"
	"net/http"

	"github.com/medflow/pharmacy-backend/pkg/httputil"
)

// HealthChecker reports the state of a dependency.
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

// HealthHandler reports service health
type HealthHandler struct {
	service string
	store   HealthChecker
	broker  func() map[string]string
}

// NewHealthHandler creates a health handler. broker may be nil when messaging is disabled.
func NewHealthHandler(serviceName string, store HealthChecker, broker func() map[string]string) *HealthHandler {
	return &HealthHandler{service: serviceName, store: store, broker: broker}
}

// Check responds 200 while storage is up and 503 otherwise. A broker outage only degrades.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	body := map[string]interface{}{"service": h.service}

	db := h.store.Health(r.Context())
	body["database"] = db
	if db["status"] != "up" {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	if h.broker != nil {
		mq := h.broker()
		body["rabbitmq"] = mq
		if mq["status"] != "up" && code == http.StatusOK {
			status = "degraded"
		}
	}

	body["status"] = status
	httputil.JSON(w, code, body)
}
