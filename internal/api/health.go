package api

import (
	"context"
	"net/http"

	"docentgo/pkg/probe"
)

// HealthReporter supplies the latest health report.
type HealthReporter interface {
	Report(ctx context.Context) probe.Report
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	reporter HealthReporter
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(r HealthReporter) *HealthHandler {
	return &HealthHandler{reporter: r}
}

// HandleHealth answers 200 while every critical check passes, 503 otherwise.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	rep := h.reporter.Report(r.Context())
	status := http.StatusOK
	if !rep.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}
