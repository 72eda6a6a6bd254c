package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"docentgo/pkg/claim"
	"docentgo/pkg/clock"
	"docentgo/pkg/model"
)

// ClaimService submits prize claims and reads the local log.
type ClaimService interface {
	Submit(ctx context.Context, f claim.Form) (*claim.Receipt, error)
	LastEmail(ctx context.Context) string
	Submissions(ctx context.Context) ([]model.Submission, error)
}

// ClaimHandler serves the prize form and the admin export.
type ClaimHandler struct {
	svc ClaimService
	clk clock.Clock
}

// NewClaimHandler creates a new ClaimHandler.
func NewClaimHandler(svc ClaimService, clk clock.Clock) *ClaimHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &ClaimHandler{svc: svc, clk: clk}
}

// HandleClaim handles POST /api/claims. Validation problems answer 400 and
// upstream failures 502; both carry the visitor message.
func (h *ClaimHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	var form claim.Form
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.svc.Submit(r.Context(), form)
	if err != nil {
		status := http.StatusBadGateway
		var ve *claim.ValidationError
		if errors.As(err, &ve) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error(), Message: claim.VisitorMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleLastEmail handles GET /api/claims/last-email
func (h *ClaimHandler) HandleLastEmail(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"email": h.svc.LastEmail(r.Context())})
}

// HandleList handles GET /api/submissions
func (h *ClaimHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.Submissions(r.Context())
	if err != nil {
		slog.Error("Failed to list submissions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// HandleCSV handles GET /api/submissions.csv
func (h *ClaimHandler) HandleCSV(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.Submissions(r.Context())
	if err != nil {
		slog.Error("Failed to list submissions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	name := claim.ExportFilename(h.clk.Now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := claim.WriteCSV(w, subs); err != nil {
		slog.Error("Failed to write CSV export", "error", err)
	}
}
