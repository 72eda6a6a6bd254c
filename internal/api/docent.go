package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"docentgo/pkg/apisession"
	"docentgo/pkg/clock"
	"docentgo/pkg/model"
	"docentgo/pkg/narration"
	"docentgo/pkg/speech"
	"docentgo/pkg/store"
)

// tour is one visitor's docent session.
type tour struct {
	ctrl  *narration.Controller
	owner speech.Owner
}

// DocentSettings are the shared knobs every tour is built with.
type DocentSettings struct {
	Timing narration.Timing
	Policy speech.RetryPolicy
	Voice  speech.Params
	TTL    time.Duration
}

// DocentHandler creates and drives narration tours.
type DocentHandler struct {
	content   ContentSource
	overrides store.OverrideStore
	videos    *narration.VideoResolver
	floor     *speech.Floor
	clk       clock.Clock
	settings  DocentSettings
	sessions  *apisession.Store[tour]
}

// NewDocentHandler creates a new DocentHandler. Every tour speaks through
// floor under its own owner, so starting one tour silences another.
func NewDocentHandler(src ContentSource, overrides store.OverrideStore, videos *narration.VideoResolver, floor *speech.Floor, clk clock.Clock, settings DocentSettings) *DocentHandler {
	h := &DocentHandler{
		content:   src,
		overrides: overrides,
		videos:    videos,
		floor:     floor,
		clk:       clk,
		settings:  settings,
	}
	h.sessions = apisession.New(settings.TTL, clk, func(id string, t *tour) {
		slog.Debug("Closing docent session", "id", id)
		t.ctrl.Close()
		floor.Forget(t.owner)
	})
	return h
}

// CreateTourRequest is the body of POST /api/docent.
type CreateTourRequest struct {
	ThemeID string `json:"themeId"`
	Age     string `json:"age"`
}

// TourResponse pairs a session id with its snapshot.
type TourResponse struct {
	ID       string             `json:"id"`
	Snapshot narration.Snapshot `json:"snapshot"`
}

// HandleCreate handles POST /api/docent
func (h *DocentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateTourRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	theme, ok := findTheme(r.Context(), h.content, req.ThemeID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown theme")
		return
	}

	age := model.ParseAge(req.Age)
	spots := narration.LoadSpots(r.Context(), h.content, h.overrides, theme, age, h.videos)

	owner := speech.SessionOwner(speech.OwnerDocent, uuid.NewString())
	synth := speech.NewSynthesizer(h.floor, owner, h.clk, h.settings.Policy)
	ctrl := narration.NewController(synth, h.clk, h.settings.Timing, h.settings.Voice, theme.ID)
	if err := ctrl.Load(spots); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	id := h.sessions.Create(&tour{ctrl: ctrl, owner: owner})
	slog.Info("Docent session started", "id", id, "theme", theme.ID, "age", age, "spots", len(spots))
	writeJSON(w, http.StatusCreated, TourResponse{ID: id, Snapshot: ctrl.Snapshot()})
}

func (h *DocentHandler) lookup(w http.ResponseWriter, r *http.Request) (*tour, string, bool) {
	id := r.PathValue("id")
	t, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown docent session")
		return nil, id, false
	}
	return t, id, true
}

// HandleGet handles GET /api/docent/{id}
func (h *DocentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, id, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, TourResponse{ID: id, Snapshot: t.ctrl.Snapshot()})
}

// HandleDelete handles DELETE /api/docent/{id}
func (h *DocentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "unknown docent session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAction handles POST /api/docent/{id}/{play|pause|toggle|stop}
func (h *DocentHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	t, id, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var cmd func() error
	switch action := r.PathValue("action"); action {
	case "play":
		cmd = t.ctrl.Play
	case "pause":
		cmd = t.ctrl.Pause
	case "toggle":
		cmd = t.ctrl.Toggle
	case "stop":
		cmd = t.ctrl.Stop
	default:
		writeError(w, http.StatusNotFound, "unknown action "+action)
		return
	}
	h.respond(w, id, t, cmd())
}

// JumpRequest is the body of POST /api/docent/{id}/jump.
type JumpRequest struct {
	Index int `json:"index"`
}

// HandleJump handles POST /api/docent/{id}/jump
func (h *DocentHandler) HandleJump(w http.ResponseWriter, r *http.Request) {
	t, id, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req JumpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if n := len(t.ctrl.Snapshot().Spots); req.Index < 0 || req.Index >= n {
		writeError(w, http.StatusBadRequest, "index out of range")
		return
	}
	h.respond(w, id, t, t.ctrl.Jump(req.Index))
}

func (h *DocentHandler) respond(w http.ResponseWriter, id string, t *tour, err error) {
	if errors.Is(err, narration.ErrClosed) {
		writeError(w, http.StatusGone, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, TourResponse{ID: id, Snapshot: t.ctrl.Snapshot()})
}

// HandleWS handles GET /api/docent/{id}/ws, pushing a snapshot after every change.
func (h *DocentHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	t, _, ok := h.lookup(w, r)
	if !ok {
		return
	}
	serveUpdates(w, r, t.ctrl.Snapshot(), t.ctrl.Subscribe)
}

// Cleanup evicts idle tours.
func (h *DocentHandler) Cleanup() int { return h.sessions.Cleanup() }

// Len reports the open tours.
func (h *DocentHandler) Len() int { return h.sessions.Len() }

// Close ends every tour.
func (h *DocentHandler) Close() { h.sessions.Close() }
