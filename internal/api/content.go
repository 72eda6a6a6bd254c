package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"docentgo/pkg/content"
	"docentgo/pkg/model"
	"docentgo/pkg/speech"
)

// ContentSource is the read side of the content client.
type ContentSource interface {
	GetThemes(ctx context.Context) []model.Theme
	GetItems(ctx context.Context, themeID string) []model.Item
	GetQuizzes(ctx context.Context, themeID string) []model.Quiz
}

// ContentService adds the diagnostic calls used by the admin screen.
type ContentService interface {
	ContentSource
	GetRecipients(ctx context.Context) []map[string]any
	Probe(ctx context.Context, path string) content.ProbeResult
}

// ContentHandler serves themes, items, quizzes and diagnostics.
type ContentHandler struct {
	content ContentService
	voices  speech.Engine
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(c ContentService, voices speech.Engine) *ContentHandler {
	return &ContentHandler{content: c, voices: voices}
}

// HandleThemes handles GET /api/themes
func (h *ContentHandler) HandleThemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.content.GetThemes(r.Context()))
}

// HandleItems handles GET /api/themes/{id}/items
func (h *ContentHandler) HandleItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.content.GetItems(r.Context(), r.PathValue("id")))
}

// HandleQuizzes handles GET /api/themes/{id}/quizzes
func (h *ContentHandler) HandleQuizzes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.content.GetQuizzes(r.Context(), r.PathValue("id")))
}

// HandleRecipients handles GET /api/recipients
func (h *ContentHandler) HandleRecipients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.content.GetRecipients(r.Context()))
}

// HandleVoices handles GET /api/voices
func (h *ContentHandler) HandleVoices(w http.ResponseWriter, r *http.Request) {
	if h.voices == nil {
		writeJSON(w, http.StatusOK, []speech.Voice{})
		return
	}
	voices, err := h.voices.Voices(r.Context())
	if err != nil {
		slog.Warn("Voice listing failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if voices == nil {
		voices = []speech.Voice{}
	}
	writeJSON(w, http.StatusOK, voices)
}

// HandleProbe handles GET /api/probe?path=/api/themes
func (h *ContentHandler) HandleProbe(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		path = "/api/themes"
	}
	if strings.Contains(path, "://") {
		writeError(w, http.StatusBadRequest, "path must be relative to the content service")
		return
	}
	writeJSON(w, http.StatusOK, h.content.Probe(r.Context(), path))
}

// findTheme looks a theme up by id.
func findTheme(ctx context.Context, src ContentSource, id string) (model.Theme, bool) {
	for _, th := range src.GetThemes(ctx) {
		if th.ID == id {
			return th, true
		}
	}
	return model.Theme{}, false
}
