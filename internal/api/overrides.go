package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"docentgo/pkg/store"
)

// VideoLibrary lists the videos served from the static root.
type VideoLibrary interface {
	List() []string
	Has(sitePath string) bool
}

// OverrideHandler manages the per-item video pins from the admin screen.
type OverrideHandler struct {
	store  store.OverrideStore
	videos VideoLibrary
}

// NewOverrideHandler creates a new OverrideHandler. videos may be nil when
// there is no static root.
func NewOverrideHandler(st store.OverrideStore, videos VideoLibrary) *OverrideHandler {
	return &OverrideHandler{store: st, videos: videos}
}

// HandleVideos handles GET /api/videos
func (h *OverrideHandler) HandleVideos(w http.ResponseWriter, r *http.Request) {
	list := []string{}
	if h.videos != nil {
		list = h.videos.List()
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleList handles GET /api/overrides
func (h *OverrideHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.ListOverrides(r.Context())
	if err != nil {
		slog.Error("Failed to list overrides", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list overrides")
		return
	}
	if m == nil {
		m = map[string]string{}
	}
	writeJSON(w, http.StatusOK, m)
}

// OverrideRequest is the body of PUT /api/overrides/{itemId}.
type OverrideRequest struct {
	URL string `json:"url"`
}

// HandleSet handles PUT /api/overrides/{itemId}. The url may be a site path
// ("/videos/x.mp4") or an absolute http(s) URL.
func (h *OverrideHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("itemId")
	var req OverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if !validVideoURL(req.URL) {
		writeError(w, http.StatusBadRequest, "url must be a path or an http(s) URL")
		return
	}
	if h.videos != nil && strings.HasPrefix(req.URL, "/") && !h.videos.Has(req.URL) {
		slog.Warn("Video override points at a file not on disk yet", "item", itemID, "url", req.URL)
	}
	if err := h.store.SetOverride(r.Context(), itemID, req.URL); err != nil {
		slog.Error("Failed to save override", "item", itemID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save override")
		return
	}
	slog.Info("Video override set", "item", itemID, "url", req.URL)
	writeJSON(w, http.StatusOK, map[string]string{"itemId": itemID, "url": req.URL})
}

// HandleDelete handles DELETE /api/overrides/{itemId}
func (h *OverrideHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("itemId")
	if err := h.store.DeleteOverride(r.Context(), itemID); err != nil {
		slog.Error("Failed to delete override", "item", itemID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete override")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validVideoURL(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "/") {
		return true
	}
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
