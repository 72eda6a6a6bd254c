package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"docentgo/pkg/config"
	"docentgo/pkg/version"
)

// Handlers groups everything NewServer mounts. Nil members are skipped.
type Handlers struct {
	Health        *HealthHandler
	Stats         *StatsHandler
	Content       *ContentHandler
	Docent        *DocentHandler
	Relay         http.Handler
	Conversations *ConversationHandler
	Quizzes       *QuizHandler
	Overrides     *OverrideHandler
	Claims        *ClaimHandler
}

// NewServer creates and configures the HTTP server.
func NewServer(cfg config.ServerConfig, h Handlers, shutdown func()) *http.Server {
	return &http.Server{
		Addr:        cfg.Address,
		Handler:     NewMux(cfg, h, shutdown),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: chat streams and websockets stay open.
		IdleTimeout: 60 * time.Second,
	}
}

// NewMux builds the route table.
func NewMux(cfg config.ServerConfig, h Handlers, shutdown func()) *http.ServeMux {
	mux := http.NewServeMux()

	// 1. Health and diagnostics
	if h.Health != nil {
		mux.HandleFunc("GET /health", h.Health.HandleHealth)
	}
	mux.HandleFunc("GET /api/version", handleVersion)
	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
	}
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/log/recent", handleRecentLog)

	// 2. Content
	if h.Content != nil {
		mux.HandleFunc("GET /api/themes", h.Content.HandleThemes)
		mux.HandleFunc("GET /api/themes/{id}/items", h.Content.HandleItems)
		mux.HandleFunc("GET /api/themes/{id}/quizzes", h.Content.HandleQuizzes)
		mux.HandleFunc("GET /api/recipients", h.Content.HandleRecipients)
		mux.HandleFunc("GET /api/voices", h.Content.HandleVoices)
		mux.HandleFunc("GET /api/probe", h.Content.HandleProbe)
	}

	// 3. Docent tours
	if h.Docent != nil {
		mux.HandleFunc("POST /api/docent", h.Docent.HandleCreate)
		mux.HandleFunc("GET /api/docent/{id}", h.Docent.HandleGet)
		mux.HandleFunc("DELETE /api/docent/{id}", h.Docent.HandleDelete)
		mux.HandleFunc("POST /api/docent/{id}/jump", h.Docent.HandleJump)
		mux.HandleFunc("POST /api/docent/{id}/{action}", h.Docent.HandleAction)
		mux.HandleFunc("GET /api/docent/{id}/ws", h.Docent.HandleWS)
	}

	// 4. Chat
	if h.Relay != nil {
		mux.Handle("/api/chat", h.Relay)
	}
	if h.Conversations != nil {
		mux.HandleFunc("POST /api/conversations", h.Conversations.HandleCreate)
		mux.HandleFunc("GET /api/conversations/{id}", h.Conversations.HandleGet)
		mux.HandleFunc("DELETE /api/conversations/{id}", h.Conversations.HandleDelete)
		mux.HandleFunc("POST /api/conversations/{id}/messages", h.Conversations.HandleSend)
		mux.HandleFunc("GET /api/conversations/{id}/ws", h.Conversations.HandleWS)
	}

	// 5. Mission and prize
	if h.Quizzes != nil {
		mux.HandleFunc("POST /api/quizzes", h.Quizzes.HandleCreate)
		mux.HandleFunc("GET /api/quizzes/{id}", h.Quizzes.HandleGet)
		mux.HandleFunc("POST /api/quizzes/{id}/answer", h.Quizzes.HandleAnswer)
		mux.HandleFunc("POST /api/quizzes/{id}/next", h.Quizzes.HandleNext)
	}
	if h.Claims != nil {
		mux.HandleFunc("POST /api/claims", h.Claims.HandleClaim)
		mux.HandleFunc("GET /api/claims/last-email", h.Claims.HandleLastEmail)
		mux.HandleFunc("GET /api/submissions", h.Claims.HandleList)
		mux.HandleFunc("GET /api/submissions.csv", h.Claims.HandleCSV)
	}

	// 6. Admin
	if h.Overrides != nil {
		mux.HandleFunc("GET /api/overrides", h.Overrides.HandleList)
		mux.HandleFunc("PUT /api/overrides/{itemId}", h.Overrides.HandleSet)
		mux.HandleFunc("DELETE /api/overrides/{itemId}", h.Overrides.HandleDelete)
		mux.HandleFunc("GET /api/videos", h.Overrides.HandleVideos)
	}

	// 7. Shutdown Endpoint
	if shutdown != nil {
		mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("Shutting down...")); err != nil {
				slog.Error("Failed to write shutdown response", "error", err)
			}
			// Call shutdown in a goroutine to allow response to flush
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})
	}

	// 8. Kiosk frontend
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(&spaFileSystem{root: http.Dir(cfg.StaticDir)}))
	}

	return mux
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

// errorResponse is the body of every handler error.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"` // visitor-facing text, when there is one
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a small JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}
