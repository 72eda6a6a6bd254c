package api

import (
	"net/http"
	"runtime"
	"sort"
	"sync"

	"docentgo/pkg/tracker"
)

// SessionCounter reports how many sessions of one kind are open.
type SessionCounter interface {
	Len() int
}

type StatsHandler struct {
	tracker     *tracker.Tracker
	sessions    map[string]SessionCounter
	llmFallback []string

	mu     sync.Mutex
	maxMem uint64
}

func NewStatsHandler(t *tracker.Tracker, sessions map[string]SessionCounter, fallback []string) *StatsHandler {
	return &StatsHandler{
		tracker:     t,
		sessions:    sessions,
		llmFallback: fallback,
	}
}

type SourceStatsDTO struct {
	APISuccess     int64 `json:"api_success"`
	APIFailures    int64 `json:"api_errors"`
	Retries        int64 `json:"retries"`
	SecondaryHits  int64 `json:"secondary_hits"`
	CacheHits      int64 `json:"cache_hits"`
	LocalFallbacks int64 `json:"local_fallbacks"`
	// SuccessRate is the share of upstream calls that succeeded, in percent.
	SuccessRate int64 `json:"success_rate"`
}

type ComponentStats struct {
	Name        string `json:"name"`
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Goroutines  int    `json:"goroutines"`
}

type StatsResponse struct {
	Diagnostics []ComponentStats          `json:"diagnostics"`
	Sessions    map[string]int            `json:"sessions"`
	Sources     map[string]SourceStatsDTO `json:"sources"`
	SourceOrder []string                  `json:"source_order"`
	LLMFallback []string                  `json:"llm_fallback"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	// 1. Diagnostics
	h.mu.Lock()
	diagnostics := h.gatherDiagnostics()
	h.mu.Unlock()

	// 2. Build Response
	resp := StatsResponse{
		Diagnostics: diagnostics,
		Sessions:    make(map[string]int, len(h.sessions)),
		Sources:     make(map[string]SourceStatsDTO, len(snapshot)),
		SourceOrder: make([]string, 0, len(snapshot)),
		LLMFallback: h.llmFallback,
	}
	for name, c := range h.sessions {
		resp.Sessions[name] = c.Len()
	}

	for source, stats := range snapshot {
		total := stats.APISuccess + stats.APIFailures
		rate := int64(0)
		if total > 0 {
			rate = (stats.APISuccess * 100) / total
		}
		resp.Sources[source] = SourceStatsDTO{
			APISuccess:     stats.APISuccess,
			APIFailures:    stats.APIFailures,
			Retries:        stats.Retries,
			SecondaryHits:  stats.SecondaryHits,
			CacheHits:      stats.CacheHits,
			LocalFallbacks: stats.LocalFallbacks,
			SuccessRate:    rate,
		}
		resp.SourceOrder = append(resp.SourceOrder, source)
	}
	sort.Strings(resp.SourceOrder)

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) gatherDiagnostics() []ComponentStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	if ms.Sys > h.maxMem {
		h.maxMem = ms.Sys
	}
	return []ComponentStats{{
		Name:        "Server",
		MemoryMB:    bToMb(ms.Sys),
		MemoryMaxMB: bToMb(h.maxMem),
		Goroutines:  runtime.NumGoroutine(),
	}}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
