package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	}))
	defer backend.Close()

	dir := t.TempDir()
	tempConfig := `
server:
    address: localhost:0  # 0 lets OS choose free port
    tick_interval: 100ms
content:
    base_url: "BACKEND"
    cache_ttl: 0s
speech:
    engine: simulated
    language: ko-KR
log:
    server:
        path: "DIR/logs/test_server.log"
        level: "debug"
    requests:
        path: "DIR/logs/test_requests.log"
        level: "info"
    speech:
        path: "DIR/logs/test_speech.log"
db:
    path: "DIR/test.db"
    overrides_csv: ""
llm:
    fallback: []
`
	tempConfig = strings.ReplaceAll(tempConfig, "BACKEND", backend.URL)
	tempConfig = strings.ReplaceAll(tempConfig, "DIR", filepath.ToSlash(dir))

	path := filepath.Join(dir, "docent_test.yaml")
	if err := os.WriteFile(path, []byte(tempConfig), 0o644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	// Cancel quickly to verify the startup sequence.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := run(ctx, path); err != nil {
		t.Fatalf("run() failed: %v", err)
	}
}
