package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docentgo/pkg/config"
	"docentgo/pkg/probe"
)

type staticReport probe.Report

func (s staticReport) Report(context.Context) probe.Report { return probe.Report(s) }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		rep    probe.Report
		status int
	}{
		{"Healthy", probe.Report{Healthy: true, Checks: []probe.CheckStatus{{Name: "content", OK: true, Critical: true}}}, http.StatusOK},
		{"CriticalDown", probe.Report{Healthy: false, Checks: []probe.CheckStatus{{Name: "content", Critical: true, Error: "timeout"}}}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := NewMux(config.ServerConfig{}, Handlers{Health: NewHealthHandler(staticReport(tt.rep))}, nil)
			var got probe.Report
			rec := do(t, mux, "GET", "/health", nil, &got)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.rep, got)
		})
	}
}

func TestVersionRoute(t *testing.T) {
	mux := NewMux(config.ServerConfig{}, Handlers{}, nil)
	var got map[string]string
	rec := do(t, mux, "GET", "/api/version", nil, &got)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, got["version"])
}

func TestSPAFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>kiosk</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	mux := NewMux(config.ServerConfig{StaticDir: dir}, Handlers{}, nil)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/", http.StatusOK, "kiosk"},
		{"/docent", http.StatusOK, "kiosk"},
		{"/admin/videos", http.StatusOK, "kiosk"},
		{"/app.js", http.StatusOK, "console.log"},
		{"/missing.css", http.StatusNotFound, ""},
		{"/api/unknown", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, mux, "GET", tt.path, nil, nil)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
		})
	}
}
