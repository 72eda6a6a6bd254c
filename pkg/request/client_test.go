package request

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docentgo/pkg/tracker"
)

func testConfig() ClientConfig {
	return ClientConfig{
		Retries:   3,
		BaseDelay: 5 * time.Millisecond,
		MaxDelay:  20 * time.Millisecond,
		Timeout:   2 * time.Second,
	}
}

func TestGet_Retry(t *testing.T) {
	var attempts int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer svr.Close()

	tr := tracker.New()
	client := New(tr, testConfig())

	body, err := client.Get(context.Background(), svr.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "success", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	host := strings.TrimPrefix(svr.URL, "http://")
	stats := tr.Snapshot()[host]
	assert.Equal(t, int64(1), stats.APISuccess)
	assert.Equal(t, int64(2), stats.Retries)
}

func TestGet_ClientErrorNotRetried(t *testing.T) {
	var attempts int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer svr.Close()

	client := New(nil, testConfig())
	_, err := client.Get(context.Background(), svr.URL, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestGet_ExhaustsRetries(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer svr.Close()

	client := New(nil, testConfig())
	_, err := client.Get(context.Background(), svr.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.True(t, IsStatus(err, http.StatusBadGateway))
}

func TestGet_UserAgent(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"Default", nil, defaultUserAgent},
		{"Override", map[string]string{"user-agent": "probe/1"}, "probe/1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.UserAgent()
			}))
			defer svr.Close()

			_, err := New(nil, testConfig()).Get(context.Background(), svr.URL, tt.headers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostJSON_ResendsBodyOnRetry(t *testing.T) {
	var bodies []string
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer svr.Close()

	out, err := New(nil, testConfig()).PostJSON(context.Background(), svr.URL, map[string]int{"score": 3}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])

	var payload map[string]int
	require.NoError(t, json.Unmarshal([]byte(bodies[1]), &payload))
	assert.Equal(t, 3, payload["score"])
}

func TestStream(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("data: {}\n\n"))
	}))
	defer svr.Close()

	client := New(nil, testConfig())

	resp, err := client.Stream(context.Background(), http.MethodPost, svr.URL+"/ok", []byte("{}"), nil)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "data: {}\n\n", string(b))

	_, err = client.Stream(context.Background(), http.MethodPost, svr.URL+"/fail", nil, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
}

func TestRaw_AnyStatus(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer svr.Close()

	resp, err := New(nil, testConfig()).Raw(context.Background(), svr.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "yes", resp.Header.Get("X-Test"))
	assert.Equal(t, "short and stout", string(resp.Body))
}

func TestInvalidURL(t *testing.T) {
	_, err := New(nil, testConfig()).Get(context.Background(), "::not a url", nil)
	assert.Error(t, err)
}
