package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"docentgo/pkg/content"
	"docentgo/pkg/model"
)

type fakeContent struct {
	themes  []model.Theme
	items   map[string][]model.Item
	quizzes map[string][]model.Quiz
	probed  []string
}

func (f *fakeContent) GetThemes(context.Context) []model.Theme { return f.themes }

func (f *fakeContent) GetItems(_ context.Context, themeID string) []model.Item {
	return f.items[themeID]
}

func (f *fakeContent) GetQuizzes(_ context.Context, themeID string) []model.Quiz {
	return f.quizzes[themeID]
}

func (f *fakeContent) GetRecipients(context.Context) []map[string]any {
	return []map[string]any{{"name": "Front desk", "email": "desk@example.org"}}
}

func (f *fakeContent) Probe(_ context.Context, path string) content.ProbeResult {
	f.probed = append(f.probed, path)
	return content.ProbeResult{OK: true, Status: http.StatusOK, StatusText: "200 OK"}
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		themes: []model.Theme{
			{ID: "joseon", Title: "조선의 과학", LongDescription: "첫 줄\\n둘째 줄"},
			{ID: "empty", Title: "빈 전시"},
		},
		items: map[string][]model.Item{
			"joseon": {
				{ID: "i1", Name: "측우기", ScriptGeneral: "측우기는 비의 양을 재는 기구입니다."},
				{ID: "i2", Name: "자격루", ScriptGeneral: "자격루는 스스로 치는 물시계입니다.", ScriptChild: "물로 움직이는 시계예요."},
			},
		},
		quizzes: map[string][]model.Quiz{
			"joseon": {
				{Question: "비의 양을 재는 기구는?", Options: []string{"측우기", "자격루"}, CorrectAnswer: "측우기"},
				{Question: "물시계는?", Options: []string{"측우기", "자격루"}, CorrectAnswer: "자격루"},
			},
		},
	}
}

type memOverrides struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *memOverrides) GetOverride(_ context.Context, itemID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[itemID]
	return v, ok
}

func (s *memOverrides) SetOverride(_ context.Context, itemID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]string)
	}
	s.m[itemID] = url
	return nil
}

func (s *memOverrides) DeleteOverride(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, itemID)
	return nil
}

func (s *memOverrides) ListOverrides(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out, nil
}

// do sends a request through mux and decodes a JSON answer into out when non-nil.
func do(t *testing.T, mux http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}
