package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"docentgo/pkg/content"
	"docentgo/pkg/llm"
	"docentgo/pkg/speech"
)

func TestRun(t *testing.T) {
	probes := []Probe{
		{
			Name: "Success Probe",
			Check: func(ctx context.Context) error {
				return nil
			},
			Critical: true,
		},
		{
			Name: "Failure Probe (Non-Critical)",
			Check: func(ctx context.Context) error {
				return errors.New("minor issue")
			},
			Critical: false,
		},
		{
			Name: "Hanging Probe",
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}

	results := Run(context.Background(), probes, 20*time.Millisecond)

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].Error != nil {
		t.Errorf("Expected success probe to pass, got error: %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("Expected failure probe to fail, got nil")
	}
	if !errors.Is(results[2].Error, context.DeadlineExceeded) {
		t.Errorf("Expected hanging probe to time out, got %v", results[2].Error)
	}
	for i, p := range probes {
		if results[i].Probe.Name != p.Name {
			t.Errorf("result %d out of order: %s", i, results[i].Probe.Name)
		}
	}
}

func TestAnalyzeResults(t *testing.T) {
	tests := []struct {
		name        string
		results     []Result
		wantErr     bool
		wantHealthy bool
	}{
		{
			name: "All Pass",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: true}, Error: nil},
			},
			wantErr:     false,
			wantHealthy: true,
		},
		{
			name: "Critical Failure",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: true}, Error: errors.New("fail")},
			},
			wantErr:     true,
			wantHealthy: false,
		},
		{
			name: "Non-Critical Failure",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: false}, Error: errors.New("fail")},
			},
			wantErr:     false,
			wantHealthy: true,
		},
		{
			name: "Mixed Failure",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: false}, Error: errors.New("fail")},
				{Probe: Probe{Name: "P2", Critical: true}, Error: errors.New("fail")},
			},
			wantErr:     true,
			wantHealthy: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AnalyzeResults(tt.results)
			if (err != nil) != tt.wantErr {
				t.Errorf("AnalyzeResults() error = %v, wantErr %v", err, tt.wantErr)
			}
			rep := NewReport(tt.results)
			if rep.Healthy != tt.wantHealthy {
				t.Errorf("NewReport().Healthy = %v, want %v", rep.Healthy, tt.wantHealthy)
			}
			if len(rep.Checks) != len(tt.results) {
				t.Errorf("expected %d checks, got %d", len(tt.results), len(rep.Checks))
			}
		})
	}
}

type stubProber content.ProbeResult

func (s stubProber) Probe(context.Context, string) content.ProbeResult {
	return content.ProbeResult(s)
}

type stubProvider struct{ err error }

func (s stubProvider) Complete(context.Context, llm.Prompt) (string, error) { return "", nil }
func (s stubProvider) Stream(context.Context, llm.Prompt, llm.DeltaFunc) (string, error) {
	return "", nil
}
func (s stubProvider) HealthCheck(context.Context) error { return s.err }

func TestChecks(t *testing.T) {
	korean := []speech.Voice{{ID: "1", Name: "Yuna", Lang: "ko-KR"}}
	english := []speech.Voice{{ID: "2", Name: "Samantha", Lang: "en-US"}}

	tests := []struct {
		name    string
		probe   Probe
		wantErr bool
	}{
		{"ContentOK", Content(stubProber{OK: true, Status: 200}, "/api/themes", true), false},
		{"ContentStatus", Content(stubProber{Status: 503, StatusText: "Service Unavailable"}, "/api/themes", true), true},
		{"ContentUnreachable", Content(stubProber{StatusText: "connection refused"}, "/api/themes", true), true},
		{"SpeechOK", Speech(speech.NewSimulated(nil, 0, korean), "ko-KR", nil), false},
		{"SpeechNoVoices", Speech(speech.NewSimulated(nil, 0, nil), "ko-KR", nil), true},
		{"SpeechWrongLanguage", Speech(speech.NewSimulated(nil, 0, english), "ko-KR", nil), true},
		{"SpeechAnyLanguage", Speech(speech.NewSimulated(nil, 0, english), "", nil), false},
		{"LLMOK", LLM(stubProvider{}), false},
		{"LLMFailing", LLM(stubProvider{err: errors.New("401")}), true},
		{"LLMMissing", LLM(nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.probe.Check(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
