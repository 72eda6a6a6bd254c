package api

import (
	"testing"
)

func TestFormatLogLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "SortsAndFiltersParams",
			input: `time=2026-10-15T06:50:46.074+09:00 level=INFO msg="Claim accepted" score=2 total=3 email_hash=0f1e2d3c4b5a69788796a5b4c3d2e1f0`,
			want:  "06:50:46 Claim accepted (score=2, total=3)",
		},
		{
			name:  "KoreanValues",
			input: `time=2026-10-15T06:50:46+09:00 level=INFO msg="Narration transition" theme=imjin_war to=speaking spot=0 title="거북선"`,
			want:  "06:50:46 Narration transition (spot=0, theme=imjin_war, title=거북선, to=speaking)",
		},
		{
			name:  "NotStructured",
			input: "plain text line",
			want:  "plain text line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLogLine(tt.input); got != tt.want {
				t.Errorf("formatLogLine() = %q, want %q", got, tt.want)
			}
		})
	}
}
