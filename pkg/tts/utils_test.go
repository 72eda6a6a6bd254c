package tts

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVerifyAudioFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("FileDoesNotExist", func(t *testing.T) {
		if err := VerifyAudioFile(filepath.Join(tmpDir, "missing.mp3")); err == nil {
			t.Error("expected error for missing file, got nil")
		}
	})

	t.Run("FileTooSmall", func(t *testing.T) {
		path := filepath.Join(tmpDir, "small.mp3")
		if err := os.WriteFile(path, make([]byte, 512), 0o644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
		if err := VerifyAudioFile(path); err == nil {
			t.Error("expected error for small file, got nil")
		}
	})

	t.Run("FileValid", func(t *testing.T) {
		path := filepath.Join(tmpDir, "valid.mp3")
		if err := os.WriteFile(path, make([]byte, MinAudioSize), 0o644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
		if err := VerifyAudioFile(path); err != nil {
			t.Errorf("expected valid file, got %v", err)
		}
	})
}

func TestPercent(t *testing.T) {
	tests := []struct {
		mult float64
		want string
	}{
		{1.0, "+0%"},
		{0.95, "-5%"},
		{0.8, "-20%"},
		{1.25, "+25%"},
		{0, "+0%"},
	}
	for _, tt := range tests {
		if got := Percent(tt.mult); got != tt.want {
			t.Errorf("Percent(%v) = %q, want %q", tt.mult, got, tt.want)
		}
	}
}
