package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		env       map[string]string
		validate  func(*testing.T, *Config)
		checkFile func(*testing.T, string)
		wantErr   bool
	}{
		{
			name: "NewFile_Defaults",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "ko-KR", cfg.Speech.Language)
				assert.Equal(t, 8*time.Second, cfg.Content.FetchTimeout.D())
				assert.Equal(t, 1200*time.Millisecond, cfg.Speech.StartTimeout.D())
				assert.Equal(t, 1, cfg.Speech.RetryAttempts)
				assert.Equal(t, 0.8, cfg.Narration.Voice.Pitch)
				assert.Equal(t, 0.95, cfg.Chat.Voice.Rate)
				assert.Equal(t, 60, cfg.Chat.AtomicLength)
			},
			checkFile: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Contains(t, string(content), "# Docent Configuration")
				assert.Contains(t, string(content), "# Options: playout, simulated")
				assert.Contains(t, string(content), "fetch_timeout: 8s")
			},
		},
		{
			name:    "ExistingFile_Override",
			content: "speech:\n  engine: simulated\nchat:\n  max_lines: 7\n",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "simulated", cfg.Speech.Engine)
				assert.Equal(t, 7, cfg.Chat.MaxLines)
				assert.Equal(t, "ko-KR", cfg.Speech.Language, "defaults survive partial files")
			},
			checkFile: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.False(t, strings.Contains(string(content), "# Docent Configuration"), "existing file must not be rewritten")
			},
		},
		{
			name: "Env_Fallbacks",
			env: map[string]string{
				"OPENAI_API_KEY":      "sk-test",
				"GEMINI_API_KEY":      "",
				"DOCENT_API_FALLBACK": "http://fallback.local",
				"BACKEND_BASE":        "http://backend.local",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sk-test", cfg.LLM.Providers["openai"].Key)
				assert.Empty(t, cfg.LLM.Providers["gemini"].Key)
				assert.Equal(t, "http://fallback.local", cfg.Content.FallbackURL)
				assert.Equal(t, "http://backend.local", cfg.LLM.Backend.BaseURL)
			},
		},
		{
			name:    "Invalid_Language",
			content: "speech:\n  language: korean\n",
			wantErr: true,
		},
		{
			name:    "Malformed_YAML",
			content: "speech: [\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "configs", "docent.yaml")
			if tt.content != "" {
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t, path)
			}
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docent.yaml")
	require.NoError(t, GenerateDefault(path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	// Existing files are left alone.
	require.NoError(t, os.WriteFile(path, []byte("custom: true\n"), 0o644))
	require.NoError(t, GenerateDefault(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom: true\n", string(content))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docent.yaml")
	cfg := DefaultConfig()
	cfg.Narration.ThemeVideos["custom"] = "/videos/custom.mp4"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/videos/custom.mp4", loaded.Narration.ThemeVideos["custom"])
	assert.Equal(t, cfg.Speech.VoicePriority, loaded.Speech.VoicePriority)
}
