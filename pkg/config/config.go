package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Request   RequestConfig   `yaml:"request"`
	Content   ContentConfig   `yaml:"content"`
	Speech    SpeechConfig    `yaml:"speech"`
	TTS       TTSConfig       `yaml:"tts"`
	Narration NarrationConfig `yaml:"narration"`
	Chat      ChatConfig      `yaml:"chat"`
	LLM       LLMConfig       `yaml:"llm"`
	Claim     ClaimConfig     `yaml:"claim"`
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Server    ServerConfig    `yaml:"server"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries   int           `yaml:"retries"`
	Timeout   Duration      `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second per host, 0 disables
	Backoff   BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// ContentConfig points at the museum content service.
type ContentConfig struct {
	BaseURL      string   `yaml:"base_url"`
	FallbackURL  string   `yaml:"fallback_url"`
	FetchTimeout Duration `yaml:"fetch_timeout"`
	CacheTTL     Duration `yaml:"cache_ttl"` // last good responses kept in the db, 0 disables
}

// SpeechConfig holds settings shared by every speech owner.
type SpeechConfig struct {
	Engine        string   `yaml:"engine"` // "playout", "simulated"
	Language      string   `yaml:"language"`
	VoicePriority []string `yaml:"voice_priority"`
	RetryAttempts int      `yaml:"retry_attempts"`
	StartTimeout  Duration `yaml:"start_timeout"`
	BoundaryTick  Duration `yaml:"boundary_tick"`
	CharDuration  Duration `yaml:"char_duration"` // simulated engine pacing
	WorkDir       string   `yaml:"work_dir"`
}

// VoiceProfile holds prosody settings for one speech owner.
type VoiceProfile struct {
	Rate   float64 `yaml:"rate"`
	Pitch  float64 `yaml:"pitch"`
	Volume float64 `yaml:"volume"`
}

// EdgeTTSConfig holds settings for Edge TTS.
type EdgeTTSConfig struct {
	Voices []string `yaml:"voices"` // e.g. "ko-KR-SunHiNeural"
}

// TTSConfig holds Text-To-Speech settings used by the playout engine.
type TTSConfig struct {
	Engine  string        `yaml:"engine"`
	EdgeTTS EdgeTTSConfig `yaml:"edge_tts"`
}

// NarrationConfig holds docent playback settings.
type NarrationConfig struct {
	Voice         VoiceProfile      `yaml:"voice"`
	CharDuration  Duration          `yaml:"char_duration"`
	MinEstimate   Duration          `yaml:"min_estimate"`
	MinRemaining  Duration          `yaml:"min_remaining"`
	AdvanceDelay  Duration          `yaml:"advance_delay"`
	FrameInterval Duration          `yaml:"frame_interval"`
	IntroVideo    string            `yaml:"intro_video"`
	DefaultVideo  string            `yaml:"default_video"`
	ThemeVideos   map[string]string `yaml:"theme_videos"`
}

// ChatConfig holds settings for the visitor chat.
type ChatConfig struct {
	Endpoint     string       `yaml:"endpoint"` // completion endpoint; empty uses the local relay
	Stream       bool         `yaml:"stream"`
	Voice        VoiceProfile `yaml:"voice"`
	SpeakReplies bool         `yaml:"speak_replies"`
	AtomicLength int          `yaml:"atomic_length"`
	CharDelay    Duration     `yaml:"char_delay"`
	PauseDelay   Duration     `yaml:"pause_delay"`
	MaxLines     int          `yaml:"max_lines"`
}

// LLMConfig holds settings for the completion relay.
type LLMConfig struct {
	Fallback    []string                  `yaml:"fallback"` // provider names tried in order
	Providers   map[string]ProviderConfig `yaml:"providers"`
	Backend     BackendChatConfig         `yaml:"backend"`
	Temperature float64                   `yaml:"temperature"`
	MaxTokens   int                       `yaml:"max_tokens"`
	FixSpacing  bool                      `yaml:"fix_spacing"` // re-space merged Korean backend answers
	LogPath     string                    `yaml:"log_path"`
	PromptsDir  string                    `yaml:"prompts_dir"` // overrides for the built-in prompt templates
}

// ProviderConfig holds settings for a single completion provider.
type ProviderConfig struct {
	Type    string `yaml:"type"` // "openai", "gemini", "groq", "deepseek", "nvidia"
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// BackendChatConfig holds the museum backend chat settings.
type BackendChatConfig struct {
	Enabled bool   `yaml:"enabled"` // try the backend before any provider
	BaseURL string `yaml:"base_url"`
	Path    string `yaml:"path"`
}

// ClaimConfig holds prize claim settings.
type ClaimConfig struct {
	Endpoint string `yaml:"endpoint"` // path on the content service
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Speech   LogSettings `yaml:"speech"`
	Trace    bool        `yaml:"trace"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path         string `yaml:"path"`
	OverridesCSV string `yaml:"overrides_csv"` // item_id,url seed imported at startup when changed
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address        string   `yaml:"address"`
	SessionTTL     Duration `yaml:"session_ttl"`
	StaticDir      string   `yaml:"static_dir"` // built kiosk frontend, empty disables
	TickInterval   Duration `yaml:"tick_interval"`
	SweepInterval  Duration `yaml:"sweep_interval"`
	HealthInterval Duration `yaml:"health_interval"`
	WarmupInterval Duration `yaml:"warmup_interval"` // content cache refresh, 0 disables
	VideoDirs      []string `yaml:"video_dirs"`      // relative to StaticDir
	VideoScan      Duration `yaml:"video_scan"`      // upload polling, 0 disables
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Request: RequestConfig{
			Retries:   3,
			Timeout:   Duration(30 * time.Second),
			RateLimit: 10,
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(10 * time.Second),
			},
		},
		Content: ContentConfig{
			BaseURL:      "http://15.165.213.11:8080",
			FallbackURL:  "",
			FetchTimeout: Duration(8 * time.Second),
			CacheTTL:     Duration(7 * Day),
		},
		Speech: SpeechConfig{
			Engine:        "playout",
			Language:      "ko-KR",
			VoicePriority: []string{"Google 한국의", "Yuna", "Narae", "Heami", "Female", "여성"},
			RetryAttempts: 1,
			StartTimeout:  Duration(1200 * time.Millisecond),
			BoundaryTick:  Duration(250 * time.Millisecond),
			CharDuration:  Duration(150 * time.Millisecond),
			WorkDir:       "./data/speech",
		},
		TTS: TTSConfig{
			Engine: "edge-tts",
			EdgeTTS: EdgeTTSConfig{
				Voices: []string{"ko-KR-SunHiNeural", "ko-KR-InJoonNeural", "ko-KR-HyunsuMultilingualNeural"},
			},
		},
		Narration: NarrationConfig{
			Voice:         VoiceProfile{Rate: 1.0, Pitch: 0.8, Volume: 1.0},
			CharDuration:  Duration(150 * time.Millisecond),
			MinEstimate:   Duration(800 * time.Millisecond),
			MinRemaining:  Duration(300 * time.Millisecond),
			AdvanceDelay:  Duration(150 * time.Millisecond),
			FrameInterval: Duration(50 * time.Millisecond),
			IntroVideo:    "/videos/hamoIntroduce.mp4",
			DefaultVideo:  "/videos/hamowar_start_video.mp4",
			ThemeVideos: map[string]string{
				"imjin_war":    "/videos/hamowar_start_video.mp4",
				"jinju_museum": "/videos/hamowar_start_video.mp4",
				"gonryongpo":   "/videos/hamowar_start_video.mp4",
			},
		},
		Chat: ChatConfig{
			Endpoint:     "",
			Stream:       true,
			Voice:        VoiceProfile{Rate: 0.95, Pitch: 0.8, Volume: 1.0},
			SpeakReplies: true,
			AtomicLength: 60,
			CharDelay:    Duration(18 * time.Millisecond),
			PauseDelay:   Duration(45 * time.Millisecond),
			MaxLines:     3,
		},
		LLM: LLMConfig{
			Fallback: []string{"openai"},
			Providers: map[string]ProviderConfig{
				"openai": {Type: "openai", Model: "gpt-3.5-turbo"},
				"gemini": {Type: "gemini", Model: "gemini-2.5-flash-lite"},
			},
			Backend: BackendChatConfig{
				Enabled: false,
				BaseURL: "http://15.165.213.11:8080",
				Path:    "/api/chat",
			},
			Temperature: 0.7,
			MaxTokens:   800,
			FixSpacing:  true,
			LogPath:     "logs/llm.log",
		},
		Claim: ClaimConfig{
			Endpoint: "/api/recipient",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Speech: LogSettings{
				Path:  "./logs/speech.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path:         "./data/docent.db",
			OverridesCSV: "./data/video_overrides.csv",
		},
		Server: ServerConfig{
			Address:        "localhost:8088",
			SessionTTL:     Duration(2 * time.Hour),
			StaticDir:      "",
			TickInterval:   Duration(time.Second),
			SweepInterval:  Duration(time.Minute),
			HealthInterval: Duration(5 * time.Minute),
			WarmupInterval: Duration(6 * time.Hour),
			VideoDirs:      []string{"videos"},
			VideoScan:      Duration(time.Minute),
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// An existing file is merged over the defaults but never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if !isValidLocale(cfg.Speech.Language) {
		return nil, fmt.Errorf("invalid speech language '%s': must be 'xx-YY' (e.g. 'ko-KR')", cfg.Speech.Language)
	}
	return cfg, nil
}

// applyEnv fills empty settings from the environment without saving them.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DOCENT_API_BASE"); v != "" {
		cfg.Content.BaseURL = v
	}
	if cfg.Content.FallbackURL == "" {
		cfg.Content.FallbackURL = os.Getenv("DOCENT_API_FALLBACK")
	}
	if v := os.Getenv("BACKEND_BASE"); v != "" {
		cfg.LLM.Backend.BaseURL = v
	}
	if os.Getenv("BACKEND_USE_CHAT_FIRST") == "true" {
		cfg.LLM.Backend.Enabled = true
	}

	envKeys := map[string]string{
		"openai":   "OPENAI_API_KEY",
		"gemini":   "GEMINI_API_KEY",
		"groq":     "GROQ_API_KEY",
		"deepseek": "DEEPSEEK_API_KEY",
		"nvidia":   "NVIDIA_API_KEY",
	}
	for name, p := range cfg.LLM.Providers {
		if p.Key != "" {
			continue
		}
		if key := os.Getenv(envKeys[p.Type]); key != "" {
			p.Key = key
			cfg.LLM.Providers[name] = p
		}
	}
}

func isValidLocale(s string) bool {
	matched, _ := regexp.MatchString(`^[a-z]{2}-[A-Z]{2}$`, s)
	return matched
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Docent Configuration
# ---------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	reEngine := regexp.MustCompile(`(?m)^(\s+)engine: (playout|simulated)`)
	data = reEngine.ReplaceAll(data, []byte("${1}# Options: playout, simulated\n${1}engine: ${2}"))

	reFallback := regexp.MustCompile(`(?m)^(\s+)fallback:`)
	data = reFallback.ReplaceAll(data, []byte("${1}# Provider names tried in order (types: openai, gemini, groq, deepseek, nvidia)\n${1}fallback:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
