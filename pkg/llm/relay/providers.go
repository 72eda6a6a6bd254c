package relay

import (
	"fmt"
	"log/slog"

	"docentgo/pkg/config"
	"docentgo/pkg/llm"
	"docentgo/pkg/llm/failover"
	"docentgo/pkg/llm/gemini"
	"docentgo/pkg/llm/openai"
	"docentgo/pkg/tracker"
)

// NewProvider builds the failover chain named by cfg.Fallback. Providers
// without a key are skipped. It returns nil, nil when none is usable.
func NewProvider(cfg config.LLMConfig, t *tracker.Tracker) (llm.Provider, error) {
	var providers []llm.Provider
	var names []string

	for _, name := range cfg.Fallback {
		pc, ok := cfg.Providers[name]
		if !ok {
			return nil, fmt.Errorf("fallback names unknown provider %q", name)
		}
		if pc.Key == "" {
			slog.Warn("Completion provider has no key, skipping", "provider", name)
			continue
		}

		var p llm.Provider
		var err error
		switch pc.Type {
		case "gemini":
			p, err = gemini.NewClient(pc, t)
		case "openai", "groq", "deepseek", "nvidia", "":
			p, err = openai.NewClient(pc, t)
		default:
			err = fmt.Errorf("unknown provider type %q", pc.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		providers = append(providers, p)
		names = append(names, name)
	}

	if len(providers) == 0 {
		slog.Warn("No completion provider configured; chat relies on the backend only")
		return nil, nil
	}
	slog.Info("Completion providers ready", "chain", names)
	return failover.New(providers, names, cfg.LogPath)
}
