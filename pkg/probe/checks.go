package probe

import (
	"context"
	"errors"
	"fmt"

	"docentgo/pkg/content"
	"docentgo/pkg/llm"
	"docentgo/pkg/speech"
)

// ContentProber is the diagnostic side of the content client.
type ContentProber interface {
	Probe(ctx context.Context, path string) content.ProbeResult
}

// Content checks that the content service answers path with a 2xx.
func Content(c ContentProber, path string, critical bool) Probe {
	return Probe{
		Name:     "content",
		Critical: critical,
		Check: func(ctx context.Context) error {
			res := c.Probe(ctx, path)
			if !res.OK {
				if res.Status == 0 {
					return fmt.Errorf("%s unreachable: %s", path, res.StatusText)
				}
				return fmt.Errorf("%s answered %d %s", path, res.Status, res.StatusText)
			}
			return nil
		},
	}
}

// Speech checks that the engine lists at least one voice, and one in lang
// when lang is set.
func Speech(e speech.Engine, lang string, priority []string) Probe {
	return Probe{
		Name: "speech",
		Check: func(ctx context.Context) error {
			voices, err := e.Voices(ctx)
			if err != nil {
				return err
			}
			if len(voices) == 0 {
				return errors.New("no voices available")
			}
			if lang != "" && speech.SelectVoice(voices, lang, priority) == nil {
				return fmt.Errorf("no %s voice among %d", lang, len(voices))
			}
			return nil
		},
	}
}

// LLM checks the completion provider chain. A nil provider fails the check.
func LLM(p llm.Provider) Probe {
	return Probe{
		Name: "llm",
		Check: func(ctx context.Context) error {
			if p == nil {
				return errors.New("no provider configured")
			}
			return p.HealthCheck(ctx)
		},
	}
}
