package tts

import (
	"docentgo/pkg/logging"
)

// Log records a synthesis prompt and its outcome in the speech log.
// This is a shared helper for all TTS providers to ensure consistent debugging visibility.
func Log(provider, prompt string, status int, err error) {
	if err != nil {
		logging.SpeechLogger.Warn("TTS request", "provider", provider, "status", status, "error", err, "prompt", prompt)
		return
	}
	logging.SpeechLogger.Info("TTS request", "provider", provider, "status", status, "prompt", prompt)
}
