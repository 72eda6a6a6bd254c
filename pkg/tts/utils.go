package tts

import (
	"fmt"
	"os"
)

// VerifyAudioFile checks that a synthesized file exists and is large enough to hold audio.
func VerifyAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("audio file missing: %w", err)
	}
	if info.Size() < MinAudioSize {
		return fmt.Errorf("audio file too small (%d bytes): %s", info.Size(), path)
	}
	return nil
}

// Percent renders a 1.0-based multiplier as a signed relative percentage ("+10%", "-20%").
func Percent(mult float64) string {
	if mult <= 0 {
		mult = 1
	}
	return fmt.Sprintf("%+d%%", int((mult-1)*100+sign(mult-1)*0.5))
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
