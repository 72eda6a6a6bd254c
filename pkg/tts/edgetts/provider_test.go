package edgetts

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"docentgo/pkg/tracker"
	"docentgo/pkg/tts"
)

func TestHandleBinaryMessage(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "test_audio_*.mp3")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	// Header length 4 bytes (0x00 0x04)
	header := []byte("info")
	audio := []byte{0x01, 0x02, 0x03, 0x04}
	data := append([]byte{0x00, 0x04}, header...)
	data = append(data, audio...)

	if err := handleBinaryMessage(data, tmpFile); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	content, _ := os.ReadFile(tmpFile.Name())
	if !bytes.Equal(content, audio) {
		t.Errorf("Expected audio data %v, got %v", audio, content)
	}

	if err := handleBinaryMessage([]byte{0x00}, tmpFile); err != nil {
		t.Errorf("Too short message should be ignored, got %v", err)
	}
}

func TestVoices(t *testing.T) {
	p := NewProvider(tracker.New(), []string{"ko-KR-SunHiNeural", "ja-JP-NanamiNeural"})
	voices, err := p.Voices(context.TODO())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("Expected 2 voices, got %d", len(voices))
	}
	if voices[0].Name != "SunHi (Female)" || voices[0].Language != "ko-KR" {
		t.Errorf("Unexpected first voice: %+v", voices[0])
	}
	if voices[1].Name != "ja-JP-NanamiNeural" || voices[1].Language != "ja-JP" {
		t.Errorf("Unknown ids should be listed by id: %+v", voices[1])
	}
}

func TestGenerateSecMSGec(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	token := generateSecMSGec("token", now)
	if len(token) != 64 {
		t.Errorf("Expected token length 64, got %d", len(token))
	}
	// Stable within the same five-minute window.
	if other := generateSecMSGec("token", now.Add(2*time.Minute)); other != token {
		t.Errorf("Token changed inside the window")
	}
	if other := generateSecMSGec("token", now.Add(6*time.Minute)); other == token {
		t.Errorf("Token should roll over after five minutes")
	}
}

func TestSynthesize_RequiresEnv(t *testing.T) {
	t.Setenv("EDGE_TTS_ORIGIN", "")
	p := NewProvider(nil, []string{"ko-KR-SunHiNeural"})
	_, err := p.Synthesize(context.Background(), ttsRequest("안녕"), t.TempDir()+"/out")
	if err == nil {
		t.Fatal("expected error without endpoint configuration")
	}
}

func ttsRequest(text string) tts.Request {
	return tts.Request{Text: text, Rate: 1, Pitch: 1, Volume: 1}
}
