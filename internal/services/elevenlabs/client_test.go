package elevenlabs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"contentfactory/internal/services/elevenlabs"
	"contentfactory/internal/services/generation"
)

func TestSubmitStoresAudioAndPollCompletes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		if !strings.HasSuffix(r.URL.Path, "/text-to-speech/voice-1") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-fake-audio"))
	}))
	defer server.Close()

	outDir := t.TempDir()
	client := elevenlabs.NewClient(elevenlabs.Config{APIKey: "key", VoiceID: "voice-1", BaseURL: server.URL, OutputDir: outDir})
	policy := generation.Policy{MaxAttempts: 2, Sleep: func(context.Context, time.Duration) error { return nil }}
	status, err := generation.Run(context.Background(), client, generation.Request{Prompt: "Welcome to the show"}, policy)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(status.ResultURL, outDir) {
		t.Fatalf("expected audio under %s, got %s", outDir, status.ResultURL)
	}
	data, err := os.ReadFile(status.ResultURL)
	if err != nil || string(data) != "ID3-fake-audio" {
		t.Fatalf("unexpected audio file: %q %v", data, err)
	}
}

func TestSubmitPropagatesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := elevenlabs.NewClient(elevenlabs.Config{APIKey: "key", VoiceID: "v", BaseURL: server.URL, OutputDir: t.TempDir()})
	if _, err := client.Submit(context.Background(), generation.Request{Prompt: "hello"}); err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}
}

func TestPollUnknownTaskFails(t *testing.T) {
	client := elevenlabs.NewClient(elevenlabs.Config{})
	status, err := client.PollStatus(context.Background(), "missing")
	if err != nil || status.State != generation.StateFailed {
		t.Fatalf("expected failed status, got %+v %v", status, err)
	}
}
