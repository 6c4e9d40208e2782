package kie_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"contentfactory/internal/services/generation"
	"contentfactory/internal/services/kie"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(map[string]any{"code": 200, "msg": "success", "data": data}); err != nil {
		t.Errorf("encode: %v", err)
	}
}

func TestImageJobLifecycle(t *testing.T) {
	var polls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth header")
		}
		switch r.URL.Path {
		case "/jobs/createTask":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["model"] != "google/nano-banana" {
				t.Errorf("unexpected model %v", body["model"])
			}
			writeEnvelope(t, w, map[string]any{"taskId": "img-1"})
		case "/jobs/recordInfo":
			if r.URL.Query().Get("taskId") != "img-1" {
				t.Errorf("unexpected task id %q", r.URL.Query().Get("taskId"))
			}
			polls++
			if polls == 1 {
				writeEnvelope(t, w, map[string]any{"state": "generating"})
				return
			}
			writeEnvelope(t, w, map[string]any{"state": "success", "resultJson": `{"resultUrls":["https://cdn.kie.ai/img-1.png"]}`})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := kie.NewClient(kie.Config{APIKey: "key", BaseURL: server.URL, ImageModel: "google/nano-banana"})
	policy := generation.Policy{MaxAttempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }}
	status, err := generation.Run(context.Background(), client.Images(), generation.Request{Prompt: "tax return"}, policy)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status.ResultURL != "https://cdn.kie.ai/img-1.png" {
		t.Fatalf("unexpected result %+v", status)
	}
}

func TestVideoJobFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/veo/generate":
			writeEnvelope(t, w, map[string]any{"taskId": "vid-1"})
		case "/veo/record-info":
			writeEnvelope(t, w, map[string]any{"successFlag": 2, "errorMessage": "prompt rejected"})
		}
	}))
	defer server.Close()

	client := kie.NewClient(kie.Config{APIKey: "key", BaseURL: server.URL, VideoModel: "veo3_fast"})
	taskID, err := client.Videos().Submit(context.Background(), generation.Request{Prompt: "x"})
	if err != nil || taskID != "vid-1" {
		t.Fatalf("Submit: %q %v", taskID, err)
	}
	status, err := client.Videos().PollStatus(context.Background(), taskID)
	if err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if status.State != generation.StateFailed || status.Error != "prompt rejected" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestSubmitRejectsAPIErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 402, "msg": "insufficient credits"})
	}))
	defer server.Close()

	client := kie.NewClient(kie.Config{APIKey: "key", BaseURL: server.URL})
	if _, err := client.Images().Submit(context.Background(), generation.Request{Prompt: "x"}); err == nil {
		t.Fatal("expected error for non-200 api code")
	}
}
