package slack_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"contentfactory/internal/services"
	"contentfactory/internal/services/slack"
)

type captured struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts"`
}

func slackServer(t *testing.T, sink *[]captured) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer xoxb-1" {
			t.Errorf("missing bearer token")
		}
		var msg captured
		_ = json.NewDecoder(r.Body).Decode(&msg)
		*sink = append(*sink, msg)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C123", "ts": "1700000000.000100"})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSendApprovalRequestReturnsMessageRef(t *testing.T) {
	var sent []captured
	server := slackServer(t, &sent)
	client := slack.NewClient(slack.Config{BotToken: "xoxb-1", Channel: "#content", BaseURL: server.URL})

	ref, err := client.SendApprovalRequest(context.Background(), slack.ApprovalRequest{
		ApprovalID: "ap-1",
		RunID:      "run-1",
		Type:       "article",
		Title:      "מדריך מס",
		Preview:    "line one\nline two",
	})
	if err != nil {
		t.Fatalf("SendApprovalRequest: %v", err)
	}
	if ref != "C123:1700000000.000100" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if len(sent) != 1 || !strings.Contains(sent[0].Text, "ap-1") || !strings.Contains(sent[0].Text, ">line two") {
		t.Fatalf("unexpected message %+v", sent)
	}
}

func TestSendRevisionRequestThreadsReply(t *testing.T) {
	var sent []captured
	server := slackServer(t, &sent)
	client := slack.NewClient(slack.Config{BotToken: "xoxb-1", Channel: "#content", BaseURL: server.URL})

	err := client.SendRevisionRequest(context.Background(), slack.RevisionRequest{
		ApprovalID: "ap-1", RunID: "run-1", Feedback: "please revise the intro", ThreadRef: "C123:1700000000.000100",
	})
	if err != nil {
		t.Fatalf("SendRevisionRequest: %v", err)
	}
	if sent[0].Channel != "C123" || sent[0].ThreadTS != "1700000000.000100" {
		t.Fatalf("expected threaded reply, got %+v", sent[0])
	}
}

func TestAPIErrorIsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	}))
	defer server.Close()
	client := slack.NewClient(slack.Config{BotToken: "xoxb-1", Channel: "#gone", BaseURL: server.URL})
	err := client.SendNotification(context.Background(), "t", "b", "")
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestEventMessageRef(t *testing.T) {
	reaction, err := slack.ParseEvent([]byte(`{"type":"event_callback","event":{"type":"reaction_added","user":"U1","reaction":"white_check_mark","item":{"type":"message","channel":"C123","ts":"1.2"}}}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if reaction.Event.MessageRef() != "C123:1.2" {
		t.Fatalf("unexpected reaction ref %q", reaction.Event.MessageRef())
	}

	reply, _ := slack.ParseEvent([]byte(`{"type":"event_callback","event":{"type":"message","user":"U1","channel":"C123","ts":"1.9","thread_ts":"1.2","text":"please revise the intro"}}`))
	if reply.Event.MessageRef() != "C123:1.2" {
		t.Fatalf("unexpected reply ref %q", reply.Event.MessageRef())
	}

	top, _ := slack.ParseEvent([]byte(`{"type":"event_callback","event":{"type":"message","channel":"C123","ts":"1.9","text":"hi"}}`))
	if top.Event.MessageRef() != "" {
		t.Fatal("top-level message should not reference an approval")
	}

	if _, _, ok := slack.ParseMessageRef("no-separator"); ok {
		t.Fatal("expected malformed ref to be rejected")
	}
}

func TestVerifySignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"type":"event_callback"}`)
	ts := "1700000000"
	sig := slack.Sign("secret", ts, body)

	if err := slack.VerifySignature("secret", ts, sig, body, now); err != nil {
		t.Fatalf("expected valid signature: %v", err)
	}
	if err := slack.VerifySignature("other", ts, sig, body, now); !errors.Is(err, slack.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for wrong secret, got %v", err)
	}
	if err := slack.VerifySignature("secret", ts, sig, body, now.Add(10*time.Minute)); !errors.Is(err, slack.ErrInvalidSignature) {
		t.Fatalf("expected stale timestamp rejection, got %v", err)
	}
	if err := slack.VerifySignature("secret", "abc", sig, body, now); !errors.Is(err, slack.ErrInvalidSignature) {
		t.Fatalf("expected bad timestamp rejection, got %v", err)
	}
}
