package approval_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"contentfactory/internal/approval"
	"contentfactory/internal/services/slack"
	"contentfactory/internal/stage"
)

type recordingChannel struct {
	approvals []slack.ApprovalRequest
	revisions []slack.RevisionRequest
	err       error
}

func (c *recordingChannel) Configured() bool { return true }

func (c *recordingChannel) SendNotification(context.Context, string, string, string) error {
	return c.err
}

func (c *recordingChannel) SendApprovalRequest(_ context.Context, req slack.ApprovalRequest) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.approvals = append(c.approvals, req)
	return "C1:100.200", nil
}

func (c *recordingChannel) SendRevisionRequest(_ context.Context, req slack.RevisionRequest) error {
	c.revisions = append(c.revisions, req)
	return c.err
}

func fixedClock() time.Time { return time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC) }

func TestProcessApprovalResponse(t *testing.T) {
	gw := approval.NewGateway(nil, nil, approval.WithClock(fixedClock))
	tests := []struct {
		name         string
		reaction     string
		reply        string
		wantNil      bool
		wantKind     approval.DecisionKind
		wantFeedback string
	}{
		{name: "check reaction", reaction: "white_check_mark", wantKind: approval.DecisionApprove},
		{name: "thumbs with skin tone", reaction: ":+1::skin-tone-3:", wantKind: approval.DecisionApprove},
		{name: "x reaction", reaction: "x", wantKind: approval.DecisionReject},
		{name: "pencil reaction", reaction: "pencil2", wantKind: approval.DecisionRequestRevision},
		{name: "unrelated reaction", reaction: "tada", wantNil: true},
		{name: "approve command", reply: "LGTM! ship it", wantKind: approval.DecisionApprove, wantFeedback: "ship it"},
		{name: "reject command", reply: "reject off-brand", wantKind: approval.DecisionReject, wantFeedback: "off-brand"},
		{name: "revise prefix", reply: "Revise: shorter title", wantKind: approval.DecisionRequestRevision, wantFeedback: "shorter title"},
		{name: "legacy substring", reply: "please revise the intro", wantKind: approval.DecisionRequestRevision, wantFeedback: "please revise the intro"},
		{name: "chatter", reply: "nice work team", wantNil: true},
		{name: "empty", wantNil: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := gw.ProcessApprovalResponse("C1:100.200", "U1", tc.reaction, tc.reply)
			if tc.wantNil {
				if resp != nil {
					t.Fatalf("expected nil response, got %+v", resp)
				}
				return
			}
			if resp == nil {
				t.Fatal("expected response")
			}
			if resp.Decision != tc.wantKind || resp.Feedback != tc.wantFeedback {
				t.Fatalf("got %s %q, want %s %q", resp.Decision, resp.Feedback, tc.wantKind, tc.wantFeedback)
			}
			if resp.Approved != (tc.wantKind == approval.DecisionApprove) {
				t.Fatalf("Approved flag inconsistent: %+v", resp)
			}
			if !resp.Timestamp.Equal(fixedClock()) || resp.UserID != "U1" {
				t.Fatalf("unexpected metadata: %+v", resp)
			}
		})
	}
}

func TestReactionTakesPrecedenceOverText(t *testing.T) {
	gw := approval.NewGateway(nil, nil)
	resp := gw.ProcessApprovalResponse("C1:1.2", "U1", "x", "approve")
	if resp == nil || resp.Decision != approval.DecisionReject {
		t.Fatalf("expected reaction to win, got %+v", resp)
	}
	if gw.ProcessApprovalResponse("", "U1", "x", "") != nil {
		t.Fatal("expected nil without a message ref")
	}
}

func TestParseDecisionKind(t *testing.T) {
	for in, want := range map[string]approval.DecisionKind{
		"approve": approval.DecisionApprove, "Rejected": approval.DecisionReject, "revise": approval.DecisionRequestRevision,
	} {
		got, err := approval.ParseDecisionKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseDecisionKind(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := approval.ParseDecisionKind("maybe"); err == nil {
		t.Fatal("expected error for unknown decision")
	}
}

func TestRequestApprovalFormatsPreview(t *testing.T) {
	ch := &recordingChannel{}
	gw := approval.NewGateway(ch, nil)
	ref, err := gw.RequestApproval(context.Background(), approval.Request{
		ApprovalID: "a-1",
		RunID:      "r-1",
		Spec: stage.ApprovalSpec{
			Type:         "content",
			RelatedTitle: "מס הכנסה",
			Preview:      "<p>" + strings.Repeat("word ", 200) + "</p>",
			Links:        []string{"https://example.com/?p=1"},
		},
	})
	if err != nil {
		t.Fatalf("RequestApproval: %v", err)
	}
	if ref != "C1:100.200" || len(ch.approvals) != 1 {
		t.Fatalf("unexpected dispatch: %q %+v", ref, ch.approvals)
	}
	sent := ch.approvals[0]
	if strings.Contains(sent.Preview, "<p>") || !strings.HasSuffix(sent.Preview, "…") {
		t.Fatalf("preview not cleaned and truncated: %q", sent.Preview)
	}
	if sent.Title != "מס הכנסה" || sent.ApprovalID != "a-1" {
		t.Fatalf("unexpected request: %+v", sent)
	}
}

func TestRequestApprovalWithoutChannel(t *testing.T) {
	gw := approval.NewGateway(nil, nil)
	if _, err := gw.RequestApproval(context.Background(), approval.Request{}); !errors.Is(err, approval.ErrChannelUnavailable) {
		t.Fatalf("expected ErrChannelUnavailable, got %v", err)
	}
	if err := gw.RequestRevision(context.Background(), "a", "r", "fb", ""); !errors.Is(err, approval.ErrChannelUnavailable) {
		t.Fatalf("expected ErrChannelUnavailable, got %v", err)
	}
}

func TestRequestRevisionUsesThread(t *testing.T) {
	ch := &recordingChannel{}
	gw := approval.NewGateway(ch, nil)
	if err := gw.RequestRevision(context.Background(), "a-1", "r-1", "shorter intro", "C1:100.200"); err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if len(ch.revisions) != 1 || ch.revisions[0].ThreadRef != "C1:100.200" || ch.revisions[0].Feedback != "shorter intro" {
		t.Fatalf("unexpected revision: %+v", ch.revisions)
	}
}
