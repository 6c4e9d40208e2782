package approval

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DecisionKind is the structured outcome of a human response.
type DecisionKind string

const (
	DecisionApprove         DecisionKind = "approve"
	DecisionReject          DecisionKind = "reject"
	DecisionRequestRevision DecisionKind = "request_revision"
)

// ParseDecisionKind accepts the canonical names plus "revise"/"revision".
func ParseDecisionKind(value string) (DecisionKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "approve", "approved":
		return DecisionApprove, nil
	case "reject", "rejected":
		return DecisionReject, nil
	case "request_revision", "revise", "revision":
		return DecisionRequestRevision, nil
	default:
		return "", fmt.Errorf("unknown decision %q (want approve, reject or request_revision)", value)
	}
}

// Decision is what the run engine applies to a pending approval.
type Decision struct {
	Kind     DecisionKind
	UserID   string
	Feedback string
	At       time.Time
}

// Response is a normalized inbound approval signal.
type Response struct {
	Approved   bool
	Decision   DecisionKind
	Feedback   string
	UserID     string
	MessageRef string
	Timestamp  time.Time
}

// AsDecision converts the response for the run engine.
func (r Response) AsDecision() Decision {
	return Decision{Kind: r.Decision, UserID: r.UserID, Feedback: r.Feedback, At: r.Timestamp}
}

var (
	approveReactions  = []string{"white_check_mark", "heavy_check_mark", "+1", "thumbsup"}
	rejectReactions   = []string{"x", "-1", "thumbsdown", "no_entry"}
	revisionReactions = []string{"pencil", "memo", "pencil2"}

	approveCommands  = []string{"approve", "approved", "lgtm"}
	rejectCommands   = []string{"reject", "rejected"}
	revisionPrefixes = []string{"revise:", "revision:"}
)

// normalize maps a reaction or reply to a decision. Reactions win over text;
// explicit reply commands win over the legacy "revise" substring rule.
func normalize(reaction, replyText string) (DecisionKind, string, bool) {
	if reaction = strings.Trim(strings.ToLower(strings.TrimSpace(reaction)), ":"); reaction != "" {
		// Skin tone modifiers arrive as "+1::skin-tone-2".
		reaction, _, _ = strings.Cut(reaction, "::")
		switch {
		case slices.Contains(approveReactions, reaction):
			return DecisionApprove, "", true
		case slices.Contains(rejectReactions, reaction):
			return DecisionReject, "", true
		case slices.Contains(revisionReactions, reaction):
			return DecisionRequestRevision, "", true
		}
	}

	text := strings.TrimSpace(replyText)
	if text == "" {
		return "", "", false
	}
	lower := strings.ToLower(text)
	for _, prefix := range revisionPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return DecisionRequestRevision, strings.TrimSpace(text[len(prefix):]), true
		}
	}
	command := strings.TrimRight(strings.Fields(lower)[0], ".!,")
	switch {
	case slices.Contains(approveCommands, command):
		return DecisionApprove, commentAfter(text), true
	case slices.Contains(rejectCommands, command):
		return DecisionReject, commentAfter(text), true
	}
	if strings.Contains(lower, "revise") {
		return DecisionRequestRevision, text, true
	}
	return "", "", false
}

func commentAfter(text string) string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return ""
	}
	return strings.TrimSpace(strings.Join(fields[1:], " "))
}
