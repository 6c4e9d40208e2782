package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Envelope is the outer Events API payload.
type Envelope struct {
	Type      string     `json:"type"`
	Challenge string     `json:"challenge"`
	Event     InnerEvent `json:"event"`
}

// InnerEvent covers the reaction_added and message shapes used for approvals.
type InnerEvent struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	User     string `json:"user"`
	BotID    string `json:"bot_id"`
	Reaction string `json:"reaction"`
	Item     struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
		TS      string `json:"ts"`
	} `json:"item"`
	Channel  string `json:"channel"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
	Text     string `json:"text"`
	EventTS  string `json:"event_ts"`
}

// ParseEvent decodes an Events API request body.
func ParseEvent(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return env, fmt.Errorf("decode slack event: %w", err)
	}
	return env, nil
}

// MessageRef returns the approval message the event refers to: the reacted
// item for reactions, the thread parent for replies. Empty when the event does
// not point at a message.
func (e InnerEvent) MessageRef() string {
	switch e.Type {
	case "reaction_added":
		if e.Item.Channel == "" || e.Item.TS == "" {
			return ""
		}
		return FormatMessageRef(e.Item.Channel, e.Item.TS)
	case "message":
		if e.ThreadTS == "" || e.ThreadTS == e.TS {
			return ""
		}
		return FormatMessageRef(e.Channel, e.ThreadTS)
	default:
		return ""
	}
}

// FromBot reports whether the event was produced by a bot, including our own
// thread replies.
func (e InnerEvent) FromBot() bool {
	return e.BotID != "" || strings.EqualFold(e.Subtype, "bot_message")
}

// maxSignatureAge bounds replayed Events API requests.
const maxSignatureAge = 5 * time.Minute

// ErrInvalidSignature reports a request whose Slack signature does not verify.
var ErrInvalidSignature = errors.New("invalid slack signature")

// VerifySignature checks the X-Slack-Signature header against the signing
// secret using the v0 scheme: HMAC-SHA256 over "v0:<timestamp>:<body>".
func VerifySignature(secret, timestamp, signature string, body []byte, now time.Time) error {
	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	if age := now.Sub(time.Unix(ts, 0)); age > maxSignatureAge || age < -maxSignatureAge {
		return fmt.Errorf("%w: stale timestamp", ErrInvalidSignature)
	}
	expected := Sign(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the v0 signature Slack would send for body.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:", strings.TrimSpace(timestamp))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}
