package ipc

import (
	"contentfactory/internal/api"
	"contentfactory/internal/batch"
)

// ContentRequest starts a content pipeline run.
type ContentRequest struct {
	Workers      []string `json:"workers,omitempty"`
	TestMode     bool     `json:"test_mode"`
	SkipFailures bool     `json:"skip_failures"`
	TopicID      string   `json:"topic_id,omitempty"`
}

// PodcastRequest starts a podcast autopilot run.
type PodcastRequest struct {
	TestMode bool `json:"test_mode"`
}

// SEORequest starts an SEO optimizer run. Zero values use configured defaults.
type SEORequest struct {
	Limit    int  `json:"limit,omitempty"`
	MinScore int  `json:"min_score,omitempty"`
	TestMode bool `json:"test_mode"`
}

// HealerRequest starts a data healer sweep.
type HealerRequest struct {
	CheckAllRecords bool `json:"check_all_records"`
	AutoFix         bool `json:"auto_fix"`
	TestMode        bool `json:"test_mode"`
}

// BatchRequest processes the given topics concurrently.
type BatchRequest struct {
	Items []batch.Item `json:"items"`
}

// PendingRequest processes every pending topic.
type PendingRequest struct {
	TestMode bool `json:"test_mode"`
}

// DecisionRequest records an operator decision on an approval.
type DecisionRequest struct {
	Decision string `json:"decision"`
	UserID   string `json:"user_id,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// StatusResponse is the daemon status payload.
type StatusResponse = api.DaemonStatus

// AcceptedResponse acknowledges a background job.
type AcceptedResponse = api.Accepted

// ErrorResponse is the body of a non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
