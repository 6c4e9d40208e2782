package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Run describes a pipeline run in a transport-friendly format.
type Run struct {
	ID               string          `json:"id"`
	TriggerType      string          `json:"triggerType"`
	PipelineType     string          `json:"pipelineType"`
	Status           string          `json:"status"`
	CurrentStage     string          `json:"currentStage,omitempty"`
	Order            []string        `json:"order"`
	Progress         RunProgress     `json:"progress"`
	StagesCompleted  []string        `json:"stagesCompleted"`
	StagesFailed     []string        `json:"stagesFailed"`
	PendingApproval  string          `json:"pendingApprovalId,omitempty"`
	RevisionCount    int             `json:"revisionCount"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	StartedAt        string          `json:"startedAt,omitempty"`
	UpdatedAt        string          `json:"updatedAt,omitempty"`
	CompletedAt      string          `json:"completedAt,omitempty"`
	Artifacts        json.RawMessage `json:"artifacts,omitempty"`
	Options          json.RawMessage `json:"options,omitempty"`
}

// RunProgress reports how far through its order a run has advanced.
type RunProgress struct {
	Cursor  int     `json:"cursor"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// LogEntry is one user-visible run log line.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Worker    string `json:"worker,omitempty"`
	Message   string `json:"message"`
}

// Approval describes an approval checkpoint.
type Approval struct {
	ID                string `json:"id"`
	RunID             string `json:"runId"`
	Type              string `json:"type"`
	Status            string `json:"status"`
	Worker            string `json:"worker"`
	RewindTo          string `json:"rewindTo,omitempty"`
	RelatedID         string `json:"relatedId,omitempty"`
	RelatedTitle      string `json:"relatedTitle,omitempty"`
	MessageRef        string `json:"messageRef,omitempty"`
	Decision          string `json:"decision,omitempty"`
	Feedback          string `json:"feedback,omitempty"`
	ResponseUserID    string `json:"responseUserId,omitempty"`
	ResponseTimestamp string `json:"responseTimestamp,omitempty"`
	CreatedAt         string `json:"createdAt,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running          bool           `json:"running"`
	PID              int            `json:"pid"`
	DatabasePath     string         `json:"databasePath"`
	LockFilePath     string         `json:"lockFilePath"`
	RunCounts        map[string]int `json:"runCounts"`
	PendingApprovals int            `json:"pendingApprovals"`
	LastSchedulerRun string         `json:"lastSchedulerRun,omitempty"`
	ActiveJobs       int            `json:"activeJobs"`
}

// RunListResponse wraps a collection of runs.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// RunDetail wraps a single run with its logs and approvals.
type RunDetail struct {
	Run       Run        `json:"run"`
	Logs      []LogEntry `json:"logs"`
	Approvals []Approval `json:"approvals"`
}

// ApprovalListResponse wraps a collection of approvals.
type ApprovalListResponse struct {
	Approvals []Approval `json:"approvals"`
}

// Accepted acknowledges a request that continues in the background.
type Accepted struct {
	Accepted bool   `json:"accepted"`
	Job      string `json:"job"`
}
