package progress

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a work item within one stage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

var statusSet = map[Status]struct{}{
	StatusPending:    {},
	StatusInProgress: {},
	StatusDone:       {},
	StatusFailed:     {},
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Meta carries the measurable side facts recorded with a status transition.
type Meta struct {
	// Bytes is the size of the output written for the item.
	Bytes int64 `json:"bytes,omitempty"`
	// Score is the content-signal score observed for the item, e.g. the
	// target-script character ratio of a translated document.
	Score float64 `json:"score,omitempty"`
}

// Record is the durable per-item state within one stage.
type Record struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
	Meta
	UpdatedAt time.Time `json:"updated_at"`
}

// Cause explains why the previous run over a stage ended.
type Cause string

const (
	CauseCompleted Cause = "completed"
	CauseCanceled  Cause = "canceled"
	CauseFatal     Cause = "fatal"
	CauseDiskFull  Cause = "disk_full"
)

// RunState captures one pipeline invocation over a stage: where it stopped
// and why. It is reset when the operator deletes the stage state file.
type RunState struct {
	RunID     string    `json:"run_id,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Cursor    string    `json:"cursor,omitempty"`
	Cause     Cause     `json:"cause,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
