package models

import (
	"fmt"
)

// JobStatus is the lifecycle state of a crawl job as reported by the backend.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusPartial   JobStatus = "partial"
	JobStatusCancelled JobStatus = "cancelled"
)

// AllJobStatuses lists every known status in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusPartial,
	JobStatusCancelled,
}

// Severity classifies a user-facing message.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Outcome is the notification a watcher emits when it observes a status.
type Outcome struct {
	Severity Severity
	Message  string
}

type statusInfo struct {
	known    bool
	terminal bool
	label    string
	color    string
	outcome  Outcome
}

// info is the single place that maps a status to its behaviour. Every status
// must have a case here.
func (s JobStatus) info() statusInfo {
	switch s {
	case JobStatusPending:
		return statusInfo{known: true, label: "Pending", color: "default"}
	case JobStatusRunning:
		return statusInfo{known: true, label: "Running", color: "processing"}
	case JobStatusCompleted:
		return statusInfo{known: true, terminal: true, label: "Completed", color: "success",
			outcome: Outcome{Severity: SeveritySuccess, Message: "Crawl completed successfully"}}
	case JobStatusFailed:
		return statusInfo{known: true, terminal: true, label: "Failed", color: "error",
			outcome: Outcome{Severity: SeverityError, Message: "Crawl job failed"}}
	case JobStatusPartial:
		return statusInfo{known: true, terminal: true, label: "Partial", color: "warning",
			outcome: Outcome{Severity: SeverityWarning, Message: "Crawl completed with partial results"}}
	case JobStatusCancelled:
		return statusInfo{known: true, terminal: true, label: "Cancelled", color: "default",
			outcome: Outcome{Severity: SeverityWarning, Message: "Crawl job was cancelled"}}
	}
	return statusInfo{label: string(s), color: "default"}
}

// Known reports whether s is one of the statuses this service understands.
func (s JobStatus) Known() bool { return s.info().known }

// IsTerminal reports whether no further transition is expected without a retry.
func (s JobStatus) IsTerminal() bool { return s.info().terminal }

// IsActive reports whether the job is still waiting or crawling.
func (s JobStatus) IsActive() bool { return s.info().known && !s.info().terminal }

// Retryable reports whether a retry may be requested for the status.
func (s JobStatus) Retryable() bool {
	return s == JobStatusFailed || s == JobStatusPartial
}

// Cancellable reports whether a cancel may be requested for the status.
func (s JobStatus) Cancellable() bool {
	return s.IsActive()
}

// Label is the display name of the status.
func (s JobStatus) Label() string { return s.info().label }

// Color is the tag color used by the console.
func (s JobStatus) Color() string { return s.info().color }

// Outcome returns the notification for a terminal status. ok is false for
// statuses that are observed silently.
func (s JobStatus) Outcome() (Outcome, bool) {
	info := s.info()
	if !info.terminal {
		return Outcome{}, false
	}
	return info.outcome, true
}

// ParseJobStatus validates a status coming from user input.
func ParseJobStatus(s string) (JobStatus, error) {
	status := JobStatus(s)
	if !status.Known() {
		return "", fmt.Errorf("unknown job status %q", s)
	}
	return status, nil
}

// JobStatusView is the JSON shape the console uses to render a status tag.
type JobStatusView struct {
	Value    JobStatus `json:"value"`
	Label    string    `json:"label"`
	Color    string    `json:"color"`
	Terminal bool      `json:"terminal"`
}

// View returns the display descriptor for s.
func (s JobStatus) View() JobStatusView {
	info := s.info()
	return JobStatusView{Value: s, Label: info.label, Color: info.color, Terminal: info.terminal}
}

// StatusOptions is the filter dropdown content.
func StatusOptions() []JobStatusView {
	out := make([]JobStatusView, 0, len(AllJobStatuses))
	for _, s := range AllJobStatuses {
		out = append(out, s.View())
	}
	return out
}
