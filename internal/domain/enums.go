// Package domain defines the core domain models for runwatch.
package domain

import "strings"

// AgentStatus represents the status of one agent within a run.
type AgentStatus string

const (
	AgentStatusIdle       AgentStatus = "IDLE"
	AgentStatusInProgress AgentStatus = "IN_PROGRESS"
	AgentStatusComplete   AgentStatus = "COMPLETE"
	AgentStatusError      AgentStatus = "ERROR"
)

// ParseAgentStatus maps the free-text status a backend agent reports onto an
// AgentStatus. Unrecognized text means the agent is still working.
func ParseAgentStatus(s string) AgentStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "done", "completed":
		return AgentStatusComplete
	case "error", "failed":
		return AgentStatusError
	case "idle":
		return AgentStatusIdle
	default:
		return AgentStatusInProgress
	}
}

// EventType represents the type of a streamed backend event.
type EventType string

const (
	EventTypeStart    EventType = "start"
	EventTypeProgress EventType = "progress"
	EventTypeComplete EventType = "complete"
	EventTypeError    EventType = "error"
)

// RunStatus represents the journaled status of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusDone      RunStatus = "DONE"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal reports whether no further events are expected for the run.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusDone, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}
