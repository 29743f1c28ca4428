package domain

import (
	"strings"
	"time"
)

// MessageItem is one entry in an agent's progress history.
type MessageItem struct {
	Timestamp string  `json:"timestamp"`
	Message   string  `json:"message"`
	Ticker    *string `json:"ticker,omitempty"`
	Analysis  *string `json:"analysis,omitempty"`
}

// AgentRecord is the client-side view of one agent in the current run.
type AgentRecord struct {
	ID          string        `json:"id"`
	Status      AgentStatus   `json:"status"`
	Ticker      *string       `json:"ticker,omitempty"`
	Message     string        `json:"message"`
	Analysis    *string       `json:"analysis,omitempty"`
	LastUpdated time.Time     `json:"last_updated"`
	History     []MessageItem `json:"history"`
}

// NewAgentRecord returns an idle record for id.
func NewAgentRecord(id string, now time.Time) AgentRecord {
	return AgentRecord{
		ID:          id,
		Status:      AgentStatusIdle,
		LastUpdated: now,
		History:     []MessageItem{},
	}
}

// Clone returns a copy that shares no mutable memory with r.
func (r AgentRecord) Clone() AgentRecord {
	out := r
	out.History = append([]MessageItem(nil), r.History...)
	if out.History == nil {
		out.History = []MessageItem{}
	}
	return out
}

// NormalizeAgentID strips the "_agent" suffix the backend appends to agent
// names in progress events so they line up with selected agent ids.
func NormalizeAgentID(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(name), "_agent")
}

// ModelRef identifies the model an agent should run with.
type ModelRef struct {
	ModelName   string `json:"model_name"`
	Provider    string `json:"provider"`
	DisplayName string `json:"display_name,omitempty"`
}
