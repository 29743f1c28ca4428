package domain

import "encoding/json"

// Event is one decoded backend event. The concrete type is one of
// StartEvent, ProgressEvent, CompleteEvent, ErrorEvent or UnknownEvent.
type Event interface {
	Type() EventType
}

// StartEvent marks the beginning of a new run.
type StartEvent struct{}

// ProgressEvent reports the state of a single agent.
type ProgressEvent struct {
	Agent     string  `json:"agent"`
	Status    string  `json:"status"`
	Ticker    *string `json:"ticker,omitempty"`
	Message   *string `json:"message,omitempty"`
	Analysis  *string `json:"analysis,omitempty"`
	Timestamp *string `json:"timestamp,omitempty"`
}

// CompleteEvent carries the final run output.
type CompleteEvent struct {
	Result *OutputPayload `json:"data,omitempty"`
	Status string         `json:"status,omitempty"`

	// SelectedAgents is bound by the session from its request, not read off
	// the wire.
	SelectedAgents []string `json:"-"`
}

// ErrorEvent signals that the run failed.
type ErrorEvent struct {
	Message string `json:"error,omitempty"`

	// Local is set when the event was synthesized by the client after a
	// transport failure instead of being sent by the backend.
	Local          bool     `json:"-"`
	SelectedAgents []string `json:"-"`
}

// UnknownEvent is an event type this client does not understand yet.
type UnknownEvent struct {
	Name string
	Data json.RawMessage
}

func (StartEvent) Type() EventType    { return EventTypeStart }
func (ProgressEvent) Type() EventType { return EventTypeProgress }
func (CompleteEvent) Type() EventType { return EventTypeComplete }
func (ErrorEvent) Type() EventType    { return EventTypeError }
func (e UnknownEvent) Type() EventType {
	return EventType(e.Name)
}

// OutputPayload is the aggregated result of a completed run. The inner
// documents are kept as raw JSON; their layout belongs to the display layer.
type OutputPayload struct {
	Decisions      json.RawMessage `json:"decisions,omitempty"`
	AnalystSignals json.RawMessage `json:"analyst_signals,omitempty"`
}
