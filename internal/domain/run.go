package domain

import "encoding/json"

// Run describes a run started by this client.
type Run struct {
	RunID          string    `json:"run_id"`
	SessionID      string    `json:"session_id"`
	Tickers        []string  `json:"tickers"`
	SelectedAgents []string  `json:"selected_agents"`
	Status         RunStatus `json:"status"`
	StartedAt      int64     `json:"started_at"` // Unix milliseconds
	EndedAt        int64     `json:"ended_at,omitempty"`
}

// JournalEvent is one received event as recorded in the run journal.
type JournalEvent struct {
	EventID    string          `json:"event_id"`
	RunID      string          `json:"run_id"`
	Seq        int64           `json:"seq"`
	Generation uint64          `json:"generation"`
	Ts         int64           `json:"ts"` // Unix milliseconds
	Type       EventType       `json:"type"`
	Local      bool            `json:"local,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
