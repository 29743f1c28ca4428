// Package state projects streamed run events onto per-agent state.
package state

import (
	"maps"
	"time"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
)

// SessionState is the projected state of the current run. Values are treated
// as immutable: Reduce always returns a new state and never writes through
// the one it was given.
type SessionState struct {
	Generation uint64
	Agents     map[string]domain.AgentRecord
	Output     *domain.OutputPayload
}

// NewSessionState returns the state of a process that has seen no run yet.
func NewSessionState() SessionState {
	return SessionState{Agents: map[string]domain.AgentRecord{}}
}

// Reduce applies ev to s at time now.
func Reduce(s SessionState, ev domain.Event, now time.Time) SessionState {
	switch ev := ev.(type) {
	case domain.StartEvent:
		return reduceStart(s)
	case domain.ProgressEvent:
		return reduceProgress(s, ev, now)
	case domain.CompleteEvent:
		return reduceComplete(s, ev, now)
	case domain.ErrorEvent:
		return reduceError(s, ev, now)
	default:
		return s
	}
}

// reduceStart opens a new generation. Every start counts, including one that
// directly follows another.
func reduceStart(s SessionState) SessionState {
	return SessionState{
		Generation: s.Generation + 1,
		Agents:     map[string]domain.AgentRecord{},
	}
}

func reduceProgress(s SessionState, ev domain.ProgressEvent, now time.Time) SessionState {
	id := domain.NormalizeAgentID(ev.Agent)
	if id == "" {
		return s
	}

	next := s.mutable()
	rec := next.record(id, now)
	rec.Status = domain.ParseAgentStatus(ev.Status)
	if ev.Ticker != nil {
		rec.Ticker = copyString(ev.Ticker)
	}
	if ev.Message != nil {
		rec.Message = *ev.Message
	}
	if ev.Analysis != nil {
		rec.Analysis = copyString(ev.Analysis)
	}
	rec.LastUpdated = now

	item := domain.MessageItem{
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Message:   ev.Status,
		Ticker:    copyString(rec.Ticker),
		Analysis:  copyString(rec.Analysis),
	}
	stamped := ev.Timestamp != nil && *ev.Timestamp != ""
	if stamped {
		item.Timestamp = *ev.Timestamp
	}
	if ev.Message != nil {
		item.Message = *ev.Message
	}
	// A redelivered event must not grow the history.
	if n := len(rec.History); n == 0 || !sameItem(rec.History[n-1], item, stamped) {
		rec.History = append(rec.History, item)
	}

	next.Agents[id] = rec
	return next
}

func reduceComplete(s SessionState, ev domain.CompleteEvent, now time.Time) SessionState {
	next := s.mutable()
	if ev.Result != nil && next.Output == nil {
		next.Output = clonePayload(ev.Result)
	}
	// The backend's completion is authoritative for every selected agent,
	// including ones whose own progress events never arrived.
	for _, raw := range ev.SelectedAgents {
		id := domain.NormalizeAgentID(raw)
		if id == "" {
			continue
		}
		rec := next.record(id, now)
		rec.Status = domain.AgentStatusComplete
		rec.LastUpdated = now
		next.Agents[id] = rec
	}
	return next
}

func reduceError(s SessionState, ev domain.ErrorEvent, now time.Time) SessionState {
	next := s.mutable()
	ids := make([]string, 0, len(next.Agents)+len(ev.SelectedAgents))
	for id := range next.Agents {
		ids = append(ids, id)
	}
	for _, raw := range ev.SelectedAgents {
		if id := domain.NormalizeAgentID(raw); id != "" {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		rec := next.record(id, now)
		rec.Status = domain.AgentStatusError
		rec.LastUpdated = now
		next.Agents[id] = rec
	}
	return next
}

// mutable returns a shallow copy of s whose agent map may be written.
func (s SessionState) mutable() SessionState {
	next := s
	next.Agents = maps.Clone(s.Agents)
	if next.Agents == nil {
		next.Agents = map[string]domain.AgentRecord{}
	}
	return next
}

// record returns a private copy of the record for id, creating it idle.
func (s SessionState) record(id string, now time.Time) domain.AgentRecord {
	if rec, ok := s.Agents[id]; ok {
		return rec.Clone()
	}
	return domain.NewAgentRecord(id, now)
}

func sameItem(a, b domain.MessageItem, stamped bool) bool {
	if stamped && a.Timestamp != b.Timestamp {
		return false
	}
	return a.Message == b.Message &&
		equalString(a.Ticker, b.Ticker) &&
		equalString(a.Analysis, b.Analysis)
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clonePayload(p *domain.OutputPayload) *domain.OutputPayload {
	return &domain.OutputPayload{
		Decisions:      append([]byte(nil), p.Decisions...),
		AnalystSignals: append([]byte(nil), p.AnalystSignals...),
	}
}
