package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
)

// recordEvent appends ev to the journal under the run's next sequence number.
// Journal failures are logged; they never interrupt the stream.
func (s *Service) recordEvent(ar *activeRun, ev domain.Event, local bool) {
	if s.journal == nil {
		return
	}

	payload, err := eventPayload(ev)
	if err != nil {
		slog.Warn("failed to marshal event payload", "type", ev.Type(), "error", err)
	}

	ar.mu.Lock()
	ar.seq++
	seq := ar.seq
	runID := ar.run.RunID
	ar.mu.Unlock()

	event := &domain.JournalEvent{
		EventID:    "evt_" + uuid.New().String()[:8],
		RunID:      runID,
		Seq:        seq,
		Generation: s.store.Generation(),
		Ts:         time.Now().UnixMilli(),
		Type:       ev.Type(),
		Local:      local,
		Payload:    payload,
	}
	if err := s.journal.AppendEvent(context.Background(), event); err != nil {
		slog.Error("failed to record event", "run_id", runID, "type", event.Type, "error", err)
	}
}

func eventPayload(ev domain.Event) (json.RawMessage, error) {
	switch e := ev.(type) {
	case domain.StartEvent:
		return nil, nil
	case domain.UnknownEvent:
		return e.Data, nil
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", ev.Type(), err)
	}
	return b, nil
}

// RunEvents returns the journaled events of runID in arrival order.
func (s *Service) RunEvents(ctx context.Context, runID string, afterSeq int64, limit int) ([]domain.JournalEvent, error) {
	if s.journal == nil {
		return nil, domain.ErrRunNotFound
	}
	run, err := s.journal.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, domain.ErrRunNotFound
	}
	events, err := s.journal.GetEvents(ctx, runID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}

// Runs lists journaled runs, most recent first.
func (s *Service) Runs(ctx context.Context, limit int) ([]domain.Run, error) {
	if s.journal == nil {
		return nil, nil
	}
	runs, err := s.journal.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
