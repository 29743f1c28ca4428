package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run := &domain.Run{
		RunID:          "run_1",
		SessionID:      "sess_1",
		Tickers:        []string{"AAPL", "MSFT"},
		SelectedAgents: []string{"warren_buffett"},
		Status:         domain.RunStatusRunning,
		StartedAt:      1000,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if err := store.UpdateRunCompleted(ctx, "run_1", domain.RunStatusDone, 2000); err != nil {
		t.Fatalf("UpdateRunCompleted failed: %v", err)
	}

	got, err := store.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil || got.Status != domain.RunStatusDone || got.EndedAt != 2000 {
		t.Fatalf("unexpected run: %+v", got)
	}
	if len(got.Tickers) != 2 || got.Tickers[1] != "MSFT" {
		t.Fatalf("unexpected tickers: %v", got.Tickers)
	}
	if len(got.SelectedAgents) != 1 || got.SelectedAgents[0] != "warren_buffett" {
		t.Fatalf("unexpected agents: %v", got.SelectedAgents)
	}
}

func TestSQLiteStoreMissingRun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	got, err := store.GetRun(ctx, "nope")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil run, got %+v", got)
	}

	err = store.UpdateRunCompleted(ctx, "nope", domain.RunStatusFailed, 1)
	if !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestSQLiteStoreListRuns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i, id := range []string{"run_a", "run_b", "run_c"} {
		run := &domain.Run{RunID: id, SessionID: "s", Status: domain.RunStatusRunning, StartedAt: int64(i)}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run_c" || runs[1].RunID != "run_b" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].Tickers == nil || len(runs[0].Tickers) != 0 {
		t.Fatalf("expected empty tickers, got %v", runs[0].Tickers)
	}
}

func TestSQLiteStoreEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateRun(ctx, &domain.Run{RunID: "r1", SessionID: "s1", Status: domain.RunStatusRunning}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	events := []domain.JournalEvent{
		{EventID: "evt_1", RunID: "r1", Seq: 1, Generation: 1, Ts: 10, Type: domain.EventTypeStart},
		{EventID: "evt_2", RunID: "r1", Seq: 2, Generation: 1, Ts: 10, Type: domain.EventTypeProgress,
			Payload: json.RawMessage(`{"agent":"a","status":"Done"}`)},
		{EventID: "evt_3", RunID: "r1", Seq: 3, Generation: 1, Ts: 11, Type: domain.EventTypeError, Local: true},
	}
	for i := range events {
		if err := store.AppendEvent(ctx, &events[i]); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	got, err := store.GetEvents(ctx, "r1", 0, 0)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if string(got[1].Payload) != `{"agent":"a","status":"Done"}` {
		t.Fatalf("unexpected payload: %s", got[1].Payload)
	}
	if got[0].Payload != nil {
		t.Fatalf("expected nil payload, got %s", got[0].Payload)
	}
	if !got[2].Local || got[2].Type != domain.EventTypeError {
		t.Fatalf("unexpected event: %+v", got[2])
	}

	tail, err := store.GetEvents(ctx, "r1", 1, 1)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(tail) != 1 || tail[0].Seq != 2 {
		t.Fatalf("unexpected tail: %+v", tail)
	}
}

func TestSQLiteStoreEventRequiresRun(t *testing.T) {
	store := newTestStore(t)

	err := store.AppendEvent(context.Background(), &domain.JournalEvent{EventID: "e", RunID: "ghost", Seq: 1, Type: domain.EventTypeStart})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}
