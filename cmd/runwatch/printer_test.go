package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
	"github.com/xiaot623/gogo/runwatch/internal/state"
)

func TestTransitionPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newTransitionPrinter(&buf)

	store := state.NewStore(state.WithClock(func() time.Time { return time.Unix(0, 0) }))
	unsubscribe := store.Subscribe(p.Observe)
	defer unsubscribe()

	ticker := "AAPL"
	store.Dispatch(domain.StartEvent{})
	store.Dispatch(domain.ProgressEvent{Agent: "warren_buffett_agent", Status: "Fetching", Ticker: &ticker})
	store.Dispatch(domain.ProgressEvent{Agent: "cathie_wood_agent", Status: "Fetching"})
	store.Dispatch(domain.ProgressEvent{Agent: "warren_buffett_agent", Status: "Done"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if assert.Len(t, lines, 3) {
		assert.Contains(t, lines[0], "warren_buffett")
		assert.Contains(t, lines[0], "IN_PROGRESS")
		assert.Contains(t, lines[0], "[AAPL] Fetching")
		assert.Contains(t, lines[1], "cathie_wood")
		assert.Contains(t, lines[2], "COMPLETE")
	}

	// A new generation reprints agents even when their line is unchanged.
	buf.Reset()
	store.Dispatch(domain.StartEvent{})
	store.Dispatch(domain.ProgressEvent{Agent: "cathie_wood_agent", Status: "Fetching"})
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestOutputPrinterOncePerGeneration(t *testing.T) {
	var buf bytes.Buffer
	p := &outputPrinter{w: &buf}

	store := state.NewStore()
	store.Dispatch(domain.StartEvent{})
	assert.NoError(t, p.Observe(store.Snapshot()))
	assert.Empty(t, buf.String(), "nothing to print before complete")

	store.Dispatch(domain.CompleteEvent{Result: &domain.OutputPayload{Decisions: []byte(`{"AAPL":{"action":"buy"}}`)}})
	assert.NoError(t, p.Observe(store.Snapshot()))
	printed := buf.String()
	assert.Contains(t, printed, `"AAPL"`)

	// Later snapshots of the same run leave the output alone.
	store.Dispatch(domain.ProgressEvent{Agent: "warren_buffett_agent", Status: "Done"})
	assert.NoError(t, p.Observe(store.Snapshot()))
	assert.NoError(t, p.Observe(store.Snapshot()))
	assert.Equal(t, printed, buf.String())

	store.Dispatch(domain.StartEvent{})
	store.Dispatch(domain.CompleteEvent{Result: &domain.OutputPayload{Decisions: []byte(`{"MSFT":{"action":"hold"}}`)}})
	assert.NoError(t, p.Observe(store.Snapshot()))
	assert.Contains(t, strings.TrimPrefix(buf.String(), printed), `"MSFT"`)
}

func TestTrimAll(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT"}, trimAll([]string{" AAPL", "", "MSFT ", "  "}))
	assert.Empty(t, trimAll(nil))
}

func TestNewLoggerLevels(t *testing.T) {
	ctx := context.Background()
	assert.True(t, newLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("warn").Enabled(ctx, slog.LevelInfo))
	assert.False(t, newLogger("bogus").Enabled(ctx, slog.LevelDebug))
}
