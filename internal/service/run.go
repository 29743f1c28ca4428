package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/runwatch/internal/adapter/runclient"
	"github.com/xiaot623/gogo/runwatch/internal/domain"
)

// RejectionError is returned by StartRun when the admission policy blocks
// the request.
type RejectionError struct {
	Reasons []string
}

func (e *RejectionError) Error() string {
	if len(e.Reasons) == 0 {
		return domain.ErrRunRejected.Error()
	}
	return fmt.Sprintf("%s: %s", domain.ErrRunRejected, strings.Join(e.Reasons, "; "))
}

func (e *RejectionError) Unwrap() error { return domain.ErrRunRejected }

// activeRun is the bookkeeping for one started run.
type activeRun struct {
	session *runclient.Session
	ready   chan struct{} // closed once the run is journaled
	done    chan struct{} // closed once the final status is recorded

	// received is only touched on the session goroutine.
	received bool

	mu      sync.Mutex
	run     domain.Run
	outcome domain.RunStatus
	seq     int64
}

func (a *activeRun) snapshot() domain.Run {
	a.mu.Lock()
	defer a.mu.Unlock()
	run := a.run
	run.Tickers = slices.Clone(run.Tickers)
	run.SelectedAgents = slices.Clone(run.SelectedAgents)
	return run
}

func (a *activeRun) finished() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// StartRun admits req, stops the run in flight and streams a new one into
// the store. The agent state is reset before the first event arrives.
func (s *Service) StartRun(ctx context.Context, req domain.RunRequest) (*domain.Run, error) {
	req = s.prepare(req)

	if s.policyEngine != nil {
		decision, err := s.policyEngine.Evaluate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate admission policy: %w", err)
		}
		if !decision.Allowed() {
			return nil, &RejectionError{Reasons: decision.Reasons}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.active; prev != nil && !prev.finished() {
		slog.Info("cancelling previous run", "run_id", prev.snapshot().RunID)
		prev.session.Cancel()
		<-prev.session.Done()
	}

	// The backend does not always announce a run, so open the new
	// generation locally. A start event leading the stream is then absorbed
	// by handleEvent.
	s.store.Dispatch(domain.StartEvent{})

	ar := &activeRun{
		ready: make(chan struct{}),
		done:  make(chan struct{}),
		run: domain.Run{
			RunID:          "run_" + uuid.New().String()[:8],
			Tickers:        slices.Clone(req.Tickers),
			SelectedAgents: slices.Clone(req.SelectedAgents),
			Status:         domain.RunStatusRunning,
			StartedAt:      time.Now().UnixMilli(),
		},
	}
	// Events are held back by ready until the run row exists.
	ar.session = s.client.Start(context.Background(), req, func(ev domain.Event) {
		<-ar.ready
		s.handleEvent(ar, ev)
	})
	ar.run.SessionID = ar.session.ID

	if s.journal != nil {
		run := ar.snapshot()
		if err := s.journal.CreateRun(ctx, &run); err != nil {
			slog.Error("failed to journal run", "run_id", run.RunID, "error", err)
		}
	}
	s.recordEvent(ar, domain.StartEvent{}, true)
	close(ar.ready)

	go s.awaitRun(ar)
	s.active = ar

	run := ar.snapshot()
	slog.Info("run started", "run_id", run.RunID, "session_id", run.SessionID,
		"tickers", run.Tickers, "agents", run.SelectedAgents)
	return &run, nil
}

// prepare fills run defaults and the per-agent model overrides.
func (s *Service) prepare(req domain.RunRequest) domain.RunRequest {
	req.Tickers = slices.Clone(req.Tickers)
	req.SelectedAgents = slices.Clone(req.SelectedAgents)

	if s.config != nil {
		if req.ModelName == "" {
			req.ModelName = s.config.DefaultModelName
		}
		if req.ModelProvider == "" {
			req.ModelProvider = s.config.DefaultModelProvider
		}
		if req.InitialCash == nil {
			cash := s.config.InitialCash
			req.InitialCash = &cash
		}
		if req.MarginRequirement == nil {
			margin := s.config.MarginRequirement
			req.MarginRequirement = &margin
		}
		if req.ShowReasoning == nil {
			show := s.config.ShowReasoning
			req.ShowReasoning = &show
		}
	}

	// Explicit per-agent models win over stored overrides.
	models := slices.Clone(req.AgentModels)
	for _, m := range s.overrides.AgentModels(req.SelectedAgents) {
		if !slices.ContainsFunc(models, func(c domain.AgentModelConfig) bool { return c.AgentID == m.AgentID }) {
			models = append(models, m)
		}
	}
	req.AgentModels = models
	return req
}

// handleEvent runs on the session goroutine for every received event. A
// start event that leads the stream announces the generation StartRun
// already opened, so it is journaled but not dispatched.
func (s *Service) handleEvent(ar *activeRun, ev domain.Event) {
	first := !ar.received
	ar.received = true
	if _, ok := ev.(domain.StartEvent); !ok || !first {
		s.store.Dispatch(ev)
	}

	local := false
	switch e := ev.(type) {
	case domain.CompleteEvent:
		ar.setOutcome(domain.RunStatusDone)
	case domain.ErrorEvent:
		local = e.Local
		ar.setOutcome(domain.RunStatusFailed)
	}
	s.recordEvent(ar, ev, local)
}

func (a *activeRun) setOutcome(status domain.RunStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.outcome == "" {
		a.outcome = status
	}
}

// awaitRun records the final status once the session has stopped.
func (s *Service) awaitRun(ar *activeRun) {
	<-ar.session.Done()

	ar.mu.Lock()
	status := ar.outcome
	switch {
	case status != "":
	case ar.session.Cancelled():
		status = domain.RunStatusCancelled
	case ar.session.Err() != nil:
		status = domain.RunStatusFailed
	default:
		// Stream ended without a complete event.
		status = domain.RunStatusDone
	}
	ar.run.Status = status
	ar.run.EndedAt = time.Now().UnixMilli()
	run := ar.run
	ar.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.UpdateRunCompleted(context.Background(), run.RunID, run.Status, run.EndedAt); err != nil {
			slog.Error("failed to update run status", "run_id", run.RunID, "error", err)
		}
	}
	slog.Info("run finished", "run_id", run.RunID, "status", run.Status)
	close(ar.done)
}

// CancelRun stops the run in flight and waits for its final status. The
// agent state is left as it was.
func (s *Service) CancelRun(ctx context.Context) (*domain.Run, error) {
	s.mu.Lock()
	ar := s.active
	s.mu.Unlock()

	if ar == nil || ar.finished() {
		return nil, domain.ErrNoActiveRun
	}
	ar.session.Cancel()

	select {
	case <-ar.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	run := ar.snapshot()
	return &run, nil
}

// ActiveRun returns the run in flight, if any.
func (s *Service) ActiveRun() (*domain.Run, bool) {
	s.mu.Lock()
	ar := s.active
	s.mu.Unlock()

	if ar == nil || ar.finished() {
		return nil, false
	}
	run := ar.snapshot()
	return &run, true
}

// LastRun returns the most recently started run, finished or not.
func (s *Service) LastRun() (*domain.Run, bool) {
	s.mu.Lock()
	ar := s.active
	s.mu.Unlock()

	if ar == nil {
		return nil, false
	}
	run := ar.snapshot()
	return &run, true
}

// Wait blocks until the current run has finished or ctx is done.
func (s *Service) Wait(ctx context.Context) (*domain.Run, error) {
	s.mu.Lock()
	ar := s.active
	s.mu.Unlock()

	if ar == nil {
		return nil, domain.ErrNoActiveRun
	}
	select {
	case <-ar.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	run := ar.snapshot()
	return &run, nil
}
