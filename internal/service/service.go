// Package service ties the run client, the state store, the run journal and
// the admission policy together.
package service

import (
	"context"
	"sync"

	"github.com/xiaot623/gogo/runwatch/internal/adapter/runclient"
	"github.com/xiaot623/gogo/runwatch/internal/config"
	"github.com/xiaot623/gogo/runwatch/internal/domain"
	"github.com/xiaot623/gogo/runwatch/internal/policy"
	"github.com/xiaot623/gogo/runwatch/internal/state"
)

// Journal persists runs and the events received for them.
type Journal interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	UpdateRunCompleted(ctx context.Context, runID string, status domain.RunStatus, endedAt int64) error
	AppendEvent(ctx context.Context, event *domain.JournalEvent) error
	GetEvents(ctx context.Context, runID string, afterSeq int64, limit int) ([]domain.JournalEvent, error)
}

type Service struct {
	store        *state.Store
	output       *state.OutputAggregator
	overrides    *state.ModelOverrides
	client       *runclient.Client
	journal      Journal
	policyEngine *policy.Engine
	config       *config.Config

	mu     sync.Mutex
	active *activeRun
}

// New creates a Service. journal and policyEngine may be nil, which disables
// journaling and admission respectively.
func New(store *state.Store, overrides *state.ModelOverrides, client *runclient.Client, journal Journal, policyEngine *policy.Engine, cfg *config.Config) *Service {
	return &Service{
		store:        store,
		output:       state.NewOutputAggregator(store),
		overrides:    overrides,
		client:       client,
		journal:      journal,
		policyEngine: policyEngine,
		config:       cfg,
	}
}

// Snapshot returns a copy of the current agent state.
func (s *Service) Snapshot() state.Snapshot {
	return s.store.Snapshot()
}

// Agent returns the record of one agent.
func (s *Service) Agent(agentID string) (domain.AgentRecord, bool) {
	return s.store.Agent(domain.NormalizeAgentID(agentID))
}

// Output returns the current run's output once it is available.
func (s *Service) Output() (*domain.OutputPayload, bool) {
	return s.output.Output()
}

// Subscribe registers obs for every state change.
func (s *Service) Subscribe(obs state.Observer) (unsubscribe func()) {
	return s.store.Subscribe(obs)
}

// SetOverride pins agentID to ref for future runs. A nil ref clears it.
func (s *Service) SetOverride(agentID string, ref *domain.ModelRef) {
	s.overrides.Set(agentID, ref)
}

// GetOverride returns the model pinned for agentID, or nil.
func (s *Service) GetOverride(agentID string) *domain.ModelRef {
	return s.overrides.Get(agentID)
}

// Overrides returns every pinned model.
func (s *Service) Overrides() map[string]domain.ModelRef {
	return s.overrides.All()
}
