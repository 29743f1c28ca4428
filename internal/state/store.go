package state

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
)

// Snapshot is a read-only copy of the store's state handed to collaborators.
type Snapshot struct {
	Generation uint64                        `json:"generation"`
	Agents     map[string]domain.AgentRecord `json:"agents"`
	Output     *domain.OutputPayload         `json:"output"`
}

// Observer is notified with the new snapshot after every dispatched event.
type Observer func(Snapshot)

// Store holds the projected state and serializes every write through Reduce.
// Observers run on the dispatching goroutine, in dispatch order, after the
// state lock has been released; they may read the store but must not
// dispatch into it.
type Store struct {
	writeMu sync.Mutex // serializes Dispatch, including observer fan-out

	mu    sync.RWMutex
	state SessionState

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObsID int

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state:     NewSessionState(),
		observers: make(map[int]Observer),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch reduces ev into the held state and notifies observers.
func (s *Store) Dispatch(ev domain.Event) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if p, ok := ev.(domain.ProgressEvent); ok && domain.NormalizeAgentID(p.Agent) == "" {
		slog.Debug("dropping progress event without agent", "status", p.Status)
		return
	}
	if _, ok := ev.(domain.UnknownEvent); ok {
		slog.Debug("ignoring unknown event", "type", ev.Type())
		return
	}

	s.mu.Lock()
	s.state = Reduce(s.state, ev, s.now())
	snap := snapshotOf(s.state)
	s.mu.Unlock()

	for _, obs := range s.observerList() {
		obs(snap)
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(s.state)
}

// Agent returns a copy of the record for id.
func (s *Store) Agent(id string) (domain.AgentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.Agents[id]
	if !ok {
		return domain.AgentRecord{}, false
	}
	return rec.Clone(), true
}

// Generation returns the current run generation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Generation
}

// Subscribe registers obs and returns a function that removes it.
func (s *Store) Subscribe(obs Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = obs
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) observerList() []Observer {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Observer, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.observers[id])
	}
	return out
}

func snapshotOf(st SessionState) Snapshot {
	agents := make(map[string]domain.AgentRecord, len(st.Agents))
	for id, rec := range st.Agents {
		agents[id] = rec.Clone()
	}
	snap := Snapshot{Generation: st.Generation, Agents: agents}
	if st.Output != nil {
		snap.Output = clonePayload(st.Output)
	}
	return snap
}
