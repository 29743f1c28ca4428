package state

import "github.com/xiaot623/gogo/runwatch/internal/domain"

// OutputAggregator is the read-only view of a run's final output. It never
// blocks: callers poll it, or subscribe to the store, and treat absence as
// "not yet available".
type OutputAggregator struct {
	store *Store
}

// NewOutputAggregator returns an aggregator reading from store.
func NewOutputAggregator(store *Store) *OutputAggregator {
	return &OutputAggregator{store: store}
}

// Output returns a copy of the current generation's output, if set.
func (a *OutputAggregator) Output() (*domain.OutputPayload, bool) {
	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	if a.store.state.Output == nil {
		return nil, false
	}
	return clonePayload(a.store.state.Output), true
}

// Ready reports whether the output is available.
func (a *OutputAggregator) Ready() bool {
	_, ok := a.Output()
	return ok
}
