package state

import (
	"sync"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
)

// ModelOverrides maps agent ids to the model they should use instead of the
// run-global one. It lives outside SessionState and survives run resets.
type ModelOverrides struct {
	mu     sync.RWMutex
	models map[string]domain.ModelRef
}

// NewModelOverrides returns an empty override map.
func NewModelOverrides() *ModelOverrides {
	return &ModelOverrides{models: make(map[string]domain.ModelRef)}
}

// Set assigns ref to agentID. A nil ref removes the override.
func (o *ModelOverrides) Set(agentID string, ref *domain.ModelRef) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ref == nil {
		delete(o.models, agentID)
		return
	}
	o.models[agentID] = *ref
}

// Get returns the override for agentID, or nil when the agent uses the
// run-global model.
func (o *ModelOverrides) Get(agentID string) *domain.ModelRef {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ref, ok := o.models[agentID]
	if !ok {
		return nil
	}
	return &ref
}

// All returns a copy of every override.
func (o *ModelOverrides) All() map[string]domain.ModelRef {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]domain.ModelRef, len(o.models))
	for id, ref := range o.models {
		out[id] = ref
	}
	return out
}

// AgentModels returns the request entries for the overridden agents among
// agentIDs, in agentIDs order.
func (o *ModelOverrides) AgentModels(agentIDs []string) []domain.AgentModelConfig {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []domain.AgentModelConfig
	for _, id := range agentIDs {
		ref, ok := o.models[id]
		if !ok {
			continue
		}
		out = append(out, domain.AgentModelConfig{
			AgentID:       id,
			ModelName:     ref.ModelName,
			ModelProvider: ref.Provider,
		})
	}
	return out
}
