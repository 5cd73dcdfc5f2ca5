package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/port"
)

var _ port.StateRepository = (*StateRepository)(nil)

type StateRepository struct {
	mu     sync.RWMutex
	states map[domain.ConnectionID]domain.NegotiationState
}

func NewStateRepository() *StateRepository {
	return &StateRepository{
		states: make(map[domain.ConnectionID]domain.NegotiationState),
	}
}

func (r *StateRepository) Save(ctx context.Context, state domain.NegotiationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.ConnectionID] = state
	return nil
}

func (r *StateRepository) Delete(ctx context.Context, id domain.ConnectionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, id)
	return nil
}

func (r *StateRepository) Get(ctx context.Context, id domain.ConnectionID) (domain.NegotiationState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[id]
	if !ok {
		return domain.NegotiationState{}, &domain.ConnectionError{ID: id, Op: "get_state", Err: domain.ErrNotFound}
	}
	return state, nil
}

// List returns every stored state ordered by connection id.
func (r *StateRepository) List(ctx context.Context) ([]domain.NegotiationState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.NegotiationState, 0, len(r.states))
	for _, state := range r.states {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out, nil
}
