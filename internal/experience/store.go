package experience

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// #region errors

var (
	// ErrStoreUnavailable wraps any storage failure. Callers log it and carry on
	// as if the store were empty.
	ErrStoreUnavailable = errors.New("experience store unavailable")

	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("experience not found")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// #endregion errors

// #region store-interface

// Store persists scored chains for warm starts and inspection.
type Store interface {
	// LoadTop returns up to n experiences, highest reward first.
	LoadTop(ctx context.Context, n int) ([]state.Experience, error)
	// Save persists one experience. Saving an existing id replaces it.
	Save(ctx context.Context, exp state.Experience) error
	// Get returns one experience by id.
	Get(ctx context.Context, id string) (state.Experience, error)
	Close() error
}

// #endregion store-interface

// #region memory-store

// MemoryStore keeps experiences in process.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]state.Experience
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]state.Experience)}
}

// Save stores a deep copy of exp.
func (m *MemoryStore) Save(_ context.Context, exp state.Experience) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp.Chain = exp.Chain.Clone()
	m.byID[exp.ID] = exp
	return nil
}

// LoadTop returns copies, highest reward first, newest first on ties.
func (m *MemoryStore) LoadTop(_ context.Context, n int) ([]state.Experience, error) {
	m.mu.RLock()
	all := make([]state.Experience, 0, len(m.byID))
	for _, e := range m.byID {
		e.Chain = e.Chain.Clone()
		all = append(all, e)
	}
	m.mu.RUnlock()

	sortTop(all)
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all, nil
}

// Get returns a copy of one experience.
func (m *MemoryStore) Get(_ context.Context, id string) (state.Experience, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byID[id]
	if !ok {
		return state.Experience{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	e.Chain = e.Chain.Clone()
	return e, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func sortTop(exps []state.Experience) {
	sort.SliceStable(exps, func(i, j int) bool {
		if exps[i].Reward != exps[j].Reward {
			return exps[i].Reward > exps[j].Reward
		}
		return exps[i].CreatedAt.After(exps[j].CreatedAt)
	})
}

// #endregion memory-store
