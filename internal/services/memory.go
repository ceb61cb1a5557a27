package services

import (
	"context"
	"sync"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
	"github.com/google/uuid"
)

// MemoryStore implements SessionStore with an in-process map. Used when no
// Redis URL is configured (single-process deployments and tests).
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*state.GameState
}

// Ensure MemoryStore implements SessionStore interface
var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*state.GameState),
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) SaveGameState(ctx context.Context, id uuid.UUID, gs *state.GameState) error {
	cp, err := gs.DeepCopy()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = cp
	return nil
}

func (m *MemoryStore) LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	m.mu.RLock()
	gs, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return gs.DeepCopy()
}

func (m *MemoryStore) DeleteGameState(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
