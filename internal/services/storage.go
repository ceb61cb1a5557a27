package services

import (
	"context"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
	"github.com/google/uuid"
)

// HealthChecker defines basic health check capabilities
type HealthChecker interface {
	// Ping tests the service connection
	Ping(ctx context.Context) error
}

// Closer defines cleanup capabilities
type Closer interface {
	// Close closes the service connection
	Close() error
}

// SessionStore holds gamestates between requests. Sessions are discardable;
// nothing here is long-term persistence.
type SessionStore interface {
	HealthChecker
	Closer

	// SaveGameState saves a gamestate under its session ID
	SaveGameState(ctx context.Context, id uuid.UUID, gs *state.GameState) error

	// LoadGameState retrieves a gamestate by session ID
	// Returns nil if the gamestate doesn't exist
	LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error)

	// DeleteGameState removes a gamestate by session ID
	DeleteGameState(ctx context.Context, id uuid.UUID) error
}
