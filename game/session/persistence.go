package session

import (
	"time"

	"github.com/wricardo/mcp-training/merge2048/game/engine"
	"github.com/wricardo/mcp-training/merge2048/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session's metadata, keeping its saved game
	Save(session *service.Session) error

	// Load retrieves a session's persisted data by ID
	Load(id string) (*PersistedSessionData, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool

	// ForSession returns the storage port the session's engine saves its
	// game through
	ForSession(id string) engine.Storage
}

// PersistedSessionData represents the JSON structure for persisted sessions.
// GameState is nil when the session has no game in progress.
type PersistedSessionData struct {
	ID             string                      `json:"id"`
	ConfigName     string                      `json:"config_name"`
	CreatedAt      time.Time                   `json:"created_at"`
	LastAccessedAt time.Time                   `json:"last_accessed_at"`
	Config         *engine.GameConfig          `json:"config,omitempty"`
	GameState      *engine.SerializedGameState `json:"game_state"`
}
