package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/mcp-training/merge2048/game/autoplay"
	"github.com/wricardo/mcp-training/merge2048/game/engine"
)

// ErrAgentActive is returned for operations that are refused while autoplay
// drives the session.
var ErrAgentActive = errors.New("autoplay is active")

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	Move(ctx context.Context, sessionID, direction string) (*MoveResult, error)
	Restart(ctx context.Context, sessionID string) (*engine.GameState, error)
	ContinuePlaying(ctx context.Context, sessionID string) (*engine.GameState, error)
	HandleInput(ctx context.Context, sessionID string, input InputEvent) (*InputResult, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)

	// Autoplay
	SelectMode(ctx context.Context, sessionID, mode string) (*autoplay.Status, error)
	ToggleAgent(ctx context.Context, sessionID string, delayMs *int) (*autoplay.Status, error)
	AgentStatus(ctx context.Context, sessionID string) (*autoplay.Status, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.GameConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, config *engine.GameConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles game configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}

// Session represents an active game session
type Session struct {
	ID             string
	Engine         *engine.GameEngine
	Agent          *autoplay.Orchestrator
	Config         *engine.GameConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
