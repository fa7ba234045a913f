package service

import (
	"time"

	"github.com/wricardo/mcp-training/merge2048/game/autoplay"
	"github.com/wricardo/mcp-training/merge2048/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameState      *engine.GameState  `json:"game_state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
	Agent          *autoplay.Status   `json:"agent,omitempty"`
}

// MoveResult contains the result of a move operation
type MoveResult struct {
	Success    bool              `json:"success"`
	Direction  string            `json:"direction"`
	ScoreDelta int               `json:"score_delta"`
	Merges     int               `json:"merges"`
	Won        bool              `json:"won"`
	GameState  *engine.GameState `json:"game_state"`
	Message    string            `json:"message"`
}

// InputType names an abstract input event.
type InputType string

const (
	InputMove        InputType = "move"
	InputRestart     InputType = "restart"
	InputContinue    InputType = "continue"
	InputToggleAgent InputType = "toggle_agent"
	InputSelectMode  InputType = "select_mode"
)

// InputEvent is an abstract player action. Direction is used by move events,
// Mode by select_mode events and DelayMs optionally by toggle_agent events.
type InputEvent struct {
	Type      InputType `json:"type"`
	Direction string    `json:"direction,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	DelayMs   *int      `json:"delay_ms,omitempty"`
}

// InputResult is the outcome of HandleInput.
type InputResult struct {
	Type      InputType         `json:"type"`
	Move      *MoveResult       `json:"move,omitempty"`
	GameState *engine.GameState `json:"game_state"`
	Agent     *autoplay.Status  `json:"agent,omitempty"`
}

// ConfigInfo provides information about a game configuration
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	Size        int    `json:"size"`
	WinValue    int    `json:"win_value"`
}
