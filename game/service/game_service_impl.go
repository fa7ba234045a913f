package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/merge2048/game/agent"
	"github.com/wricardo/mcp-training/merge2048/game/autoplay"
	"github.com/wricardo/mcp-training/merge2048/game/engine"
)

// ErrInvalidInput is returned by HandleInput for unknown event types.
var ErrInvalidInput = errors.New("invalid input event")

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	mu       sync.Mutex
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	// Fallback: return as-is or "default"
	if configName == "" {
		return "default"
	}
	return configName
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Load configuration
	var config *engine.GameConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			// Provide helpful error message with available options
			if strings.Contains(err.Error(), "configuration not found") {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("config '%s' not found, available configs %v: %w", configName, configIDs, err)
				}
				return nil, fmt.Errorf("config '%s' not found, use /api/configs to list available configurations: %w", configName, err)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	// Let session manager generate a proper 4-character ID
	session, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Determine the config identifier to return - prefer the input configName if provided,
	// otherwise look up the config_id by display name
	configID := configName
	if configID == "" {
		configID = s.getConfigID(config.Name)
	}

	log.Info().Str("session", session.ID).Str("config", configID).Msg("session created")
	return s.sessionInfo(session, configID), nil
}

func (s *gameServiceImpl) sessionInfo(session *Session, configID string) *SessionInfo {
	state := session.Engine.GetState()
	status := session.Agent.Status()
	return &SessionInfo{
		ID:             session.ID,
		ConfigName:     configID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		GameState:      &state,
		GameConfig:     session.Config,
		Agent:          &status,
	}
}

// getSession looks up a session and marks it accessed
func (s *gameServiceImpl) getSession(sessionID string) (*Session, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return session, nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(session, s.getConfigID(session.Config.Name)), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))

	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess, s.getConfigID(sess.Config.Name)))
	}

	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions.Delete(sessionID)
}

// Move executes a single move for a session
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string) (*MoveResult, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	d, err := engine.ParseDirection(direction)
	if err != nil {
		return nil, err
	}

	res := sess.Engine.Move(d)
	state := sess.Engine.GetState()

	return &MoveResult{
		Success:    res.Moved,
		Direction:  d.String(),
		ScoreDelta: res.ScoreDelta,
		Merges:     res.Merges,
		Won:        res.Won,
		GameState:  &state,
		Message:    moveMessage(res, state),
	}, nil
}

func moveMessage(res engine.MoveResult, state engine.GameState) string {
	switch {
	case state.Status == engine.StatusOver:
		return fmt.Sprintf("Game over! Final score %d", state.Score)
	case state.Status == engine.StatusWonPending:
		return "You win! Continue playing or restart"
	case !res.Moved:
		return "Nothing moved"
	case res.ScoreDelta > 0:
		return fmt.Sprintf("Merged %d tiles for %d points", res.Merges, res.ScoreDelta)
	default:
		return "Moved"
	}
}

// Restart starts a new game. It is rejected while autoplay is running.
func (s *gameServiceImpl) Restart(ctx context.Context, sessionID string) (*engine.GameState, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	if !sess.Agent.WhileIdle(sess.Engine.Restart) {
		return nil, fmt.Errorf("%w: stop autoplay before restarting", ErrAgentActive)
	}
	state := sess.Engine.GetState()
	return &state, nil
}

// ContinuePlaying keeps the game going after reaching the win value
func (s *gameServiceImpl) ContinuePlaying(ctx context.Context, sessionID string) (*engine.GameState, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Engine.ContinuePlaying()
	state := sess.Engine.GetState()
	return &state, nil
}

// GetGameState returns the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	state := sess.Engine.GetState()
	return &state, nil
}

// SelectMode picks the agent mode for the session's autoplay
func (s *gameServiceImpl) SelectMode(ctx context.Context, sessionID, mode string) (*autoplay.Status, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	m, err := agent.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if err := sess.Agent.SelectMode(m); err != nil {
		return nil, err
	}

	status := sess.Agent.Status()
	return &status, nil
}

// ToggleAgent starts or stops autoplay. A non-nil delayMs changes the pacing
// first.
func (s *gameServiceImpl) ToggleAgent(ctx context.Context, sessionID string, delayMs *int) (*autoplay.Status, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	if delayMs != nil {
		if *delayMs < 0 {
			return nil, fmt.Errorf("%w: delay_ms must not be negative", ErrInvalidInput)
		}
		sess.Agent.SetDelay(time.Duration(*delayMs) * time.Millisecond)
	}

	running, err := sess.Agent.Toggle(ctx)
	if err != nil {
		return nil, err
	}
	log.Info().Str("session", sessionID).Bool("running", running).Msg("autoplay toggled")

	status := sess.Agent.Status()
	return &status, nil
}

// AgentStatus reports the session's autoplay state
func (s *gameServiceImpl) AgentStatus(ctx context.Context, sessionID string) (*autoplay.Status, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	status := sess.Agent.Status()
	return &status, nil
}

// HandleInput dispatches an abstract input event
func (s *gameServiceImpl) HandleInput(ctx context.Context, sessionID string, input InputEvent) (*InputResult, error) {
	result := &InputResult{Type: input.Type}

	switch input.Type {
	case InputMove:
		move, err := s.Move(ctx, sessionID, input.Direction)
		if err != nil {
			return nil, err
		}
		result.Move = move
		result.GameState = move.GameState
		return result, nil

	case InputRestart:
		state, err := s.Restart(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		result.GameState = state
		return result, nil

	case InputContinue:
		state, err := s.ContinuePlaying(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		result.GameState = state
		return result, nil

	case InputToggleAgent:
		status, err := s.ToggleAgent(ctx, sessionID, input.DelayMs)
		if err != nil {
			return nil, err
		}
		result.Agent = status

	case InputSelectMode:
		status, err := s.SelectMode(ctx, sessionID, input.Mode)
		if err != nil {
			return nil, err
		}
		result.Agent = status

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, input.Type)
	}

	state, err := s.GetGameState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	result.GameState = state
	return result, nil
}

// ListConfigs returns all available configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a configuration
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configName, config)
}
