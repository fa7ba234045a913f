package engine

import (
	"fmt"
)

// GameConfig describes the rules of one game preset. Preset files are decoded
// into it by the config package.
type GameConfig struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Size            int            `json:"size"`
	WinValue        int            `json:"win_value"`
	StartTiles      int            `json:"start_tiles"`
	FourProbability float64        `json:"four_probability"`
	Agent           *AgentSettings `json:"agent,omitempty"`
}

// AgentSettings configures autoplay for sessions created from a preset.
type AgentSettings struct {
	DelayMs   int    `json:"delay_ms"`
	PollMs    int    `json:"poll_ms"`
	ModelURL  string `json:"model_url,omitempty"`
	SolverURL string `json:"solver_url,omitempty"`
}

// DefaultConfig returns the classic 4x4 game reaching 2048.
func DefaultConfig() *GameConfig {
	return &GameConfig{
		Name:            "classic",
		Description:     "Classic 4x4 board, join the numbers to reach 2048",
		Size:            DefaultBoardSize,
		WinValue:        DefaultWinValue,
		StartTiles:      DefaultStartTiles,
		FourProbability: DefaultFourChance,
		Agent:           DefaultAgentSettings(),
	}
}

// DefaultAgentSettings returns the autoplay defaults.
func DefaultAgentSettings() *AgentSettings {
	return &AgentSettings{DelayMs: DefaultDelayMs, PollMs: DefaultPollMs}
}

// ApplyDefaults fills the fields whose zero value cannot describe a game.
// FourProbability and Agent.DelayMs are kept as given since zero is a valid
// choice for both; a missing agent block gets all agent defaults.
func (c *GameConfig) ApplyDefaults() {
	if c.Size == 0 {
		c.Size = DefaultBoardSize
	}
	if c.WinValue == 0 {
		c.WinValue = DefaultWinValue
	}
	if c.StartTiles == 0 {
		c.StartTiles = DefaultStartTiles
	}
	if c.Agent == nil {
		c.Agent = DefaultAgentSettings()
	}
	if c.Agent.PollMs == 0 {
		c.Agent.PollMs = DefaultPollMs
	}
}

// ValidateGameConfig checks that a configuration describes a playable game.
// Defaults must already be applied.
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if config.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}

	if config.Size < MinBoardSize || config.Size > MaxBoardSize {
		return fmt.Errorf("%w: size must be between %d and %d, got %d",
			ErrInvalidConfig, MinBoardSize, MaxBoardSize, config.Size)
	}

	if config.WinValue < 8 || !isTileValue(config.WinValue) {
		return fmt.Errorf("%w: win_value must be a power of two >= 8, got %d", ErrInvalidConfig, config.WinValue)
	}

	cells := config.Size * config.Size
	if config.StartTiles < 1 || config.StartTiles > cells {
		return fmt.Errorf("%w: start_tiles must be between 1 and %d, got %d", ErrInvalidConfig, cells, config.StartTiles)
	}

	if config.FourProbability < 0 || config.FourProbability > 1 {
		return fmt.Errorf("%w: four_probability must be between 0 and 1, got %g", ErrInvalidConfig, config.FourProbability)
	}

	if a := config.Agent; a != nil {
		if a.DelayMs < 0 {
			return fmt.Errorf("%w: agent.delay_ms must not be negative, got %d", ErrInvalidConfig, a.DelayMs)
		}
		if a.PollMs < 0 {
			return fmt.Errorf("%w: agent.poll_ms must not be negative, got %d", ErrInvalidConfig, a.PollMs)
		}
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *GameConfig) Clone() *GameConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Agent != nil {
		agent := *c.Agent
		clone.Agent = &agent
	}
	return &clone
}
