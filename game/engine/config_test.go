package engine

import (
	"errors"
	"strings"
	"testing"
)

func createValidConfig() *GameConfig {
	return &GameConfig{
		Name:            "Test Config",
		Description:     "A valid test configuration",
		Size:            4,
		WinValue:        2048,
		StartTiles:      2,
		FourProbability: 0.1,
		Agent:           &AgentSettings{DelayMs: 100, PollMs: 10},
	}
}

func TestValidateGameConfig_Valid(t *testing.T) {
	if err := ValidateGameConfig(createValidConfig()); err != nil {
		t.Errorf("Expected valid config to pass, got %v", err)
	}
	if err := ValidateGameConfig(DefaultConfig()); err != nil {
		t.Errorf("Expected default config to pass, got %v", err)
	}
}

func TestValidateGameConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*GameConfig)
		errSubstr string
	}{
		{"missing name", func(c *GameConfig) { c.Name = "" }, "name is required"},
		{"board too small", func(c *GameConfig) { c.Size = 1 }, "size must be between"},
		{"board too large", func(c *GameConfig) { c.Size = 9 }, "size must be between"},
		{"win value not a power of two", func(c *GameConfig) { c.WinValue = 1000 }, "win_value"},
		{"win value too small", func(c *GameConfig) { c.WinValue = 4 }, "win_value"},
		{"no start tiles", func(c *GameConfig) { c.StartTiles = 0 }, "start_tiles"},
		{"more start tiles than cells", func(c *GameConfig) { c.Size = 2; c.StartTiles = 5 }, "start_tiles"},
		{"negative four probability", func(c *GameConfig) { c.FourProbability = -0.5 }, "four_probability"},
		{"four probability above one", func(c *GameConfig) { c.FourProbability = 1.5 }, "four_probability"},
		{"negative delay", func(c *GameConfig) { c.Agent.DelayMs = -1 }, "delay_ms"},
		{"negative poll", func(c *GameConfig) { c.Agent.PollMs = -1 }, "poll_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := createValidConfig()
			tt.modify(config)

			err := ValidateGameConfig(config)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("Expected error containing %q, got %q", tt.errSubstr, err.Error())
			}
		})
	}
}

func TestValidateGameConfig_Nil(t *testing.T) {
	if err := ValidateGameConfig(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for nil config, got %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	config := &GameConfig{Name: "sparse"}
	config.ApplyDefaults()

	if config.Size != DefaultBoardSize {
		t.Errorf("Expected size %d, got %d", DefaultBoardSize, config.Size)
	}
	if config.WinValue != DefaultWinValue {
		t.Errorf("Expected win value %d, got %d", DefaultWinValue, config.WinValue)
	}
	if config.StartTiles != DefaultStartTiles {
		t.Errorf("Expected %d start tiles, got %d", DefaultStartTiles, config.StartTiles)
	}
	if config.Agent == nil || config.Agent.DelayMs != DefaultDelayMs || config.Agent.PollMs != DefaultPollMs {
		t.Errorf("Expected agent defaults, got %+v", config.Agent)
	}

	// Explicit values survive.
	custom := &GameConfig{Name: "custom", Size: 5, WinValue: 4096, Agent: &AgentSettings{DelayMs: 250}}
	custom.ApplyDefaults()
	if custom.Size != 5 || custom.WinValue != 4096 || custom.Agent.DelayMs != 250 {
		t.Errorf("Expected explicit values to be kept, got %+v", custom)
	}
	if custom.Agent.PollMs != DefaultPollMs {
		t.Errorf("Expected poll default %d, got %d", DefaultPollMs, custom.Agent.PollMs)
	}
}

func TestApplyDefaults_KeepsMeaningfulZeros(t *testing.T) {
	config := &GameConfig{Name: "fast", FourProbability: 0, Agent: &AgentSettings{DelayMs: 0, PollMs: 5}}
	config.ApplyDefaults()
	config.ApplyDefaults()

	if config.FourProbability != 0 {
		t.Errorf("Expected four probability 0 to be kept, got %g", config.FourProbability)
	}
	if config.Agent.DelayMs != 0 {
		t.Errorf("Expected delay 0 to be kept, got %d", config.Agent.DelayMs)
	}
	if err := ValidateGameConfig(config); err != nil {
		t.Errorf("Expected zero delay and four probability to be valid, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.FourProbability != DefaultFourChance {
		t.Errorf("Expected four probability %g, got %g", DefaultFourChance, config.FourProbability)
	}
	if config.Agent.DelayMs != DefaultDelayMs || config.Agent.PollMs != DefaultPollMs {
		t.Errorf("Expected agent defaults, got %+v", config.Agent)
	}
}

func TestGameConfigClone(t *testing.T) {
	original := DefaultConfig()
	clone := original.Clone()

	clone.Size = 5
	clone.Agent.DelayMs = 1

	if original.Size != DefaultBoardSize {
		t.Errorf("Expected original size %d, got %d", DefaultBoardSize, original.Size)
	}
	if original.Agent.DelayMs != DefaultDelayMs {
		t.Errorf("Expected original delay %d, got %d", DefaultDelayMs, original.Agent.DelayMs)
	}

	var nilConfig *GameConfig
	if nilConfig.Clone() != nil {
		t.Error("Expected clone of nil config to be nil")
	}
}
