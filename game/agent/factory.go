package agent

import (
	"fmt"
	"math/rand"
	"net/http"
)

// Factory builds the agent for a mode. resource is the built model for modes
// that require one and nil otherwise.
type Factory func(mode Mode, resource Evaluator) (Agent, error)

// FactoryConfig configures NewFactory.
type FactoryConfig struct {
	// SolverURL is the base URL of the external solver serving the heuristic
	// modes. Without it those modes are unavailable.
	SolverURL string
	Client    *http.Client
	Rand      *rand.Rand
}

// NewFactory returns the standard mode-to-agent mapping.
func NewFactory(cfg FactoryConfig) Factory {
	return func(mode Mode, resource Evaluator) (Agent, error) {
		switch mode {
		case ModeDefault:
			return nil, ErrNoAgent
		case ModeRandom:
			return NewRandomAgent(cfg.Rand), nil
		case ModeHeuristicDeep, ModeHeuristicSampling:
			if cfg.SolverURL == "" {
				return nil, fmt.Errorf("%w: %s needs a solver URL", ErrModeUnavailable, mode)
			}
			return NewRemoteAgent(cfg.SolverURL, mode, cfg.Client), nil
		case ModeLearned:
			if resource == nil {
				return nil, fmt.Errorf("%w: %s needs a loaded model", ErrModeUnavailable, mode)
			}
			return NewLearnedAgent(resource), nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
