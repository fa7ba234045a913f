package agent

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned by ParseMode for unrecognised mode names.
var ErrUnknownMode = errors.New("unknown agent mode")

// Mode selects the decision agent used by autoplay.
type Mode string

const (
	ModeDefault           Mode = "default"
	ModeRandom            Mode = "random"
	ModeHeuristicDeep     Mode = "heuristic-deep"
	ModeHeuristicSampling Mode = "heuristic-sampling"
	ModeLearned           Mode = "learned-model"
)

// Modes lists every mode in menu order.
var Modes = []Mode{ModeDefault, ModeRandom, ModeHeuristicDeep, ModeHeuristicSampling, ModeLearned}

var modeAliases = map[string]Mode{
	"":                   ModeDefault,
	"default":            ModeDefault,
	"none":               ModeDefault,
	"random":             ModeRandom,
	"random-item":        ModeRandom,
	"heuristic-deep":     ModeHeuristicDeep,
	"expectimax":         ModeHeuristicDeep,
	"expectimax-item":    ModeHeuristicDeep,
	"heuristic-sampling": ModeHeuristicSampling,
	"monte-carlo":        ModeHeuristicSampling,
	"monte-carlo-item":   ModeHeuristicSampling,
	"learned-model":      ModeLearned,
	"ntuple":             ModeLearned,
	"ntuple-item":        ModeLearned,
}

// ParseMode accepts a mode name or one of its menu aliases.
func ParseMode(s string) (Mode, error) {
	m, ok := modeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return ModeDefault, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// RequiresResource reports whether the mode needs the downloaded model.
func (m Mode) RequiresResource() bool {
	return m == ModeLearned
}

// Remote reports whether the mode is served by the external solver.
func (m Mode) Remote() bool {
	return m == ModeHeuristicDeep || m == ModeHeuristicSampling
}

// Description is a short human readable label.
func (m Mode) Description() string {
	switch m {
	case ModeDefault:
		return "autoplay disabled"
	case ModeRandom:
		return "uniformly random legal move"
	case ModeHeuristicDeep:
		return "expectimax search (remote solver)"
	case ModeHeuristicSampling:
		return "monte-carlo rollouts (remote solver)"
	case ModeLearned:
		return "n-tuple network, one-ply lookahead"
	}
	return string(m)
}
