package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/merge2048/game/engine"
)

var (
	// ErrModeUnavailable is returned when a mode cannot be served with the
	// current configuration, for example a heuristic mode without a solver.
	ErrModeUnavailable = errors.New("agent mode unavailable")
	// ErrNoAgent is returned for the default mode, which plays nothing.
	ErrNoAgent = errors.New("no agent for mode")
)

// Agent picks the next move for a board given as flattened log2 values
// (row-major by y, then x, 0 for empty cells). It returns engine.NoMove when
// no legal move exists.
type Agent interface {
	NextMove(ctx context.Context, board []int) (engine.Direction, error)
}

// Func adapts a function to the Agent interface.
type Func func(ctx context.Context, board []int) (engine.Direction, error)

// NextMove implements Agent.
func (f Func) NextMove(ctx context.Context, board []int) (engine.Direction, error) {
	return f(ctx, board)
}

// boardFromValues rebuilds a square board from flattened log2 values.
func boardFromValues(values []int) (*engine.Board, error) {
	size := int(math.Sqrt(float64(len(values))))
	if size*size != len(values) || size < engine.MinBoardSize {
		return nil, fmt.Errorf("board of %d cells is not square", len(values))
	}
	return engine.BoardFromLog2(size, values)
}

// RandomAgent picks uniformly among the moves that change the board.
type RandomAgent struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomAgent creates a random agent. A nil rng is seeded from the clock.
func NewRandomAgent(rng *rand.Rand) *RandomAgent {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomAgent{rng: rng}
}

// NextMove implements Agent.
func (a *RandomAgent) NextMove(_ context.Context, board []int) (engine.Direction, error) {
	b, err := boardFromValues(board)
	if err != nil {
		return engine.NoMove, err
	}
	moves := engine.LegalMoves(b)
	if len(moves) == 0 {
		return engine.NoMove, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return moves[a.rng.Intn(len(moves))], nil
}

// LearnedAgent performs a one-ply lookahead: every legal move is scored as
// the points it earns plus the model's estimate of the resulting board.
type LearnedAgent struct {
	model Evaluator
}

// Evaluator scores a board given as flattened log2 values.
type Evaluator interface {
	Estimate(board []int) float64
}

// NewLearnedAgent wraps an evaluator.
func NewLearnedAgent(model Evaluator) *LearnedAgent {
	return &LearnedAgent{model: model}
}

// NextMove implements Agent.
func (a *LearnedAgent) NextMove(_ context.Context, board []int) (engine.Direction, error) {
	b, err := boardFromValues(board)
	if err != nil {
		return engine.NoMove, err
	}

	best := engine.NoMove
	bestScore := math.Inf(-1)
	for _, d := range []engine.Direction{engine.Up, engine.Down, engine.Left, engine.Right} {
		after := b.Clone()
		result := engine.Resolve(after, d, math.MaxInt32)
		if !result.Moved {
			continue
		}
		score := float64(result.ScoreDelta) + a.model.Estimate(after.Log2Values())
		if score > bestScore {
			bestScore = score
			best = d
		}
	}
	return best, nil
}
