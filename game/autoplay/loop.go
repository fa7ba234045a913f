package autoplay

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/merge2048/game/agent"
	"github.com/wricardo/mcp-training/merge2048/game/engine"
)

// run is the state owned by one play loop.
type run struct {
	id    string
	mode  agent.Mode
	agent agent.Agent
	stop  chan struct{}
	done  chan struct{}
}

// Reasons a run ends.
const (
	StopGameOver   = "game_over"
	StopNoMove     = "no_legal_move"
	StopCancelled  = "cancelled"
	StopAgentError = "agent_error"
	StopMoveLimit  = "move_limit"
	StopWon        = "won"
)

func (o *Orchestrator) loop(r run) {
	logger := o.logger.With().Str("run", r.id).Str("mode", string(r.mode)).Logger()
	logger.Info().Msg("autoplay started")

	reason := StopGameOver
	defer func() {
		o.mu.Lock()
		o.state = StateIdle
		o.cancel = false
		moves := o.moves
		ema := o.ema
		o.mu.Unlock()

		logger.Info().Str("reason", reason).Int("moves", moves).Float64("ema_ms", ema).Msg("autoplay stopped")
		o.emit(Event{Type: EventStopped, RunID: r.id, Mode: r.mode, Reason: reason, Moves: moves, EMAMs: ema})
		close(r.done)
	}()

	ctx := context.Background()
	for !o.game.IsOver() {
		if o.cancelRequested() {
			reason = StopCancelled
			return
		}

		start := time.Now()
		direction, err := r.agent.NextMove(ctx, o.game.BoardValues())
		if err != nil {
			logger.Error().Err(err).Msg("agent failed to pick a move")
			reason = StopAgentError
			return
		}
		if direction == engine.NoMove {
			o.mu.Lock()
			o.ema = 0
			o.mu.Unlock()
			reason = StopNoMove
			return
		}
		o.game.Move(direction)
		elapsed := time.Since(start)

		o.mu.Lock()
		sample := float64(elapsed) / float64(time.Millisecond)
		o.ema = emaWeight*sample + (1-emaWeight)*o.ema
		o.moves++
		cancelled := o.cancel
		moves := o.moves
		delay := o.delay
		o.mu.Unlock()

		if cancelled {
			reason = StopCancelled
			return
		}
		if o.cfg.MaxMoves > 0 && moves >= o.cfg.MaxMoves {
			reason = StopMoveLimit
			return
		}

		if o.cfg.StopOnWin && o.game.IsWonPending() {
			reason = StopWon
			return
		}
		if !o.waitWhileWonPending(r) {
			reason = StopCancelled
			return
		}

		if wait := delay - elapsed; wait > 0 {
			if !sleep(r.stop, wait) {
				reason = StopCancelled
				return
			}
		}
	}
}

func (o *Orchestrator) cancelRequested() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancel
}

// waitWhileWonPending blocks while the game waits for the player to decide
// whether to keep playing. It returns false if the run was cancelled.
func (o *Orchestrator) waitWhileWonPending(r run) bool {
	if !o.game.IsWonPending() {
		return true
	}

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()
	for o.game.IsWonPending() {
		select {
		case <-r.stop:
			return false
		case <-ticker.C:
		}
	}
	return true
}

// sleep waits for d and returns false if stop closes first.
func sleep(stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}
