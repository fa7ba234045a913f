package autoplay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/merge2048/game/agent"
	"github.com/wricardo/mcp-training/merge2048/game/engine"
	"github.com/wricardo/mcp-training/merge2048/game/model"
)

var (
	ErrRunning         = errors.New("autoplay is running")
	ErrNoMode          = errors.New("no agent mode selected")
	ErrNotReady        = model.ErrNotReady
	ErrModeUnavailable = agent.ErrModeUnavailable
)

// emaWeight is the weight of the newest latency sample.
const emaWeight = 0.05

// State is the orchestrator lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateCancelling State = "cancelling"
)

// Game is the part of a game session autoplay drives.
type Game interface {
	BoardValues() []int
	Move(direction engine.Direction) engine.MoveResult
	IsOver() bool
	IsWonPending() bool
}

// ResourceLoader provides the model for modes that need one.
type ResourceLoader interface {
	Prefetch()
	Acquire(ctx context.Context) (model.Evaluator, error)
	Ready() bool
	Progress() model.Progress
	OnProgress(fn model.ProgressFunc) (unsubscribe func())
}

// Config configures an Orchestrator.
type Config struct {
	Delay        time.Duration
	PollInterval time.Duration
	Factory      agent.Factory
	// Loader may be nil when no model URL is configured.
	Loader ResourceLoader
	// MaxMoves stops a run after that many moves; 0 means unlimited.
	MaxMoves int
	// StopOnWin ends a run when the win value is reached instead of waiting
	// for the player to continue.
	StopOnWin bool
}

// Status is a snapshot of the orchestrator.
type Status struct {
	State         State          `json:"state"`
	Mode          agent.Mode     `json:"mode"`
	EMAMs         float64        `json:"ema_ms"`
	Moves         int            `json:"moves"`
	RunID         string         `json:"run_id,omitempty"`
	DelayMs       int64          `json:"delay_ms"`
	ResourceReady bool           `json:"resource_ready"`
	Progress      model.Progress `json:"progress"`
}

// Orchestrator plays a game unattended through a pluggable agent. At most one
// play loop runs at a time; cancellation is cooperative and takes effect at
// the loop's next checkpoint.
type Orchestrator struct {
	game Game
	cfg  Config

	mu        sync.Mutex
	state     State
	mode      agent.Mode
	delay     time.Duration
	ema       float64
	moves     int
	runID     string
	cancel    bool
	stop      chan struct{}
	done      chan struct{}
	listeners []Listener
	detach    func()

	logger zerolog.Logger
}

// Listener receives orchestrator events.
type Listener func(Event)

// New creates an idle orchestrator for game.
func New(game Game, cfg Config) *Orchestrator {
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = engine.DefaultPollMs * time.Millisecond
	}
	if cfg.Factory == nil {
		cfg.Factory = agent.NewFactory(agent.FactoryConfig{})
	}

	o := &Orchestrator{
		game:   game,
		cfg:    cfg,
		state:  StateIdle,
		mode:   agent.ModeDefault,
		delay:  cfg.Delay,
		logger: log.With().Str("component", "autoplay").Logger(),
	}
	if cfg.Loader != nil {
		o.detach = cfg.Loader.OnProgress(func(received, total int64) {
			o.emit(Event{Type: EventProgress, Received: received, Total: total})
		})
	}
	return o
}

// Close stops listening to the model loader, which may be shared with other
// orchestrators. Call it once the game is discarded; a running loop is left
// alone.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	detach := o.detach
	o.detach = nil
	o.mu.Unlock()
	if detach != nil {
		detach()
	}
}

// OnEvent registers a listener for lifecycle and progress events. Listeners
// run on the orchestrator's goroutines and must not block.
func (o *Orchestrator) OnEvent(fn Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

func (o *Orchestrator) emit(ev Event) {
	o.mu.Lock()
	listeners := append([]Listener(nil), o.listeners...)
	o.mu.Unlock()

	ev.Time = time.Now()
	for _, fn := range listeners {
		fn(ev)
	}
}

// SelectMode changes the agent mode. It is rejected while a run is active.
// Selecting a mode that needs the model starts downloading it.
func (o *Orchestrator) SelectMode(mode agent.Mode) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return fmt.Errorf("%w: stop autoplay before switching to %s", ErrRunning, mode)
	}
	if mode != o.mode {
		o.mode = mode
		o.ema = 0
	}
	o.mu.Unlock()

	o.logger.Info().Str("mode", string(mode)).Msg("agent mode selected")
	if mode.RequiresResource() && o.cfg.Loader != nil {
		o.cfg.Loader.Prefetch()
	}
	return nil
}

// Mode returns the selected mode.
func (o *Orchestrator) Mode() agent.Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// SetDelay changes the pacing delay; a running loop picks it up on its next
// move.
func (o *Orchestrator) SetDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delay = d
}

// Running reports whether a play loop is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state != StateIdle
}

// WhileIdle runs fn only if no play loop is active, and keeps Activate from
// starting one until fn returns. It reports whether fn ran.
func (o *Orchestrator) WhileIdle(fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return false
	}
	fn()
	return true
}

// Activate starts the play loop for the selected mode and returns once it is
// running. It does nothing when a loop is already active.
func (o *Orchestrator) Activate(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil
	}
	mode := o.mode
	o.mu.Unlock()

	if mode == agent.ModeDefault {
		return ErrNoMode
	}

	var resource agent.Evaluator
	if mode.RequiresResource() {
		if o.cfg.Loader == nil {
			return fmt.Errorf("%w: no model URL configured", ErrModeUnavailable)
		}
		wasReady := o.cfg.Loader.Ready()
		m, err := o.cfg.Loader.Acquire(ctx)
		if err != nil {
			o.logger.Warn().Err(err).Str("mode", string(mode)).Msg("model not ready")
			return err
		}
		if !wasReady {
			o.emit(Event{Type: EventModelReady, Mode: mode})
		}
		resource = m
	}

	a, err := o.cfg.Factory(mode, resource)
	if errors.Is(err, agent.ErrNoAgent) {
		return ErrNoMode
	}
	if err != nil {
		return err
	}

	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil
	}
	if o.mode != mode {
		o.mu.Unlock()
		return fmt.Errorf("%w: mode changed to %s during activation", ErrNotReady, o.mode)
	}
	o.state = StateRunning
	o.cancel = false
	o.moves = 0
	o.runID = uuid.NewString()
	o.stop = make(chan struct{})
	o.done = make(chan struct{})
	r := run{id: o.runID, mode: mode, agent: a, stop: o.stop, done: o.done}
	o.mu.Unlock()

	o.emit(Event{Type: EventStarted, RunID: r.id, Mode: mode})
	go o.loop(r)
	return nil
}

// Cancel requests the running loop to stop and waits until it has, or until
// ctx ends. An in-flight agent call is not interrupted.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateIdle {
		o.mu.Unlock()
		return nil
	}
	if o.state == StateRunning {
		o.state = StateCancelling
		o.cancel = true
		close(o.stop)
	}
	done := o.done
	o.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Toggle cancels a running loop or activates an idle one. It reports whether
// autoplay is running afterwards.
func (o *Orchestrator) Toggle(ctx context.Context) (bool, error) {
	if o.Running() {
		return false, o.Cancel(ctx)
	}
	if err := o.Activate(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Done returns a channel closed when the current run ends. It is already
// closed when idle.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateIdle || o.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return o.done
}

// Status returns a snapshot of the orchestrator.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	s := Status{
		State:   o.state,
		Mode:    o.mode,
		EMAMs:   o.ema,
		Moves:   o.moves,
		RunID:   o.runID,
		DelayMs: o.delay.Milliseconds(),
	}
	o.mu.Unlock()

	if o.cfg.Loader != nil {
		s.ResourceReady = o.cfg.Loader.Ready()
		s.Progress = o.cfg.Loader.Progress()
	}
	return s
}
