package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Renderer receives the board and metadata after every state change. It is
// called with the engine lock held, so it observes the exact post-mutation
// state and must not call back into the engine or retain the board.
type Renderer interface {
	Render(board *Board, meta Metadata)
}

// MessageClearer is implemented by renderers that show a terminal message
// (win or game over) which must be dismissed on restart.
type MessageClearer interface {
	ClearMessage()
}

// Storage persists the serialized game and the best score.
type Storage interface {
	// Load returns the saved game, or nil when there is none.
	Load() (*SerializedGameState, error)
	Save(state *SerializedGameState) error
	Clear() error
	BestScore() (int, error)
	SetBestScore(score int) error
}

// Engine provides the main interface for game operations
type Engine interface {
	Setup()
	Move(direction Direction) MoveResult
	Restart()
	ContinuePlaying()

	IsTerminated() bool
	IsOver() bool
	IsWonPending() bool

	BoardValues() []int
	Serialize() *SerializedGameState
	GetState() GameState
	GetConfig() *GameConfig
}

// GameEngine implements the Engine interface
type GameEngine struct {
	mu sync.Mutex

	config      *GameConfig
	board       *Board
	score       int
	bestScore   int
	over        bool
	won         bool
	keepPlaying bool
	totalMoves  int

	storage  Storage
	renderer Renderer
	rng      *rand.Rand
}

// Option customizes a GameEngine.
type Option func(*GameEngine)

// WithStorage sets the persistence adapter.
func WithStorage(s Storage) Option {
	return func(e *GameEngine) { e.storage = s }
}

// WithRenderer sets the render sink.
func WithRenderer(r Renderer) Option {
	return func(e *GameEngine) { e.renderer = r }
}

// WithRand sets the random source used for tile spawning.
func WithRand(rng *rand.Rand) Option {
	return func(e *GameEngine) { e.rng = rng }
}

// NewEngine creates a new game engine with the provided configuration. The
// board is empty until Setup is called.
func NewEngine(config *GameConfig, opts ...Option) (*GameEngine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	e := &GameEngine{
		config:   config,
		board:    NewBoard(config.Size),
		storage:  nopStorage{},
		renderer: nopRenderer{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e, nil
}

// SetRenderer replaces the render sink.
func (e *GameEngine) SetRenderer(r Renderer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r == nil {
		r = nopRenderer{}
	}
	e.renderer = r
}

// Setup restores the saved game if the storage has one, otherwise starts a
// fresh board with the configured number of random tiles.
func (e *GameEngine) Setup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setup()
}

func (e *GameEngine) setup() {
	if best, err := e.storage.BestScore(); err != nil {
		log.Warn().Err(err).Msg("failed to load best score")
	} else {
		e.bestScore = best
	}

	if e.restore() {
		e.actuate()
		return
	}

	e.board = NewBoard(e.config.Size)
	e.score = 0
	e.over = false
	e.won = false
	e.keepPlaying = false
	e.addStartTiles()
	e.actuate()
}

func (e *GameEngine) restore() bool {
	saved, err := e.storage.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load saved game, starting fresh")
		return false
	}
	if saved == nil {
		return false
	}
	if saved.Grid.Size != e.config.Size {
		log.Warn().Int("saved_size", saved.Grid.Size).Int("size", e.config.Size).
			Msg("saved game does not match board size, starting fresh")
		return false
	}
	board, err := BoardFromSerialized(saved.Grid)
	if err != nil {
		log.Warn().Err(err).Msg("saved game is corrupt, starting fresh")
		return false
	}

	e.board = board
	e.score = saved.Score
	e.over = saved.Over
	e.won = saved.Won
	e.keepPlaying = saved.KeepPlaying
	return true
}

func (e *GameEngine) addStartTiles() {
	for i := 0; i < e.config.StartTiles; i++ {
		e.addRandomTile()
	}
}

// addRandomTile places a 2 (or a 4 with the configured probability) on a
// random empty cell. A full board is left unchanged.
func (e *GameEngine) addRandomTile() {
	pos, ok := e.board.RandomAvailableCell(e.rng)
	if !ok {
		return
	}
	value := 2
	if e.rng.Float64() < e.config.FourProbability {
		value = 4
	}
	e.board.InsertTile(NewTile(pos, value))
}

// Move resolves one move. Moves on a terminated game, invalid directions and
// moves that change nothing return a zero MoveResult without side effects.
func (e *GameEngine) Move(direction Direction) MoveResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isTerminated() || !direction.Valid() {
		return MoveResult{}
	}

	result := Resolve(e.board, direction, e.config.WinValue)
	if !result.Moved {
		return MoveResult{}
	}

	e.score += result.ScoreDelta
	if result.Won {
		e.won = true
	}
	e.totalMoves++

	e.addRandomTile()
	if !MovesAvailable(e.board) {
		e.over = true
	}

	e.actuate()
	return result
}

// Restart clears the saved game and starts over.
func (e *GameEngine) Restart() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.storage.Clear(); err != nil {
		log.Warn().Err(err).Msg("failed to clear saved game")
	}
	if mc, ok := e.renderer.(MessageClearer); ok {
		mc.ClearMessage()
	}
	e.setup()
}

// ContinuePlaying lets the player keep going after reaching the win value.
func (e *GameEngine) ContinuePlaying() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.keepPlaying = true
	if mc, ok := e.renderer.(MessageClearer); ok {
		mc.ClearMessage()
	}
	e.actuate()
}

// actuate updates the best score, persists the game and renders it. The
// caller holds e.mu.
func (e *GameEngine) actuate() {
	if e.score > e.bestScore {
		e.bestScore = e.score
		if err := e.storage.SetBestScore(e.score); err != nil {
			log.Warn().Err(err).Int("best_score", e.score).Msg("failed to save best score")
		}
	}

	if e.over {
		if err := e.storage.Clear(); err != nil {
			log.Warn().Err(err).Msg("failed to clear finished game")
		}
	} else {
		if err := e.storage.Save(e.serialize()); err != nil {
			log.Warn().Err(err).Msg("failed to save game")
		}
	}

	e.renderer.Render(e.board, Metadata{
		Score:      e.score,
		Over:       e.over,
		Won:        e.won,
		BestScore:  e.bestScore,
		Terminated: e.isTerminated(),
	})
}

func (e *GameEngine) isTerminated() bool {
	return e.over || (e.won && !e.keepPlaying)
}

// IsTerminated reports whether the game accepts no further moves until the
// player restarts or continues.
func (e *GameEngine) IsTerminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isTerminated()
}

// IsOver reports whether no move can change the board.
func (e *GameEngine) IsOver() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.over
}

// IsWonPending reports whether the win value was reached and the player has
// not chosen to continue.
func (e *GameEngine) IsWonPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.won && !e.keepPlaying && !e.over
}

// BoardValues returns the board as flattened log2 values for agents.
func (e *GameEngine) BoardValues() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.board.Log2Values()
}

// Serialize returns the persisted form of the game.
func (e *GameEngine) Serialize() *SerializedGameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.serialize()
}

func (e *GameEngine) serialize() *SerializedGameState {
	return &SerializedGameState{
		Grid:        e.board.Serialize(),
		Score:       e.score,
		Over:        e.over,
		Won:         e.won,
		KeepPlaying: e.keepPlaying,
	}
}

// GetState returns a snapshot of the game.
func (e *GameEngine) GetState() GameState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return GameState{
		Grid:        e.board.Serialize(),
		Score:       e.score,
		BestScore:   e.bestScore,
		Over:        e.over,
		Won:         e.won,
		KeepPlaying: e.keepPlaying,
		Terminated:  e.isTerminated(),
		Status:      StatusOf(e.over, e.won, e.keepPlaying),
		MaxTile:     e.board.MaxTile(),
		TotalMoves:  e.totalMoves,
		Board:       e.board.Log2Values(),
	}
}

// GetConfig returns the current game configuration
func (e *GameEngine) GetConfig() *GameConfig {
	return e.config
}

type nopRenderer struct{}

func (nopRenderer) Render(*Board, Metadata) {}

type nopStorage struct{}

func (nopStorage) Load() (*SerializedGameState, error) { return nil, nil }
func (nopStorage) Save(*SerializedGameState) error     { return nil }
func (nopStorage) Clear() error                        { return nil }
func (nopStorage) BestScore() (int, error)             { return 0, nil }
func (nopStorage) SetBestScore(int) error              { return nil }
