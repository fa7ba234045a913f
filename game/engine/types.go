package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Validation constants
	MinBoardSize      = 2
	MaxBoardSize      = 8
	DefaultBoardSize  = 4
	DefaultWinValue   = 2048
	DefaultStartTiles = 2
	DefaultFourChance = 0.1
	DefaultDelayMs    = 100
	DefaultPollMs     = 10
)

var (
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Direction is one of the four move directions. The numeric values are the
// wire codes agents and clients exchange.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left

	// NoMove is returned by agents when no legal move exists.
	NoMove Direction = -1
)

// Directions lists the four move directions in wire-code order.
var Directions = []Direction{Up, Right, Down, Left}

// Vector is a unit step on the board.
type Vector struct {
	X int
	Y int
}

var vectors = map[Direction]Vector{
	Up:    {X: 0, Y: -1},
	Right: {X: 1, Y: 0},
	Down:  {X: 0, Y: 1},
	Left:  {X: -1, Y: 0},
}

// Vector returns the unit step for d.
func (d Direction) Vector() Vector {
	return vectors[d]
}

// Valid reports whether d is one of the four move directions.
func (d Direction) Valid() bool {
	_, ok := vectors[d]
	return ok
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	case NoMove:
		return "none"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// ParseDirection accepts either a direction name ("up", "right", ...) or its
// numeric wire code ("0".."3").
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "u":
		return Up, nil
	case "right", "r":
		return Right, nil
	case "down", "d":
		return Down, nil
	case "left", "l":
		return Left, nil
	}
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return NoMove, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
	d := Direction(code)
	if !d.Valid() {
		return NoMove, fmt.Errorf("%w: %d", ErrInvalidDirection, code)
	}
	return d, nil
}

// Position represents x,y coordinates
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the position one step along v.
func (p Position) Add(v Vector) Position {
	return Position{X: p.X + v.X, Y: p.Y + v.Y}
}

// Tile is a numbered tile on the board.
type Tile struct {
	Value    int
	Position Position

	// MergedFrom holds the two tiles that produced this one during the
	// current move. Cleared when the next move starts.
	MergedFrom []*Tile

	// PreviousPosition is where the tile stood before the current move.
	PreviousPosition *Position
}

// NewTile creates a tile at pos.
func NewTile(pos Position, value int) *Tile {
	return &Tile{Value: value, Position: pos}
}

func (t *Tile) savePosition() {
	prev := t.Position
	t.PreviousPosition = &prev
}

func (t *Tile) updatePosition(pos Position) {
	t.Position = pos
}

// SerializedTile is the persisted form of a tile.
type SerializedTile struct {
	Position Position `json:"position"`
	Value    int      `json:"value"`
}

// SerializedGrid is the persisted form of a board. Cells are indexed [x][y].
type SerializedGrid struct {
	Size  int                 `json:"size"`
	Cells [][]*SerializedTile `json:"cells"`
}

// SerializedGameState is the blob handed to the persistence adapter.
type SerializedGameState struct {
	Grid        SerializedGrid `json:"grid"`
	Score       int            `json:"score"`
	Over        bool           `json:"over"`
	Won         bool           `json:"won"`
	KeepPlaying bool           `json:"keepPlaying"`
}

// Metadata accompanies every render call.
type Metadata struct {
	Score      int  `json:"score"`
	Over       bool `json:"over"`
	Won        bool `json:"won"`
	BestScore  int  `json:"bestScore"`
	Terminated bool `json:"terminated"`
}

// MoveResult describes the outcome of resolving one move.
type MoveResult struct {
	Moved      bool `json:"moved"`
	ScoreDelta int  `json:"score_delta"`
	Won        bool `json:"won"`
	Merges     int  `json:"merges"`
}

// Status is the coarse session state.
type Status string

const (
	StatusActive     Status = "active"
	StatusWonPending Status = "won_pending"
	StatusOver       Status = "over"
)

// GameState is a point-in-time view of a session, safe to share.
type GameState struct {
	Grid        SerializedGrid `json:"grid"`
	Score       int            `json:"score"`
	BestScore   int            `json:"best_score"`
	Over        bool           `json:"over"`
	Won         bool           `json:"won"`
	KeepPlaying bool           `json:"keep_playing"`
	Terminated  bool           `json:"terminated"`
	Status      Status         `json:"status"`
	MaxTile     int            `json:"max_tile"`
	TotalMoves  int            `json:"total_moves"`
	Board       []int          `json:"board"`
}
