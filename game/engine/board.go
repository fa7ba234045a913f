package engine

import (
	"fmt"
	"math/rand"
	"strings"
)

// Board is a square grid of optional tiles. Cells are indexed [x][y]; a nil
// entry is an empty cell.
type Board struct {
	size  int
	cells [][]*Tile
}

// NewBoard creates an empty board of the given size.
func NewBoard(size int) *Board {
	b := &Board{size: size}
	b.cells = b.empty()
	return b
}

// BoardFromSerialized rebuilds a board from its persisted form. Merge history
// and previous positions are not restored.
func BoardFromSerialized(grid SerializedGrid) (*Board, error) {
	if grid.Size < MinBoardSize || grid.Size > MaxBoardSize {
		return nil, fmt.Errorf("grid size must be between %d and %d, got %d", MinBoardSize, MaxBoardSize, grid.Size)
	}
	if len(grid.Cells) != grid.Size {
		return nil, fmt.Errorf("grid has %d columns, expected %d", len(grid.Cells), grid.Size)
	}

	b := NewBoard(grid.Size)
	for x := 0; x < grid.Size; x++ {
		if len(grid.Cells[x]) != grid.Size {
			return nil, fmt.Errorf("grid column %d has %d cells, expected %d", x, len(grid.Cells[x]), grid.Size)
		}
		for y := 0; y < grid.Size; y++ {
			st := grid.Cells[x][y]
			if st == nil {
				continue
			}
			if !isTileValue(st.Value) {
				return nil, fmt.Errorf("cell (%d,%d) has invalid tile value %d", x, y, st.Value)
			}
			b.cells[x][y] = NewTile(Position{X: x, Y: y}, st.Value)
		}
	}
	return b, nil
}

// BoardFromLog2 builds a board from flattened log2 values laid out row by row
// (y outer, x inner). Zero marks an empty cell.
func BoardFromLog2(size int, values []int) (*Board, error) {
	if len(values) != size*size {
		return nil, fmt.Errorf("expected %d values for a %dx%d board, got %d", size*size, size, size, len(values))
	}
	b := NewBoard(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			exp := values[y*size+x]
			if exp < 0 || exp > 30 {
				return nil, fmt.Errorf("cell (%d,%d) has invalid exponent %d", x, y, exp)
			}
			if exp == 0 {
				continue
			}
			b.cells[x][y] = NewTile(Position{X: x, Y: y}, 1<<exp)
		}
	}
	return b, nil
}

func (b *Board) empty() [][]*Tile {
	cells := make([][]*Tile, b.size)
	for x := range cells {
		cells[x] = make([]*Tile, b.size)
	}
	return cells
}

// Size returns the board edge length.
func (b *Board) Size() int {
	return b.size
}

// EachCell calls fn for every cell, x outer and y inner.
func (b *Board) EachCell(fn func(x, y int, tile *Tile)) {
	for x := 0; x < b.size; x++ {
		for y := 0; y < b.size; y++ {
			fn(x, y, b.cells[x][y])
		}
	}
}

// AvailableCells returns every empty position, x outer and y inner.
func (b *Board) AvailableCells() []Position {
	var cells []Position
	b.EachCell(func(x, y int, tile *Tile) {
		if tile == nil {
			cells = append(cells, Position{X: x, Y: y})
		}
	})
	return cells
}

// RandomAvailableCell picks an empty position uniformly at random.
// It reports false when the board is full.
func (b *Board) RandomAvailableCell(rng *rand.Rand) (Position, bool) {
	cells := b.AvailableCells()
	if len(cells) == 0 {
		return Position{}, false
	}
	return cells[rng.Intn(len(cells))], true
}

// CellsAvailable reports whether at least one cell is empty.
func (b *Board) CellsAvailable() bool {
	for x := 0; x < b.size; x++ {
		for y := 0; y < b.size; y++ {
			if b.cells[x][y] == nil {
				return true
			}
		}
	}
	return false
}

// CellAvailable reports whether pos is in bounds and empty.
func (b *Board) CellAvailable(pos Position) bool {
	return b.WithinBounds(pos) && b.cells[pos.X][pos.Y] == nil
}

// CellContent returns the tile at pos, or nil when the cell is empty or out
// of bounds.
func (b *Board) CellContent(pos Position) *Tile {
	if !b.WithinBounds(pos) {
		return nil
	}
	return b.cells[pos.X][pos.Y]
}

// InsertTile places t at its position, replacing any previous occupant.
func (b *Board) InsertTile(t *Tile) {
	b.cells[t.Position.X][t.Position.Y] = t
}

// RemoveTile empties the cell at t's position.
func (b *Board) RemoveTile(t *Tile) {
	b.cells[t.Position.X][t.Position.Y] = nil
}

// WithinBounds reports whether pos lies on the board.
func (b *Board) WithinBounds(pos Position) bool {
	return pos.X >= 0 && pos.X < b.size && pos.Y >= 0 && pos.Y < b.size
}

// Serialize returns the persisted form of the board.
func (b *Board) Serialize() SerializedGrid {
	cells := make([][]*SerializedTile, b.size)
	for x := 0; x < b.size; x++ {
		cells[x] = make([]*SerializedTile, b.size)
		for y := 0; y < b.size; y++ {
			if t := b.cells[x][y]; t != nil {
				cells[x][y] = &SerializedTile{Position: Position{X: x, Y: y}, Value: t.Value}
			}
		}
	}
	return SerializedGrid{Size: b.size, Cells: cells}
}

// Clone returns a deep copy of the board without merge history.
func (b *Board) Clone() *Board {
	c := NewBoard(b.size)
	b.EachCell(func(x, y int, tile *Tile) {
		if tile != nil {
			c.cells[x][y] = NewTile(Position{X: x, Y: y}, tile.Value)
		}
	})
	return c
}

// Log2Values flattens the board row by row (y outer, x inner) into log2 tile
// exponents, 0 for empty cells. This is the form agents consume.
func (b *Board) Log2Values() []int {
	values := make([]int, 0, b.size*b.size)
	for y := 0; y < b.size; y++ {
		for x := 0; x < b.size; x++ {
			values = append(values, log2(b.cells[x][y]))
		}
	}
	return values
}

// MaxTile returns the largest tile value, 0 on an empty board.
func (b *Board) MaxTile() int {
	best := 0
	b.EachCell(func(_, _ int, tile *Tile) {
		if tile != nil && tile.Value > best {
			best = tile.Value
		}
	})
	return best
}

// TileCount returns the number of occupied cells.
func (b *Board) TileCount() int {
	n := 0
	b.EachCell(func(_, _ int, tile *Tile) {
		if tile != nil {
			n++
		}
	})
	return n
}

// String renders the board row by row, "." for empty cells.
func (b *Board) String() string {
	var sb strings.Builder
	for y := 0; y < b.size; y++ {
		for x := 0; x < b.size; x++ {
			if x > 0 {
				sb.WriteByte(' ')
			}
			if t := b.cells[x][y]; t != nil {
				fmt.Fprintf(&sb, "%4d", t.Value)
			} else {
				sb.WriteString("   .")
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func log2(t *Tile) int {
	if t == nil {
		return 0
	}
	return Log2(t.Value)
}

func isTileValue(v int) bool {
	return v >= 2 && v&(v-1) == 0
}
