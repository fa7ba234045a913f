package engine

import (
	"reflect"
	"testing"
)

// boardFromRows builds a board from rows of tile values indexed [y][x];
// zero marks an empty cell.
func boardFromRows(t *testing.T, rows [][]int) *Board {
	t.Helper()
	b := NewBoard(len(rows))
	for y, row := range rows {
		if len(row) != len(rows) {
			t.Fatalf("row %d has %d cells, expected %d", y, len(row), len(rows))
		}
		for x, v := range row {
			if v != 0 {
				b.InsertTile(NewTile(Position{X: x, Y: y}, v))
			}
		}
	}
	return b
}

// rowsOf is the inverse of boardFromRows.
func rowsOf(b *Board) [][]int {
	rows := make([][]int, b.Size())
	for y := range rows {
		rows[y] = make([]int, b.Size())
		for x := range rows[y] {
			if tile := b.CellContent(Position{X: x, Y: y}); tile != nil {
				rows[y][x] = tile.Value
			}
		}
	}
	return rows
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		rows      [][]int
		direction Direction
		expected  [][]int
		moved     bool
		delta     int
		merges    int
	}{
		{
			name:      "two twos merge left",
			rows:      [][]int{{2, 2, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			direction: Left,
			expected:  [][]int{{4, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			moved:     true, delta: 4, merges: 1,
		},
		{
			name:      "merged tile does not merge again",
			rows:      [][]int{{2, 2, 4, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			direction: Left,
			expected:  [][]int{{4, 4, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			moved:     true, delta: 4, merges: 1,
		},
		{
			name:      "four equal tiles make two merges",
			rows:      [][]int{{2, 2, 2, 2}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			direction: Left,
			expected:  [][]int{{4, 4, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			moved:     true, delta: 8, merges: 2,
		},
		{
			name:      "right merges the pair nearest the edge",
			rows:      [][]int{{2, 2, 2, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			direction: Right,
			expected:  [][]int{{0, 0, 2, 4}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			moved:     true, delta: 4, merges: 1,
		},
		{
			name:      "up merges within a column",
			rows:      [][]int{{2, 0, 0, 0}, {0, 0, 0, 0}, {2, 0, 0, 0}, {4, 0, 0, 0}},
			direction: Up,
			expected:  [][]int{{4, 0, 0, 0}, {4, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			moved:     true, delta: 4, merges: 1,
		},
		{
			name:      "down slides without merging different values",
			rows:      [][]int{{4, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {2, 0, 0, 0}},
			direction: Down,
			expected:  [][]int{{0, 0, 0, 0}, {0, 0, 0, 0}, {4, 0, 0, 0}, {2, 0, 0, 0}},
			moved:     true, delta: 0, merges: 0,
		},
		{
			name:      "packed row without pairs does not move",
			rows:      [][]int{{2, 4, 8, 16}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			direction: Left,
			expected:  [][]int{{2, 4, 8, 16}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			moved:     false, delta: 0, merges: 0,
		},
		{
			name:      "invalid direction is ignored",
			rows:      [][]int{{0, 2, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			direction: Direction(7),
			expected:  [][]int{{0, 2, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			moved:     false, delta: 0, merges: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := boardFromRows(t, tt.rows)
			result := Resolve(b, tt.direction, DefaultWinValue)

			if result.Moved != tt.moved {
				t.Errorf("Expected moved=%v, got %v", tt.moved, result.Moved)
			}
			if result.ScoreDelta != tt.delta {
				t.Errorf("Expected score delta %d, got %d", tt.delta, result.ScoreDelta)
			}
			if result.Merges != tt.merges {
				t.Errorf("Expected %d merges, got %d", tt.merges, result.Merges)
			}
			if result.Won {
				t.Error("Expected no win")
			}
			if got := rowsOf(b); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected board %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestResolve_MergeRecordsHistory(t *testing.T) {
	b := boardFromRows(t, [][]int{{0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 2, 2}})

	Resolve(b, Right, DefaultWinValue)

	merged := b.CellContent(Position{X: 3, Y: 3})
	if merged == nil || merged.Value != 4 {
		t.Fatalf("Expected a 4 at (3,3), got %+v", merged)
	}
	if len(merged.MergedFrom) != 2 {
		t.Fatalf("Expected merged tile to record 2 sources, got %d", len(merged.MergedFrom))
	}
	for _, src := range merged.MergedFrom {
		if src.Value != 2 {
			t.Errorf("Expected source value 2, got %d", src.Value)
		}
		if src.Position != (Position{X: 3, Y: 3}) {
			t.Errorf("Expected source to end at (3,3), got %+v", src.Position)
		}
	}

	// The next move clears the merge marker.
	Resolve(b, Left, DefaultWinValue)
	tile := b.CellContent(Position{X: 0, Y: 3})
	if tile == nil {
		t.Fatal("Expected tile at (0,3)")
	}
	if tile.MergedFrom != nil {
		t.Error("Expected merge marker to be cleared by the next move")
	}
	if tile.PreviousPosition == nil || *tile.PreviousPosition != (Position{X: 3, Y: 3}) {
		t.Errorf("Expected previous position (3,3), got %v", tile.PreviousPosition)
	}
}

func TestResolve_Win(t *testing.T) {
	tests := []struct {
		name     string
		value    int
		winValue int
		won      bool
	}{
		{"reaching 2048 wins", 1024, 2048, true},
		{"below the win value", 512, 2048, false},
		{"custom win value", 64, 128, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBoard(4)
			b.InsertTile(NewTile(Position{X: 0, Y: 0}, tt.value))
			b.InsertTile(NewTile(Position{X: 1, Y: 0}, tt.value))

			result := Resolve(b, Left, tt.winValue)
			if result.Won != tt.won {
				t.Errorf("Expected won=%v, got %v", tt.won, result.Won)
			}
		})
	}
}

func TestResolve_NoOpLeavesBoardUnchanged(t *testing.T) {
	rows := [][]int{
		{2, 4, 0, 0},
		{8, 0, 0, 0},
		{16, 32, 64, 0},
		{0, 0, 0, 0},
	}
	b := boardFromRows(t, rows)
	before := b.Serialize()

	result := Resolve(b, Left, DefaultWinValue)
	if result.Moved {
		t.Fatal("Expected move left to be a no-op")
	}
	if !reflect.DeepEqual(before, b.Serialize()) {
		t.Error("Expected board to be unchanged after a no-op move")
	}
}

func TestMovesAvailable(t *testing.T) {
	tests := []struct {
		name     string
		rows     [][]int
		expected bool
	}{
		{
			name:     "empty board",
			rows:     [][]int{{0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			expected: true,
		},
		{
			name:     "full board without pairs",
			rows:     [][]int{{2, 4, 2, 4}, {4, 2, 4, 2}, {2, 4, 2, 4}, {4, 2, 4, 2}},
			expected: false,
		},
		{
			name:     "full board with a horizontal pair",
			rows:     [][]int{{2, 2, 8, 4}, {4, 8, 4, 2}, {2, 4, 2, 4}, {4, 2, 4, 2}},
			expected: true,
		},
		{
			name:     "full board with a vertical pair",
			rows:     [][]int{{2, 4, 2, 4}, {4, 2, 4, 2}, {2, 4, 2, 8}, {4, 2, 4, 8}},
			expected: true,
		},
		{
			name:     "one empty cell",
			rows:     [][]int{{2, 4, 2, 4}, {4, 2, 4, 2}, {2, 4, 2, 4}, {4, 2, 4, 0}},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := boardFromRows(t, tt.rows)
			if got := MovesAvailable(b); got != tt.expected {
				t.Errorf("Expected MovesAvailable=%v, got %v", tt.expected, got)
			}
		})
	}
}

func TestLegalMoves(t *testing.T) {
	b := NewBoard(4)
	b.InsertTile(NewTile(Position{X: 0, Y: 0}, 2))

	moves := LegalMoves(b)
	expected := []Direction{Right, Down}
	if !reflect.DeepEqual(moves, expected) {
		t.Errorf("Expected legal moves %v, got %v", expected, moves)
	}

	// LegalMoves must not modify the board.
	if b.CellContent(Position{X: 0, Y: 0}) == nil || b.TileCount() != 1 {
		t.Error("Expected board to be untouched")
	}

	full := boardFromRows(t, [][]int{{2, 4}, {4, 2}})
	if moves := LegalMoves(full); len(moves) != 0 {
		t.Errorf("Expected no legal moves, got %v", moves)
	}
}

func TestBuildTraversals(t *testing.T) {
	tests := []struct {
		direction Direction
		x, y      []int
	}{
		{Up, []int{0, 1, 2}, []int{0, 1, 2}},
		{Right, []int{2, 1, 0}, []int{0, 1, 2}},
		{Down, []int{0, 1, 2}, []int{2, 1, 0}},
		{Left, []int{0, 1, 2}, []int{0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.direction.String(), func(t *testing.T) {
			tr := buildTraversals(3, tt.direction.Vector())
			if !reflect.DeepEqual(tr.x, tt.x) || !reflect.DeepEqual(tr.y, tt.y) {
				t.Errorf("Expected x=%v y=%v, got x=%v y=%v", tt.x, tt.y, tr.x, tr.y)
			}
		})
	}
}
