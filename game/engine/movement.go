package engine

// traversals holds the per-axis processing order for one move.
type traversals struct {
	x []int
	y []int
}

// buildTraversals returns 0..size-1 for each axis, reversed on an axis whose
// vector component is +1 so tiles nearest the target edge move first.
func buildTraversals(size int, v Vector) traversals {
	t := traversals{x: make([]int, size), y: make([]int, size)}
	for i := 0; i < size; i++ {
		t.x[i] = i
		t.y[i] = i
	}
	if v.X == 1 {
		reverse(t.x)
	}
	if v.Y == 1 {
		reverse(t.y)
	}
	return t
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// findFarthestPosition walks from pos along v while the next cell is empty.
// It returns the last empty cell reached and the first cell beyond it, which
// is either occupied or out of bounds.
func findFarthestPosition(b *Board, pos Position, v Vector) (farthest, next Position) {
	cell := pos
	for {
		farthest = cell
		cell = farthest.Add(v)
		if !b.CellAvailable(cell) {
			break
		}
	}
	return farthest, cell
}

// prepareTiles clears merge markers and records pre-move positions.
func prepareTiles(b *Board) {
	b.EachCell(func(_, _ int, tile *Tile) {
		if tile != nil {
			tile.MergedFrom = nil
			tile.savePosition()
		}
	})
}

// moveTile relocates tile to pos, updating the board.
func moveTile(b *Board, tile *Tile, pos Position) {
	b.cells[tile.Position.X][tile.Position.Y] = nil
	b.cells[pos.X][pos.Y] = tile
	tile.updatePosition(pos)
}

// Resolve applies one directional move to b in place. A tile merges at most
// once per move; a move that relocates nothing leaves b untouched apart from
// cleared merge markers and refreshed previous positions.
func Resolve(b *Board, d Direction, winValue int) MoveResult {
	var result MoveResult
	if !d.Valid() {
		return result
	}

	v := d.Vector()
	t := buildTraversals(b.size, v)
	prepareTiles(b)

	for _, x := range t.x {
		for _, y := range t.y {
			cell := Position{X: x, Y: y}
			tile := b.CellContent(cell)
			if tile == nil {
				continue
			}

			farthest, nextPos := findFarthestPosition(b, cell, v)
			next := b.CellContent(nextPos)

			if next != nil && next.Value == tile.Value && next.MergedFrom == nil {
				merged := NewTile(nextPos, tile.Value*2)
				merged.MergedFrom = []*Tile{tile, next}

				b.InsertTile(merged)
				b.RemoveTile(tile)
				tile.updatePosition(nextPos)

				result.ScoreDelta += merged.Value
				result.Merges++
				if merged.Value >= winValue {
					result.Won = true
				}
			} else {
				moveTile(b, tile, farthest)
			}

			if cell != tile.Position {
				result.Moved = true
			}
		}
	}

	return result
}

// MovesAvailable reports whether any move can change the board: an empty cell
// exists or two orthogonally adjacent tiles share a value.
func MovesAvailable(b *Board) bool {
	return b.CellsAvailable() || TileMatchesAvailable(b)
}

// TileMatchesAvailable reports whether any tile has an equal-valued
// orthogonal neighbour.
func TileMatchesAvailable(b *Board) bool {
	for x := 0; x < b.size; x++ {
		for y := 0; y < b.size; y++ {
			tile := b.cells[x][y]
			if tile == nil {
				continue
			}
			for _, d := range Directions {
				other := b.CellContent(Position{X: x, Y: y}.Add(d.Vector()))
				if other != nil && other.Value == tile.Value {
					return true
				}
			}
		}
	}
	return false
}

// CanMove reports whether moving in d would change b. The board is not
// modified.
func CanMove(b *Board, d Direction) bool {
	if !d.Valid() {
		return false
	}
	return Resolve(b.Clone(), d, 1<<30).Moved
}

// LegalMoves returns the directions that would change b, in wire-code order.
func LegalMoves(b *Board) []Direction {
	var moves []Direction
	for _, d := range Directions {
		if CanMove(b, d) {
			moves = append(moves, d)
		}
	}
	return moves
}
