// Command analyze prints quick, human-readable summaries of persisted game
// sessions: score, largest tile, free cells, the moves still available and
// the board itself, followed by totals across all sessions.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/merge2048/game/engine"
	"github.com/wricardo/mcp-training/merge2048/game/session"
)

// SessionAnalysis is the summary of one persisted session.
type SessionAnalysis struct {
	ID         string
	ConfigName string
	HasGame    bool
	Score      int
	MaxTile    int
	EmptyCells int
	Status     engine.Status
	LegalMoves []engine.Direction
	Board      string
}

// Summary aggregates analyses across sessions.
type Summary struct {
	Sessions  int
	Games     int
	BestScore int
	BestID    string
	// MaxTiles counts sessions by their largest tile.
	MaxTiles map[int]int
}

func main() {
	cmd := &cli.Command{
		Name:      "analyze",
		Usage:     "Summarize persisted game sessions",
		ArgsUsage: "[session IDs...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "sessions-dir",
				Value:   "sessions",
				Usage:   "Directory where sessions are persisted",
				Sources: cli.EnvVars("SESSIONS_DIR"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(os.Stdout, cmd.String("sessions-dir"), cmd.Args().Slice())
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

// run analyzes the given sessions, or every session in dir when ids is empty.
func run(w io.Writer, dir string, ids []string) error {
	persistence, err := session.NewFilePersistence(dir)
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		if ids, err = persistence.ListAll(); err != nil {
			return err
		}
		sort.Strings(ids)
	}

	var analyses []*SessionAnalysis
	for _, id := range ids {
		fmt.Fprintf(w, "\n=== Analyzing %s ===\n", id)
		data, err := persistence.Load(id)
		if err != nil {
			fmt.Fprintf(w, "Error loading session: %v\n", err)
			continue
		}
		a, err := analyzeSession(data)
		if err != nil {
			fmt.Fprintf(w, "Error reading saved game: %v\n", err)
			continue
		}
		printAnalysis(w, a)
		analyses = append(analyses, a)
	}

	printSummary(w, summarize(analyses))
	return nil
}

func analyzeSession(data *session.PersistedSessionData) (*SessionAnalysis, error) {
	a := &SessionAnalysis{ID: data.ID, ConfigName: data.ConfigName}
	if data.GameState == nil {
		return a, nil
	}

	board, err := engine.BoardFromSerialized(data.GameState.Grid)
	if err != nil {
		return nil, err
	}

	state := data.GameState
	a.HasGame = true
	a.Score = state.Score
	a.MaxTile = board.MaxTile()
	a.EmptyCells = len(board.AvailableCells())
	a.Status = engine.StatusOf(state.Over, state.Won, state.KeepPlaying)
	a.LegalMoves = engine.LegalMoves(board)
	a.Board = board.String()
	return a, nil
}

func printAnalysis(w io.Writer, a *SessionAnalysis) {
	fmt.Fprintf(w, "Config: %s\n", a.ConfigName)
	if !a.HasGame {
		fmt.Fprintf(w, "No game in progress\n")
		return
	}

	fmt.Fprintf(w, "Score: %d\n", a.Score)
	fmt.Fprintf(w, "Max Tile: %d\n", a.MaxTile)
	fmt.Fprintf(w, "Empty Cells: %d\n", a.EmptyCells)
	fmt.Fprintf(w, "Status: %s\n", a.Status)

	switch {
	case len(a.LegalMoves) == 0:
		fmt.Fprintf(w, "⚠️  No legal moves left\n")
	case len(a.LegalMoves) == 1:
		fmt.Fprintf(w, "⚠️  Only one legal move: %s\n", a.LegalMoves[0])
	default:
		moves := make([]string, len(a.LegalMoves))
		for i, d := range a.LegalMoves {
			moves[i] = d.String()
		}
		fmt.Fprintf(w, "✅ Legal moves: %s\n", strings.Join(moves, ", "))
	}

	fmt.Fprintf(w, "\n%s", a.Board)
}

func summarize(analyses []*SessionAnalysis) Summary {
	s := Summary{Sessions: len(analyses), MaxTiles: map[int]int{}}
	for _, a := range analyses {
		if !a.HasGame {
			continue
		}
		s.Games++
		s.MaxTiles[a.MaxTile]++
		if a.Score > s.BestScore {
			s.BestScore = a.Score
			s.BestID = a.ID
		}
	}
	return s
}

func printSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "\n=== Summary ===\n")
	fmt.Fprintf(w, "Sessions: %d (%d with a game in progress)\n", s.Sessions, s.Games)
	if s.Games == 0 {
		return
	}
	fmt.Fprintf(w, "Best Score: %d (%s)\n", s.BestScore, s.BestID)

	tiles := make([]int, 0, len(s.MaxTiles))
	for tile := range s.MaxTiles {
		tiles = append(tiles, tile)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(tiles)))
	for _, tile := range tiles {
		fmt.Fprintf(w, "   Max tile %d: %d\n", tile, s.MaxTiles[tile])
	}
}
