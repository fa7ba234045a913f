package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gookit/color"

	"github.com/wricardo/mcp-training/merge2048/game/engine"
)

// cellWidth fits a five digit tile with padding.
const cellWidth = 7

const clearScreen = "\033[H\033[2J"

type tileColor struct {
	value  int
	fg, bg string
}

// tileColors follows the classic web palette; larger tiles reuse the last entry.
var tileColors = []tileColor{
	{0, "776e65", "cdc1b4"},
	{2, "776e65", "eee4da"},
	{4, "776e65", "ede0c8"},
	{8, "f9f6f2", "f2b179"},
	{16, "f9f6f2", "f59563"},
	{32, "f9f6f2", "f67c5f"},
	{64, "f9f6f2", "f65e3b"},
	{128, "f9f6f2", "edcf72"},
	{256, "f9f6f2", "edcc61"},
	{512, "f9f6f2", "edc850"},
	{1024, "f9f6f2", "edc53f"},
	{2048, "f9f6f2", "edc22e"},
	{4096, "f9f6f2", "3c3a32"},
}

// Renderer draws the board to a terminal. It implements engine.Renderer and
// engine.MessageClearer.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	colored bool
	clear   bool
	footer  func() string

	showMessage bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithColor enables or disables ANSI colors. Colors are on by default when
// the terminal supports them.
func WithColor(enabled bool) Option {
	return func(r *Renderer) { r.colored = enabled }
}

// WithClearScreen redraws in place instead of appending frames.
func WithClearScreen(enabled bool) Option {
	return func(r *Renderer) { r.clear = enabled }
}

// WithFooter adds a line below the board on every frame, e.g. agent status.
func WithFooter(fn func() string) Option {
	return func(r *Renderer) { r.footer = fn }
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(out io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		out:         out,
		colored:     color.SupportColor(),
		showMessage: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render draws one frame.
func (r *Renderer) Render(board *engine.Board, meta engine.Metadata) {
	frame := r.frame(board, meta)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clear {
		io.WriteString(r.out, clearScreen)
	}
	io.WriteString(r.out, frame)
	if meta.Terminated {
		r.showMessage = true
	}
}

// ClearMessage hides the win or game over banner until the game ends again.
func (r *Renderer) ClearMessage() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.showMessage = false
}

func (r *Renderer) frame(board *engine.Board, meta engine.Metadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n\n",
		r.style(color.Bold, fmt.Sprintf("Score: %d", meta.Score)),
		fmt.Sprintf("Best: %d", meta.BestScore))

	size := board.Size()
	rows := make([][]int, size)
	for y := range rows {
		rows[y] = make([]int, size)
	}
	board.EachCell(func(x, y int, tile *engine.Tile) {
		if tile != nil {
			rows[y][x] = tile.Value
		}
	})

	for _, row := range rows {
		for x, v := range row {
			if x > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(r.cell(v))
		}
		b.WriteByte('\n')
	}

	r.mu.Lock()
	show := r.showMessage
	r.mu.Unlock()
	if msg := banner(meta); msg != "" && show {
		b.WriteString("\n" + r.style(color.Bold, msg) + "\n")
	}
	if r.footer != nil {
		b.WriteString("\n" + r.footer() + "\n")
	}
	b.WriteByte('\n')
	return b.String()
}

func banner(meta engine.Metadata) string {
	switch {
	case meta.Over:
		return "Game over!"
	case meta.Won && meta.Terminated:
		return "You win!"
	}
	return ""
}

func (r *Renderer) cell(value int) string {
	text := "."
	if value > 0 {
		text = fmt.Sprint(value)
	}
	pad := cellWidth - len(text)
	if pad < 0 {
		pad = 0
	}
	text = strings.Repeat(" ", pad/2) + text + strings.Repeat(" ", pad-pad/2)

	if !r.colored {
		return text
	}
	c := paletteFor(value)
	return color.HEXStyle(c.fg, c.bg).Sprint(text)
}

func (r *Renderer) style(s color.Color, text string) string {
	if !r.colored {
		return text
	}
	return s.Sprint(text)
}

func paletteFor(value int) tileColor {
	c := tileColors[len(tileColors)-1]
	for _, tc := range tileColors {
		if tc.value == value {
			return tc
		}
	}
	return c
}
