package terminal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/merge2048/game/engine"
)

func board(t *testing.T, size int, exps ...int) *engine.Board {
	t.Helper()
	b, err := engine.BoardFromLog2(size, exps)
	require.NoError(t, err)
	return b
}

func TestRenderPlain(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, WithColor(false))

	r.Render(board(t, 2, 1, 0, 11, 3), engine.Metadata{Score: 20, BestScore: 100})

	lines := strings.Split(out.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, "Score: 20  Best: 100", lines[0])
	assert.Equal(t, "   2       .   ", lines[2])
	assert.Equal(t, " 2048      8   ", lines[3])
	assert.NotContains(t, out.String(), "\033[")
}

func TestRenderBanner(t *testing.T) {
	tests := []struct {
		name string
		meta engine.Metadata
		want string
	}{
		{"game over", engine.Metadata{Over: true, Terminated: true}, "Game over!"},
		{"won", engine.Metadata{Won: true, Terminated: true}, "You win!"},
		{"won and kept playing", engine.Metadata{Won: true}, ""},
		{"playing", engine.Metadata{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			NewRenderer(&out, WithColor(false)).Render(board(t, 2, 1, 1, 1, 1), tt.meta)
			if tt.want == "" {
				assert.NotContains(t, out.String(), "!")
				return
			}
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestClearMessage(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, WithColor(false))

	r.ClearMessage()
	r.Render(board(t, 2, 1, 2, 2, 1), engine.Metadata{Over: true, Terminated: true})
	assert.NotContains(t, out.String(), "Game over!")

	out.Reset()
	r.Render(board(t, 2, 1, 2, 2, 1), engine.Metadata{Over: true, Terminated: true})
	assert.Contains(t, out.String(), "Game over!")
}

func TestRenderOptions(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, WithColor(false), WithClearScreen(true), WithFooter(func() string { return "agent: random" }))

	r.Render(board(t, 2, 0, 0, 0, 0), engine.Metadata{})
	assert.True(t, strings.HasPrefix(out.String(), clearScreen))
	assert.Contains(t, out.String(), "agent: random")
}

func TestRenderColored(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, WithColor(true))

	r.Render(board(t, 2, 1, 0, 0, 0), engine.Metadata{})
	assert.Contains(t, out.String(), "2")
}

func TestPaletteFor(t *testing.T) {
	assert.Equal(t, "eee4da", paletteFor(2).bg)
	assert.Equal(t, "edc22e", paletteFor(2048).bg)
	assert.Equal(t, "3c3a32", paletteFor(65536).bg)
}
