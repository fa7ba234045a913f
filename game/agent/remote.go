package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/merge2048/game/engine"
)

// FindMoveRequest is posted to {solver}/findmove.
type FindMoveRequest struct {
	Mode  Mode  `json:"mode"`
	Size  int   `json:"size"`
	Board []int `json:"board"`
}

// FindMoveResponse is the solver's answer. Direction is -1 when the solver
// found no legal move.
type FindMoveResponse struct {
	Direction int `json:"direction"`
}

// RemoteAgent asks an external solver for moves. It serves the heuristic
// search modes.
type RemoteAgent struct {
	baseURL string
	mode    Mode
	client  *http.Client
}

// NewRemoteAgent creates an agent for mode backed by the solver at baseURL.
func NewRemoteAgent(baseURL string, mode Mode, client *http.Client) *RemoteAgent {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RemoteAgent{
		baseURL: strings.TrimRight(baseURL, "/"),
		mode:    mode,
		client:  client,
	}
}

// NextMove implements Agent.
func (a *RemoteAgent) NextMove(ctx context.Context, board []int) (engine.Direction, error) {
	b, err := boardFromValues(board)
	if err != nil {
		return engine.NoMove, err
	}

	body, err := json.Marshal(FindMoveRequest{Mode: a.mode, Size: b.Size(), Board: board})
	if err != nil {
		return engine.NoMove, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/findmove", bytes.NewReader(body))
	if err != nil {
		return engine.NoMove, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return engine.NoMove, fmt.Errorf("solver request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		out, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return engine.NoMove, fmt.Errorf("solver returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(out)))
	}

	var fm FindMoveResponse
	if err := json.NewDecoder(resp.Body).Decode(&fm); err != nil {
		return engine.NoMove, fmt.Errorf("failed to decode solver response: %w", err)
	}

	d := engine.Direction(fm.Direction)
	if d == engine.NoMove {
		return engine.NoMove, nil
	}
	if !d.Valid() {
		return engine.NoMove, fmt.Errorf("%w: solver returned %d", engine.ErrInvalidDirection, fm.Direction)
	}
	return d, nil
}
