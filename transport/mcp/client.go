package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/merge2048/game/agent"
	"github.com/wricardo/mcp-training/merge2048/game/autoplay"
	"github.com/wricardo/mcp-training/merge2048/game/engine"
	"github.com/wricardo/mcp-training/merge2048/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"merge2048",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`2048 - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Slide numbered tiles on a square grid. Equal tiles merge into their sum. Reach the win tile (2048 by default).

AVAILABLE TOOLS:
- create_session: Create new game session
- list_sessions: List all active sessions
- get_session: Get session details
- game_state: Get current board and score
- move: Slide the board (up/down/left/right) - requires intent explanation
- restart_game: Start a new game in the session
- continue_playing: Keep playing after reaching the win tile
- select_agent_mode: Choose the autoplay agent
- toggle_agent: Start or stop autoplay
- agent_status: Autoplay state, move count and latency
- list_configs: List available configurations
- game_instructions: Get the rules and strategy notes

NOTE: The 'intent' parameter on the move tool serves as rubber duck debugging - explain your reasoning!`),
	)

	// Register all tools
	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the config to use, see list_configs (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current board, score and status",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move",
		Description: "Slide all tiles in a direction",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"up", "down", "left", "right"},
					"description": "Direction to slide",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this move (serves as a rubber duck to help explain your reasoning)",
				},
			},
			Required: []string{"session_id", "direction"},
		},
	}, c.handleMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "restart_game",
		Description: "Start a new game in the session. Rejected while autoplay runs.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleRestart)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "continue_playing",
		Description: "Keep playing after the win tile was reached",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleContinue)

	// Autoplay
	modes := make([]string, 0, len(agent.Modes))
	for _, m := range agent.Modes {
		modes = append(modes, string(m))
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "select_agent_mode",
		Description: "Choose which agent plays when autoplay is toggled on. Rejected while autoplay runs.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"mode": map[string]interface{}{
					"type":        "string",
					"enum":        modes,
					"description": "Agent mode",
				},
			},
			Required: []string{"session_id", "mode"},
		},
	}, c.handleSelectMode)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "toggle_agent",
		Description: "Start autoplay if it is idle, stop it if it is running",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"delay_ms": map[string]interface{}{
					"type":        "integer",
					"description": "Minimum milliseconds per move (optional)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleToggleAgent)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "agent_status",
		Description: "Get autoplay state, selected mode, move count and latency",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleAgentStatus)

	// Configuration
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available game configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get game rules and strategy notes",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

func stringArg(request mcp.CallToolRequest, name string) string {
	v, _ := request.GetArguments()[name].(string)
	return v
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{}
	if configID := stringArg(request, "config_id"); configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s", session.ID, session.ConfigName, formatGameState(session.GameState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		score := 0
		if s.GameState != nil {
			score = s.GameState.Score
		}
		fmt.Fprintf(&b, "- %s (Config: %s, Score: %d, Created: %s)\n",
			s.ID, s.ConfigName, score, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(stringArg(request, "session_id"), ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(stringArg(request, "session_id"), "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Intent parameter serves as rubber duck debugging - we don't need to process it further
	body := map[string]interface{}{
		"direction": stringArg(request, "direction"),
	}

	var result service.MoveResult
	if err := c.apiCall(ctx, "POST", sessionPath(stringArg(request, "session_id"), "/move"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleRestart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var state engine.GameState
	if err := c.apiCall(ctx, "POST", sessionPath(stringArg(request, "session_id"), "/restart"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("New game started\n\n" + formatGameState(&state)), nil
}

func (c *Client) handleContinue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var state engine.GameState
	if err := c.apiCall(ctx, "POST", sessionPath(stringArg(request, "session_id"), "/continue"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Playing on past the win tile\n\n" + formatGameState(&state)), nil
}

func (c *Client) handleSelectMode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{"mode": stringArg(request, "mode")}

	var status autoplay.Status
	if err := c.apiCall(ctx, "PUT", sessionPath(stringArg(request, "session_id"), "/agent/mode"), body, &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatAgentStatus(&status)), nil
}

func (c *Client) handleToggleAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]interface{}{}
	if delay, ok := request.GetArguments()["delay_ms"].(float64); ok {
		body["delay_ms"] = int(delay)
	}

	var status autoplay.Status
	if err := c.apiCall(ctx, "POST", sessionPath(stringArg(request, "session_id"), "/agent/toggle"), body, &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatAgentStatus(&status)), nil
}

func (c *Client) handleAgentStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var status autoplay.Status
	if err := c.apiCall(ctx, "GET", sessionPath(stringArg(request, "session_id"), "/agent"), nil, &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatAgentStatus(&status)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&b, "• %s (config_id: %s)\n  %s\n  Grid: %dx%d, Win tile: %d\n\n",
			config.Name, config.ConfigID, config.Description, config.Size, config.Size, config.WinValue)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `2048 - Complete Instructions

GAME OBJECTIVE:
Combine tiles until one of them reaches the win tile (2048 on the classic board).

GAME MECHANICS:
• Each move slides every tile as far as it can go in the chosen direction
• Two tiles with the same value that meet merge into one tile with their sum
• A tile merges at most once per move, so 2 2 2 2 slid left becomes 4 4
• The merged value is added to your score
• After every move that changes the board a new tile appears in a random empty cell (2 with 90% probability, 4 otherwise)
• A move that changes nothing does not spawn a tile

WINNING:
When the win tile appears the game pauses. Call continue_playing to keep going for a higher score, or restart_game to start over.

GAME OVER:
The board is full and no two adjacent tiles are equal.

STRATEGY NOTES:
• Keep your largest tile in a corner
• Prefer two directions (for example left and down) and use a third only when stuck
• Build a monotonic row along the edge holding the largest tile
• Avoid moving away from the corner when the edge row is not full

AUTOPLAY:
• select_agent_mode chooses the agent: random, heuristic-deep, heuristic-sampling or learned-model
• toggle_agent starts or stops it; delay_ms sets the minimum time per move
• learned-model needs a model download; toggle again once agent_status shows the model is ready
• Restart and mode changes are rejected while autoplay runs

BOARD FORMAT:
game_state prints the board row by row. Empty cells are shown as '.'.`

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nConfig: %s\nCreated: %s\nLast accessed: %s\n",
		session.ID, session.ConfigName,
		session.CreatedAt.Format(time.RFC3339), session.LastAccessedAt.Format(time.RFC3339))
	if session.Agent != nil {
		b.WriteString("\n" + formatAgentStatus(session.Agent))
	}
	if session.GameState != nil {
		b.WriteString("\n" + formatGameState(session.GameState))
	}
	return b.String()
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Score: %d (best %d)\n", state.Score, state.BestScore)
	fmt.Fprintf(&b, "Moves: %d, Max tile: %d\n", state.TotalMoves, state.MaxTile)
	fmt.Fprintf(&b, "Status: %s\n\n", statusLine(state))
	b.WriteString(formatBoard(state.Grid.Size, state.Board))
	return b.String()
}

func statusLine(state *engine.GameState) string {
	switch state.Status {
	case engine.StatusOver:
		return "GAME OVER"
	case engine.StatusWonPending:
		return "YOU WIN! (call continue_playing to keep going)"
	}
	if state.Won {
		return "playing (won, keep playing)"
	}
	return "playing"
}

// formatBoard renders log2 cell values as a grid of tile values.
func formatBoard(size int, board []int) string {
	if size <= 0 || len(board) != size*size {
		return ""
	}

	values := engine.ValuesFromLog2(board)
	width := 1
	for _, v := range values {
		if w := len(fmt.Sprint(v)); w > width {
			width = w
		}
	}

	var b strings.Builder
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if x > 0 {
				b.WriteByte(' ')
			}
			cell := "."
			if v := values[y*size+x]; v > 0 {
				cell = fmt.Sprint(v)
			}
			fmt.Fprintf(&b, "%*s", width, cell)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func formatMoveResult(result *service.MoveResult) string {
	var b strings.Builder
	if result.Success {
		fmt.Fprintf(&b, "Moved %s: +%d points, %d merges\n", result.Direction, result.ScoreDelta, result.Merges)
	} else {
		fmt.Fprintf(&b, "Move %s changed nothing\n", result.Direction)
	}
	if result.Message != "" {
		b.WriteString(result.Message + "\n")
	}
	b.WriteString("\n" + formatGameState(result.GameState))
	return b.String()
}

func formatAgentStatus(status *autoplay.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Autoplay: %s\nMode: %s\nMoves this run: %d\nAvg move time: %.1fms\nDelay: %dms\n",
		status.State, status.Mode, status.Moves, status.EMAMs, status.DelayMs)
	if status.Mode.RequiresResource() {
		if status.ResourceReady {
			b.WriteString("Model: ready\n")
		} else {
			fmt.Fprintf(&b, "Model: downloading (%d/%d bytes)\n", status.Progress.Received, status.Progress.Total)
		}
	}
	return b.String()
}
