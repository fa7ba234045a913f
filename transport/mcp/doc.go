// Package mcp exposes the 2048 game to Model Context Protocol clients.
//
// The Client registers MCP tools on a mark3labs/mcp-go server and proxies
// every tool call to the REST API, so stdio and HTTP transports share one
// source of truth with REST and WebSocket clients.
//
// MCP Tools:
//   - create_session, list_sessions, get_session: session management
//   - game_state: board, score and status
//   - move: slide tiles up/down/left/right (with a free-form intent)
//   - restart_game, continue_playing: lifecycle after a win or loss
//   - select_agent_mode, toggle_agent, agent_status: autoplay control
//   - list_configs: available presets
//   - game_instructions: rules and strategy notes
//
// Usage:
//
//	// Stdio mode
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	response := client.GetMCPServer().HandleMessage(ctx, body)
package mcp
