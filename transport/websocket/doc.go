// Package websocket provides the WebSocket transport for the 2048 server.
//
// The websocket package implements:
//   - Session-aware WebSocket connections
//   - A render sink that pushes every engine render to the session's clients
//   - Autoplay event forwarding
//   - Inbound input events (moves, restart, autoplay control)
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a read and a
// write goroutine. Only the hub goroutine delivers to clients; everything
// else queues messages on a buffered channel and never blocks.
//
// Message Protocol:
//
// Outgoing messages are JSON objects {session_id, event, game_state, data}:
//   - render: {grid, board, metadata} after every engine render
//   - clear_message: the terminal win or game over message was dismissed
//   - agent_started, agent_stopped, agent_progress, agent_model_ready
//   - input_result and error: replies to the sending client only
//
// Incoming messages are input events:
//
//	{"type": "move", "direction": "left"}
//	{"type": "restart"}
//	{"type": "continue"}
//	{"type": "select_mode", "mode": "learned-model"}
//	{"type": "toggle_agent", "delay_ms": 50}
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	hub.SetInputHandler(gameService.HandleInput)
//
//	sessions := session.NewManager(
//		session.WithRenderers(hub.Renderer),
//		session.WithAgentEvents(hub.BroadcastAgentEvent),
//	)
//
// Clients connect to /ws?session=<id>.
package websocket
