// Package api provides HTTP REST API handlers for the 2048 game server.
//
// The api package implements:
//   - Session management endpoints
//   - Move, restart and continue endpoints
//   - Autoplay control (mode selection, toggle, status)
//   - Configuration listing, loading and saving
//   - WebSocket upgrade handling
//   - Health check
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create new session ({"config_id": "classic"})
//   - GET /api/sessions - List sessions (?sort=created|accessed|score&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current game state
//   - POST /api/sessions/{id}/move - Slide tiles ({"direction": "up|down|left|right"})
//   - POST /api/sessions/{id}/restart - Start a new game
//   - POST /api/sessions/{id}/continue - Keep playing after reaching the win tile
//   - POST /api/sessions/{id}/input - Apply an abstract input event
//
// Autoplay:
//   - GET /api/sessions/{id}/agent - Orchestrator status
//   - PUT /api/sessions/{id}/agent/mode - Select agent mode ({"mode": "random"})
//   - POST /api/sessions/{id}/agent/toggle - Start or stop autoplay ({"delay_ms": 50})
//   - GET /api/agent/modes - Known agent modes
//
// Configuration:
//   - GET /api/configs - List available configurations
//   - GET /api/configs/{name} - Load one configuration
//   - POST /api/configs - Save a configuration
//
// Other:
//   - GET /ws?session={id} - WebSocket stream of render and agent events
//   - GET /health - Liveness probe
//
// Error Handling:
//
// Errors are returned as JSON with a status code derived from the
// underlying error (404 unknown session or config, 409 autoplay conflicts,
// 503 model still downloading, 400 invalid input):
//
//	{
//	  "error": "error message"
//	}
package api
