// Package session provides session management for the 2048 server.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Wiring of each session's engine, storage, render sink and autoplay
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager is the main session manager that handles all session operations.
// FilePersistence stores each session as a JSON file and doubles as the
// engine's storage port through ForSession. MemoryStorage is the storage used
// when nothing is persisted.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference. Custom IDs are
// accepted when they only contain letters, digits, '-' and '_', since they
// become file names.
//
// Persistence:
//
// A session file holds the session metadata, the preset it was created from
// and the game in progress. The engine rewrites game_state after every move
// and clears it once the game is over. The best score is shared by all
// sessions and kept in best_score.json.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("sessions")
//	if err != nil {
//		log.Fatal().Err(err).Send()
//	}
//	manager := session.NewManagerWithPersistence(persistence,
//		session.WithRenderers(hub.Renderer),
//		session.WithAgentEvents(hub.BroadcastAgentEvent),
//	)
//
//	sess, err := manager.Create("", config)
//	sess.Engine.Move(engine.Left)
package session
