// Package engine provides the core game logic for the sliding-tile merge game.
//
// The engine package implements the game mechanics including:
//   - The square Board of optional power-of-two tiles
//   - Move resolution: traversal order, sliding, single merges per move
//   - Win and game-over detection
//   - The GameEngine session state machine (active, won pending, over)
//   - Configuration defaults and validation
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. A GameEngine owns a Board and the score flags,
// and reports every change to a Renderer and a Storage port. Resolve is the
// pure move function the engine delegates to.
//
// Usage:
//
//	eng, err := engine.NewEngine(engine.DefaultConfig(),
//		engine.WithStorage(store),
//		engine.WithRenderer(sink))
//	if err != nil {
//		log.Fatal(err)
//	}
//	eng.Setup()
//
//	result := eng.Move(engine.Left)
//	state := eng.GetState()
//
// Game Rules:
//
// Every move slides all tiles as far as possible in one direction. Two tiles of
// equal value that collide merge into one tile of double value, and the merged
// value is added to the score. A tile produced by a merge cannot merge again in
// the same move. After every move that changed the board a new tile (2, or 4
// with a small probability) appears on a random empty cell. The game is won
// when a tile reaches the win value and over when no move can change the board.
package engine
