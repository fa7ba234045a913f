// Package service provides the business logic layer for the 2048 server.
//
// The service package implements:
//   - Multi-session game management
//   - Preset loading and listing
//   - Move processing and validation
//   - Autoplay control per session
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages preset loading and validation.
//
// Architecture:
//
// The service layer sits between the transports (HTTP, WebSocket, MCP and the
// terminal) and the game engine. Each session owns its own engine and its own
// autoplay orchestrator. Every transport turns player actions into an
// InputEvent, and HandleInput routes it to the matching operation.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr)
//
//	info, err := gameService.CreateSession(ctx, "classic")
//	if err != nil {
//		log.Fatal().Err(err).Send()
//	}
//
//	result, err := gameService.Move(ctx, info.ID, "left")
//	status, err := gameService.SelectMode(ctx, info.ID, "random")
//	status, err = gameService.ToggleAgent(ctx, info.ID, nil)
//
// Autoplay Rules:
//
// Restarting while autoplay runs fails with ErrAgentActive and switching modes
// fails with autoplay.ErrRunning; neither is queued. Manual moves and
// continuing after a win are accepted at any time.
package service
