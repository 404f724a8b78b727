// Package service provides the business logic layer for the racing game.
//
// The service package implements:
//   - Multi-session race management
//   - Stepping a race by ticks with scripted input
//   - Lap history with paging and best lap
//   - Configuration listing, loading and saving
//
// Core Interfaces:
//
// RaceService is the main service interface used by every transport.
// SessionManager handles session creation, retrieval and persistence.
// ConfigManager loads race configs and builds their collision tracks.
//
// Architecture:
//
// The service layer sits between the transports (HTTP, WebSocket, MCP) and
// the engine. Each session owns an independent engine.Race; the service
// serializes access to all of them behind one lock and saves a session after
// every mutation.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	raceService := service.NewRaceService(sessionMgr, configMgr)
//
//	info, err := raceService.CreateSession(ctx, "sprint")
//	result, err := raceService.Step(ctx, info.ID, &service.StepRequest{
//		Input: engine.Input{KeyDown: true, Player: engine.Controls{Forward: true}},
//		Ticks: 30,
//	})
//
// Errors:
//
// ErrSessionNotFound, ErrConfigNotFound, ErrInvalidConfig and ErrInvalidInput
// are wrapped by every operation so transports can map them with errors.Is.
package service
