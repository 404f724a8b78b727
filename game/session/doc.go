// Package session provides session management for races.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Optional file persistence of each race's state
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager is the main session manager that handles all session operations.
// Each service.Session owns its own engine.Race built from a config and its
// collision track, along with creation and last access times.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs when none is given. IDs are matched
// case-insensitively and may not contain path separators or dots, since they
// double as file names on disk.
//
// Persistence:
//
// FilePersistence stores one versioned JSON file per session holding the
// config id and an engine.RaceState snapshot. Files are replaced through a
// temp file and rename. Loading rebuilds the race from the config manager and
// restores the snapshot, so car masks always come from the current track.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("sessions", configManager)
//	manager := session.NewManagerWithPersistence(persistence)
//	_ = manager.LoadPersistedSessions()
//
//	sess, err := manager.Create("", "classic", raceConfig, track)
//	sess, err = manager.Get(sess.ID)
package session
