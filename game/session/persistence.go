package session

import (
	"time"

	"github.com/wricardo/mcp-training/racinggame/game/engine"
	"github.com/wricardo/mcp-training/racinggame/game/service"
)

// SessionPersistence stores races between server runs
type SessionPersistence interface {
	Save(session *service.Session) error
	Load(id string) (*service.Session, error)
	Delete(id string) error
	ListAll() ([]string, error)
	Exists(id string) bool
}

// fileFormatVersion is bumped when PersistedSessionData changes shape
const fileFormatVersion = 1

// PersistedSessionData is the on-disk form of a race. The config itself is
// not stored; the race is rebuilt from ConfigID on load.
type PersistedSessionData struct {
	Version        int               `json:"version"`
	ID             string            `json:"id"`
	ConfigID       string            `json:"config_id"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	RaceState      *engine.RaceState `json:"race_state"`
}
