package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/mcp-training/racinggame/game/engine"
)

// MaxStepTicks caps the ticks a single Step call may run
const MaxStepTicks = 600

// Errors shared by the service, its storage managers and the transports,
// matched with errors.Is
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrConfigNotFound  = errors.New("configuration not found")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidInput    = errors.New("invalid input")
)

// RaceService defines all race-related operations
type RaceService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Race Operations
	Step(ctx context.Context, sessionID string, req StepRequest) (*StepResult, error)
	StartLevel(ctx context.Context, sessionID string) (*engine.RaceState, error)
	Reset(ctx context.Context, sessionID string) (*engine.RaceState, error)
	AddWaypoint(ctx context.Context, sessionID string, point engine.Point) (*engine.RaceState, error)

	// Race State
	GetRaceState(ctx context.Context, sessionID string) (*engine.RaceState, error)
	GetLapHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.RaceConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.RaceConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configID string, config *engine.RaceConfig, track *engine.Track) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles race configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.RaceConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.RaceConfig
	DefaultID() string
	SaveConfig(name string, config *engine.RaceConfig) error
	BuildTrack(name string) (*engine.Track, error)
}

// Session represents an active race session
type Session struct {
	ID             string
	ConfigID       string
	Race           *engine.Race
	Config         *engine.RaceConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
