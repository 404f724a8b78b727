package service

import (
	"time"

	"github.com/wricardo/mcp-training/racinggame/game/engine"
)

// SessionInfo provides information about a race session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	RaceState      *engine.RaceState  `json:"race_state"`
	RaceConfig     *engine.RaceConfig `json:"race_config"`
}

// StepRequest advances a race by Ticks frames, holding Input for each.
// Clicks and KeyDown apply to the first tick only.
type StepRequest struct {
	Input engine.Input `json:"input"`
	Ticks int          `json:"ticks"`
	Reset bool         `json:"reset,omitempty"`
}

// StepResult contains the result of a step operation
type StepResult struct {
	TicksRequested int               `json:"ticks_requested"`
	TicksExecuted  int               `json:"ticks_executed"`
	Truncated      bool              `json:"truncated,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	StoppedReason  string            `json:"stopped_reason,omitempty"` // waiting|game_finished; laps do not stop a step
	RaceState      *engine.RaceState `json:"race_state"`
	Events         []RaceEvent       `json:"events"`

	// Start/end snapshot
	StartPos engine.Point `json:"start_pos"`
	EndPos   engine.Point `json:"end_pos"`
	LapDelta int          `json:"lap_delta"`
}

// RaceEvent represents an event that occurred during a race
type RaceEvent struct {
	Type      string        `json:"type"` // level_started, bounce, wrong_way, lap_complete, second_finish, level_advanced, game_finished, waypoint_added, reset
	Car       string        `json:"car,omitempty"`
	Message   string        `json:"message,omitempty"`
	Tick      int64         `json:"tick"`
	Timestamp time.Time     `json:"timestamp"`
	Position  *engine.Point `json:"position,omitempty"`
}

// HistoryOptions configures lap history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated lap history
type HistoryResponse struct {
	Laps        []engine.LapRecord `json:"laps"`
	TotalLaps   int                `json:"total_laps"`
	BestLap     *engine.LapRecord  `json:"best_lap,omitempty"`
	Page        int                `json:"page"`
	PageSize    int                `json:"page_size"`
	TotalPages  int                `json:"total_pages"`
	HasNext     bool               `json:"has_next"`
	HasPrevious bool               `json:"has_previous"`
}

// ConfigInfo provides information about a race configuration
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	Levels      int    `json:"levels"`
	FPS         int    `json:"fps"`
	TrackKind   string `json:"track_kind"` // "image" or "shape"
}
