package engine

import (
	"time"

	"github.com/wricardo/mcp-training/racinggame/game/collision"
)

// Direction is a steering direction
type Direction string

// Throttle is a longitudinal input direction
type Throttle string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"

	ThrottleForward  Throttle = "forward"
	ThrottleBackward Throttle = "backward"

	// Car identifiers used in events and lap records
	CarPlayer = "player"
	CarSecond = "second"

	// Defaults reproduce the original game's tuning
	Levels              = 5
	DefaultFPS          = 60
	MinFPS              = 1
	MaxFPS              = 240
	DefaultMaxSpeed     = 5.0
	DefaultRotation     = 5.0
	DefaultAcceleration = 0.1
	DefaultCarWidth     = 14
	DefaultCarHeight    = 29

	// Limits on what a config may ask the track builder to allocate
	MaxCanvasSize = 4096
	MaxCarSize    = 256
	MaxScale      = 8.0
)

// Event types emitted by Race.Tick
const (
	EventLevelStarted  = "level_started"
	EventBounce        = "bounce"
	EventWrongWay      = "wrong_way"
	EventLapComplete   = "lap_complete"
	EventSecondFinish  = "second_finish"
	EventLevelAdvanced = "level_advanced"
	EventGameFinished  = "game_finished"
	EventWaypointAdded = "waypoint_added"
	EventReset         = "reset"
)

// Point is a track-space coordinate
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// CarSpec holds the per-instance constants of a car
type CarSpec struct {
	SpriteID      string  `json:"sprite_id"`
	Start         Point   `json:"start"`
	MaxSpeed      float64 `json:"max_speed"`
	RotationSpeed float64 `json:"rotation_speed"`
	Acceleration  float64 `json:"acceleration"`
}

// Controls is the set of held keys for one car during a tick
type Controls struct {
	Left     bool `json:"left,omitempty"`
	Right    bool `json:"right,omitempty"`
	Forward  bool `json:"forward,omitempty"`
	Backward bool `json:"backward,omitempty"`
}

// Throttled reports whether either throttle key is held
func (c Controls) Throttled() bool {
	return c.Forward || c.Backward
}

// Input is everything the input source reports for one tick
type Input struct {
	Player  Controls `json:"player"`
	Second  Controls `json:"second"`
	KeyDown bool     `json:"key_down,omitempty"` // any key went down this tick
	Quit    bool     `json:"quit,omitempty"`
	Clicks  []Point  `json:"clicks,omitempty"` // mouse clicks, recorded as second-car waypoints
}

// Track bundles the collision masks a race is played against
type Track struct {
	Name      string
	Width     int
	Height    int
	Border    *collision.Mask
	Finish    *collision.Mask
	FinishPos Point
	CarMasks  map[string]*collision.Mask // keyed by sprite ID
}

// Event is something notable that happened during a tick
type Event struct {
	Type     string `json:"type"`
	Car      string `json:"car,omitempty"`
	Message  string `json:"message,omitempty"`
	Tick     int64  `json:"tick"`
	Position *Point `json:"position,omitempty"`
}

// LapRecord is a completed player lap
type LapRecord struct {
	ID          string        `json:"id"`
	Car         string        `json:"car"`
	Level       int           `json:"level"`
	Ticks       int64         `json:"ticks"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
	LapNumber   int           `json:"lap_number"`
}

// TickResult summarizes one call to Race.Tick
type TickResult struct {
	Tick     int64   `json:"tick"`
	Waiting  bool    `json:"waiting"`
	Finished bool    `json:"finished"`
	Events   []Event `json:"events,omitempty"`
}

// RaceState is a serializable snapshot of a race
type RaceState struct {
	ConfigName     string      `json:"config_name"`
	Tick           int64       `json:"tick"`
	Player         Car         `json:"player"`
	Second         Car         `json:"second"`
	Info           GameInfo    `json:"info"`
	Laps           []LapRecord `json:"laps"`
	TotalLaps      int         `json:"total_laps"`
	LapStartTick   int64       `json:"lap_start_tick"`
	LevelTime      float64     `json:"level_time"` // seconds, start minus now
	Waiting        bool        `json:"waiting"`
	Finished       bool        `json:"finished"`
	Message        string      `json:"message"`
	FinishNotified bool        `json:"finish_notified,omitempty"`
}
