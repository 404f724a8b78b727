package engine

import "time"

// Clock supplies the current time. Tests swap in a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time {
	return time.Now()
}

// GameInfo tracks the current level and whether its timer is running.
// Level is 1-based; the game is finished once Level exceeds Levels.
type GameInfo struct {
	Level          int       `json:"level"`
	Levels         int       `json:"levels"`
	Started        bool      `json:"started"`
	LevelStartTime time.Time `json:"level_start_time"`

	clock Clock
}

// NewGameInfo returns a GameInfo at level 1, awaiting start
func NewGameInfo(levels int, clock Clock) *GameInfo {
	if levels < 1 {
		levels = Levels
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &GameInfo{
		Level:  1,
		Levels: levels,
		clock:  clock,
	}
}

// SetClock replaces the time source, used after restoring a snapshot
func (g *GameInfo) SetClock(clock Clock) {
	if clock == nil {
		clock = SystemClock{}
	}
	g.clock = clock
}

func (g *GameInfo) now() time.Time {
	if g.clock == nil {
		return time.Now()
	}
	return g.clock.Now()
}

// StartLevel starts the level timer
func (g *GameInfo) StartLevel() {
	g.Started = true
	g.LevelStartTime = g.now()
}

// NextLevel advances the level and waits for the next start
func (g *GameInfo) NextLevel() {
	g.Level++
	g.Started = false
}

// Reset returns to level 1, awaiting start
func (g *GameInfo) Reset() {
	g.Level = 1
	g.Started = false
	g.LevelStartTime = time.Time{}
}

// GameFinished reports whether every level has been played
func (g *GameInfo) GameFinished() bool {
	return g.Level > g.Levels
}

// LevelTime returns start minus now while the level runs, so the value is
// negative once the clock has moved. It is zero while awaiting start.
func (g *GameInfo) LevelTime() time.Duration {
	if !g.Started {
		return 0
	}
	return g.LevelStartTime.Sub(g.now())
}
