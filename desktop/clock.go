package main

import (
	"time"

	"github.com/wricardo/mcp-training/racinggame/game/engine"
)

// tickClock derives time from the number of frames run, so lap times stay
// exact when the window drops frames
type tickClock struct {
	start time.Time
	tps   int
	ticks int64
}

var _ engine.Clock = (*tickClock)(nil)

func newTickClock(start time.Time, tps int) *tickClock {
	if tps < engine.MinFPS || tps > engine.MaxFPS {
		tps = engine.DefaultFPS
	}
	return &tickClock{start: start, tps: tps}
}

func (c *tickClock) Advance() {
	c.ticks++
}

func (c *tickClock) Now() time.Time {
	return c.start.Add(time.Duration(c.ticks) * time.Second / time.Duration(c.tps))
}
