package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestGameInfo_GameFinished(t *testing.T) {
	for level := 1; level <= 6; level++ {
		info := NewGameInfo(Levels, newFakeClock())
		info.Level = level
		assert.Equal(t, level == 6, info.GameFinished(), "level %d", level)
	}
}

func TestGameInfo_Reset(t *testing.T) {
	info := NewGameInfo(Levels, newFakeClock())
	info.StartLevel()
	info.NextLevel()
	info.NextLevel()

	info.Reset()
	assert.Equal(t, 1, info.Level)
	assert.False(t, info.Started)
	assert.True(t, info.LevelStartTime.IsZero())
}

func TestGameInfo_StartThenNextTwice(t *testing.T) {
	info := NewGameInfo(Levels, newFakeClock())
	info.StartLevel()
	info.NextLevel()
	info.NextLevel()

	assert.Equal(t, 3, info.Level)
	assert.False(t, info.Started)
}

func TestGameInfo_LevelTime(t *testing.T) {
	clock := newFakeClock()
	info := NewGameInfo(Levels, clock)

	clock.Advance(time.Minute)
	assert.Equal(t, time.Duration(0), info.LevelTime(), "zero while awaiting start")

	info.StartLevel()
	clock.Advance(3 * time.Second)
	assert.Equal(t, -3*time.Second, info.LevelTime())
}

func TestNewGameInfo_Defaults(t *testing.T) {
	info := NewGameInfo(0, nil)
	assert.Equal(t, Levels, info.Levels)
	assert.Equal(t, 1, info.Level)
	assert.False(t, info.Started)
}
