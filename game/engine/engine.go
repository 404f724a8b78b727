package engine

import (
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

// Engine provides the main interface for race operations
type Engine interface {
	// Simulation
	Tick(in Input) TickResult
	StartLevel() bool
	Reset() *RaceState
	AddWaypoint(p Point)

	// State
	State() *RaceState
	SetState(state *RaceState) error
	Started() bool
	Finished() bool
	Frame() Frame

	// Configuration and history
	Config() *RaceConfig
	Laps() []LapRecord
}

// Race owns both cars, the level state and the track, and advances them one
// tick at a time. A Race is not safe for concurrent use; a single loop or the
// session lock owns it.
type Race struct {
	config *RaceConfig
	track  *Track
	clock  Clock

	player *Car
	second *Car
	info   *GameInfo

	tick           int64
	lapStartTick   int64
	laps           []LapRecord
	totalLaps      int
	message        string
	finishNotified bool
}

var _ Engine = (*Race)(nil)

// NewRace creates a race awaiting its first level start. A nil config uses
// DefaultRaceConfig; a nil track collides with nothing.
func NewRace(config *RaceConfig, track *Track, clock Clock) *Race {
	if config == nil {
		config = DefaultRaceConfig()
	}
	if track == nil {
		track = &Track{Name: config.Name}
	}
	if clock == nil {
		clock = SystemClock{}
	}

	r := &Race{
		config:  config,
		track:   track,
		clock:   clock,
		player:  NewCar(config.Player.Spec(), track.CarMasks[config.Player.SpriteID]),
		second:  NewCar(config.Second.Spec(), track.CarMasks[config.Second.SpriteID]),
		info:    NewGameInfo(config.Levels, clock),
		laps:    []LapRecord{},
		message: config.Messages.Welcome,
	}
	return r
}

// Player returns the arrow-key car
func (r *Race) Player() *Car { return r.player }

// Second returns the WASD car
func (r *Race) Second() *Car { return r.second }

// Info returns the level state
func (r *Race) Info() *GameInfo { return r.info }

// Track returns the collision data the race runs against
func (r *Race) Track() *Track { return r.track }

// Config returns the race configuration
func (r *Race) Config() *RaceConfig { return r.config }

// Started reports whether the current level's timer is running
func (r *Race) Started() bool { return r.info.Started }

// Finished reports whether every level has been played
func (r *Race) Finished() bool { return r.info.GameFinished() }

// Laps returns a copy of the completed lap history
func (r *Race) Laps() []LapRecord {
	out := make([]LapRecord, len(r.laps))
	copy(out, r.laps)
	return out
}

// StartLevel starts the current level if it is waiting. It reports whether
// the level was started by this call.
func (r *Race) StartLevel() bool {
	if r.info.Started || r.info.GameFinished() {
		return false
	}
	r.info.StartLevel()
	r.lapStartTick = r.tick
	r.message = ""
	return true
}

// AddWaypoint records a point on the second car's path
func (r *Race) AddWaypoint(p Point) {
	r.second.AddWaypoint(p)
}

// Tick advances the race by one frame
func (r *Race) Tick(in Input) TickResult {
	r.tick++
	result := TickResult{Tick: r.tick}

	if r.info.GameFinished() {
		if !r.finishNotified {
			r.finishNotified = true
			r.message = r.config.Messages.GameFinished
			result.Events = append(result.Events, r.event(EventGameFinished, "", r.message, nil))
		}
		result.Finished = true
		return result
	}

	if !r.info.Started {
		if !in.KeyDown {
			result.Waiting = true
			r.message = r.prompt()
			return result
		}
		r.StartLevel()
		result.Events = append(result.Events, r.event(EventLevelStarted, "",
			fmt.Sprintf("level %d", r.info.Level), nil))
	}

	for _, click := range in.Clicks {
		p := click
		r.second.AddWaypoint(p)
		result.Events = append(result.Events, r.event(EventWaypointAdded, CarSecond, "", &p))
	}

	r.drive(r.player, in.Player, CarPlayer, &result)
	r.drive(r.second, in.Second, CarSecond, &result)

	r.checkFinish(&result)

	result.Finished = r.info.GameFinished()
	result.Waiting = !result.Finished && !r.info.Started
	return result
}

// drive applies one car's controls, drag and border bounce
func (r *Race) drive(car *Car, controls Controls, name string, result *TickResult) {
	if controls.Left {
		car.Rotate(DirectionLeft)
	}
	if controls.Right {
		car.Rotate(DirectionRight)
	}
	if controls.Forward {
		car.Accelerate(ThrottleForward)
	}
	if controls.Backward {
		car.Accelerate(ThrottleBackward)
	}
	if !controls.Throttled() {
		car.Coast()
	}

	if _, hit := car.Collide(r.track.Border, 0, 0); hit {
		car.Bounce()
		pos := car.Position()
		result.Events = append(result.Events, r.event(EventBounce, name, "", &pos))
	}
}

// checkFinish handles both cars touching the finish line
func (r *Race) checkFinish(result *TickResult) {
	finish := r.track.Finish
	fx, fy := r.track.FinishPos.X, r.track.FinishPos.Y

	if _, hit := r.player.Collide(finish, fx, fy); hit {
		if r.player.Speed < 0 {
			r.player.Bounce()
			r.message = r.config.Messages.WrongWay
			pos := r.player.Position()
			result.Events = append(result.Events, r.event(EventWrongWay, CarPlayer, r.message, &pos))
		} else {
			lap := r.recordLap()
			r.player.Reset()
			r.second.Reset()
			r.message = r.config.Messages.LapComplete
			result.Events = append(result.Events, r.event(EventLapComplete, CarPlayer,
				fmt.Sprintf("%s (%s)", r.message, lap.Duration.Round(time.Millisecond)), nil))

			if r.config.AdvanceLevelOnLap {
				r.info.NextLevel()
				result.Events = append(result.Events, r.event(EventLevelAdvanced, "",
					fmt.Sprintf("level %d", r.info.Level), nil))
			}
		}
	}

	if _, hit := r.second.Collide(finish, fx, fy); hit {
		r.player.Reset()
		r.second.Reset()
		r.second.ClearPath()
		r.lapStartTick = r.tick
		result.Events = append(result.Events, r.event(EventSecondFinish, CarSecond, "", nil))
	}
}

func (r *Race) recordLap() LapRecord {
	ticks := r.tick - r.lapStartTick
	r.totalLaps++
	lap := LapRecord{
		ID:          ksuid.New().String(),
		Car:         CarPlayer,
		Level:       r.info.Level,
		Ticks:       ticks,
		Duration:    ticksToDuration(ticks, r.config.FPS),
		CompletedAt: r.clock.Now(),
		LapNumber:   r.totalLaps,
	}
	r.laps = append(r.laps, lap)
	r.lapStartTick = r.tick
	return lap
}

func (r *Race) event(kind, car, message string, pos *Point) Event {
	return Event{Type: kind, Car: car, Message: message, Tick: r.tick, Position: pos}
}

func (r *Race) prompt() string {
	return fmt.Sprintf(r.config.Messages.PressToStart, r.info.Level)
}

// Reset sends both cars to the grid and the game back to level 1, awaiting
// start. Lap history is kept.
func (r *Race) Reset() *RaceState {
	r.player.Reset()
	r.second.Reset()
	r.second.ClearPath()
	r.info.Reset()
	r.lapStartTick = r.tick
	r.finishNotified = false
	r.message = r.config.Messages.Welcome
	return r.State()
}

// State returns a snapshot of the race
func (r *Race) State() *RaceState {
	player := *r.player
	player.Path = append([]Point{}, r.player.Path...)
	second := *r.second
	second.Path = append([]Point{}, r.second.Path...)

	finished := r.info.GameFinished()
	return &RaceState{
		ConfigName:     r.config.Name,
		Tick:           r.tick,
		Player:         player,
		Second:         second,
		Info:           *r.info,
		Laps:           r.Laps(),
		TotalLaps:      r.totalLaps,
		LapStartTick:   r.lapStartTick,
		LevelTime:      r.info.LevelTime().Seconds(),
		Waiting:        !finished && !r.info.Started,
		Finished:       finished,
		Message:        r.message,
		FinishNotified: r.finishNotified,
	}
}

// SetState restores a snapshot (used for persistence loading)
func (r *Race) SetState(state *RaceState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}

	restoreCar(r.player, state.Player)
	restoreCar(r.second, state.Second)

	info := state.Info
	if info.Levels < 1 {
		info.Levels = r.config.Levels
	}
	if info.Level < 1 {
		info.Level = 1
	}
	info.SetClock(r.clock)
	r.info = &info

	r.tick = state.Tick
	r.lapStartTick = state.LapStartTick
	r.laps = append([]LapRecord{}, state.Laps...)
	r.totalLaps = state.TotalLaps
	if r.totalLaps < len(r.laps) {
		r.totalLaps = len(r.laps)
	}
	r.message = state.Message
	r.finishNotified = state.FinishNotified
	return nil
}

// restoreCar copies dynamic fields while keeping the car's mask and tuning
func restoreCar(car *Car, saved Car) {
	car.X, car.Y = saved.X, saved.Y
	car.Heading = saved.Heading
	car.Speed = clampSpeed(saved.Speed, car.MaxSpeed)
	car.CurrentPoint = saved.CurrentPoint
	car.Path = append([]Point{}, saved.Path...)
}

func ticksToDuration(ticks int64, fps int) time.Duration {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return time.Duration(ticks) * time.Second / time.Duration(fps)
}
