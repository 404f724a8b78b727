package main

import (
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
	"github.com/wricardo/mcp-training/racinggame/game/track"
)

var waypointColor = color.RGBA{255, 220, 0, 255}

// sprites are the track layers and car images uploaded to the GPU
type sprites struct {
	background *ebiten.Image
	track      *ebiten.Image
	finish     *ebiten.Image
	border     *ebiten.Image
	cars       map[string]*ebiten.Image
}

func newSprites(layers *track.Layers) *sprites {
	s := &sprites{cars: map[string]*ebiten.Image{}}
	if layers.Background != nil {
		s.background = ebiten.NewImageFromImage(layers.Background)
	}
	if layers.Track != nil {
		s.track = ebiten.NewImageFromImage(layers.Track)
	}
	if layers.Finish != nil {
		s.finish = ebiten.NewImageFromImage(layers.Finish)
	}
	if layers.Border != nil {
		s.border = ebiten.NewImageFromImage(layers.Border)
	}
	for id, img := range layers.Cars {
		s.cars[id] = ebiten.NewImageFromImage(img)
	}
	return s
}

// Game is the ebiten game for one race, played locally or watched remotely
type Game struct {
	width, height int
	finishPos     engine.Point
	sprites       *sprites

	// local play
	race  *engine.Race
	clock *tickClock
	input *keyboardInput

	// frame is the last state drawn; in watch mode the websocket reader
	// replaces it
	mu    sync.RWMutex
	frame engine.Frame
}

// NewLocalGame creates a game that runs race with keyboard input
func NewLocalGame(race *engine.Race, clock *tickClock, layers *track.Layers) *Game {
	t := race.Track()
	g := &Game{
		width:     t.Width,
		height:    t.Height,
		finishPos: t.FinishPos,
		sprites:   newSprites(layers),
		race:      race,
		clock:     clock,
		input:     &keyboardInput{},
	}
	g.frame = race.Frame()
	return g
}

// NewWatchGame creates a game that only draws states pushed to SetState
func NewWatchGame(t *engine.Track, layers *track.Layers) *Game {
	return &Game{
		width:     t.Width,
		height:    t.Height,
		finishPos: t.FinishPos,
		sprites:   newSprites(layers),
	}
}

// SetState replaces the drawn state
func (g *Game) SetState(state *engine.RaceState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frame = engine.Frame{State: state}
	if state.Waiting {
		g.frame.Prompt = state.Message
	}
}

// Update implements ebiten.Game
func (g *Game) Update() error {
	if g.race == nil {
		if ebiten.IsWindowBeingClosed() {
			return ebiten.Termination
		}
		return nil
	}

	in := g.input.Poll()
	g.clock.Advance()

	result, ok := advance(g.race, in)
	if !ok {
		return ebiten.Termination
	}
	for _, ev := range result.Events {
		log.Info("race event", "type", ev.Type, "car", ev.Car, "message", ev.Message, "tick", ev.Tick)
	}

	frame := g.race.Frame()
	g.mu.Lock()
	g.frame = frame
	g.mu.Unlock()
	return nil
}

// Draw implements ebiten.Game. Layers go bottom to top: background, track,
// finish line, border, waypoints, cars, text.
func (g *Game) Draw(screen *ebiten.Image) {
	g.mu.RLock()
	frame := g.frame
	g.mu.RUnlock()

	drawLayer(screen, g.sprites.background, 0, 0)
	drawLayer(screen, g.sprites.track, 0, 0)
	drawLayer(screen, g.sprites.finish, g.finishPos.X, g.finishPos.Y)
	drawLayer(screen, g.sprites.border, 0, 0)

	state := frame.State
	if state == nil {
		ebitenutil.DebugPrint(screen, "Waiting for race state...")
		return
	}

	for _, p := range state.Second.Path {
		vector.DrawFilledRect(screen, float32(p.X)-2, float32(p.Y)-2, 4, 4, waypointColor, false)
	}

	g.drawCar(screen, state.Player)
	g.drawCar(screen, state.Second)

	ebitenutil.DebugPrintAt(screen, statusLine(state), 10, 10)
	if state.Message != "" && frame.Prompt == "" {
		ebitenutil.DebugPrintAt(screen, state.Message, 10, 26)
	}
	if frame.Prompt != "" {
		ebitenutil.DebugPrintAt(screen, frame.Prompt, g.width/2-3*len(frame.Prompt), g.height/2)
	}
}

// drawCar draws a car rotated about its sprite centre, anchored at its
// top-left position. Rotation is visual only; collisions use the upright mask.
func (g *Game) drawCar(screen *ebiten.Image, car engine.Car) {
	img := g.sprites.cars[car.SpriteID]
	if img == nil {
		return
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(-float64(w)/2, -float64(h)/2)
	op.GeoM.Rotate(screenRotation(car.Heading))
	op.GeoM.Translate(float64(w)/2, float64(h)/2)
	op.GeoM.Translate(car.X, car.Y)
	screen.DrawImage(img, op)
}

// screenRotation converts a heading in degrees, positive turning left, to
// ebiten's clockwise radians
func screenRotation(heading float64) float64 {
	return -heading * math.Pi / 180
}

func statusLine(state *engine.RaceState) string {
	if state.Finished {
		return fmt.Sprintf("GAME FINISHED  Laps: %d", state.TotalLaps)
	}
	return fmt.Sprintf("Level %d/%d  Laps: %d  Time: %.1fs  Speed: %.1f",
		state.Info.Level, state.Info.Levels, state.TotalLaps, -state.LevelTime, state.Player.Speed)
}

func drawLayer(screen, img *ebiten.Image, x, y float64) {
	if img == nil {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(x, y)
	screen.DrawImage(img, op)
}

// Layout returns the track size
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.width, g.height
}
