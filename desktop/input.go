package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
)

// carKeys binds one car's controls to keys
type carKeys struct {
	Left, Right, Forward, Backward ebiten.Key
}

var (
	playerKeys = carKeys{ebiten.KeyArrowLeft, ebiten.KeyArrowRight, ebiten.KeyArrowUp, ebiten.KeyArrowDown}
	secondKeys = carKeys{ebiten.KeyA, ebiten.KeyD, ebiten.KeyW, ebiten.KeyS}
)

// controlsFrom reads the held keys of one car
func controlsFrom(pressed func(ebiten.Key) bool, keys carKeys) engine.Controls {
	return engine.Controls{
		Left:     pressed(keys.Left),
		Right:    pressed(keys.Right),
		Forward:  pressed(keys.Forward),
		Backward: pressed(keys.Backward),
	}
}

// keyboardInput is the engine.InputSource backed by ebiten's input state.
// It must be polled from Update.
type keyboardInput struct {
	justPressed []ebiten.Key
}

var _ engine.InputSource = (*keyboardInput)(nil)

func (k *keyboardInput) Poll() engine.Input {
	k.justPressed = inpututil.AppendJustPressedKeys(k.justPressed[:0])

	in := engine.Input{
		Player:  controlsFrom(ebiten.IsKeyPressed, playerKeys),
		Second:  controlsFrom(ebiten.IsKeyPressed, secondKeys),
		KeyDown: len(k.justPressed) > 0,
		Quit:    inpututil.IsKeyJustPressed(ebiten.KeyEscape) || ebiten.IsWindowBeingClosed(),
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		in.Clicks = append(in.Clicks, engine.Point{X: float64(x), Y: float64(y)})
	}
	return in
}

// advance applies one frame of input the way engine.Run does: a waiting
// level only listens for the start key, then play continues in the same
// frame. It reports false when the input asks to quit.
func advance(race engine.Engine, in engine.Input) (engine.TickResult, bool) {
	if in.Quit {
		return engine.TickResult{}, false
	}
	if !race.Started() && !race.Finished() {
		if !in.KeyDown {
			return engine.TickResult{Waiting: true}, true
		}
		race.StartLevel()
	}
	return race.Tick(in), true
}
