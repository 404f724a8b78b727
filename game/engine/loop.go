package engine

import (
	"context"
	"fmt"
	"time"
)

// Frame is what a renderer draws for one tick
type Frame struct {
	State  *RaceState
	Prompt string // level start prompt while waiting, empty otherwise
}

// InputSource reports the controls for the next tick
type InputSource interface {
	Poll() Input
}

// Renderer draws a frame
type Renderer interface {
	Render(frame Frame) error
}

// Frame returns the current renderable snapshot
func (r *Race) Frame() Frame {
	frame := Frame{State: r.State()}
	if frame.State.Waiting {
		frame.Prompt = r.prompt()
	}
	return frame
}

// Run drives race at fps ticks per second until the input source reports
// Quit or ctx is done. While a level awaits its start, Run keeps rendering
// the prompt and polling input until a key goes down.
func Run(ctx context.Context, race *Race, input InputSource, renderer Renderer, fps int) error {
	if fps < MinFPS || fps > MaxFPS {
		fps = DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	wait := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			return nil
		}
	}

	for {
		if err := wait(); err != nil {
			return err
		}
		if err := renderer.Render(race.Frame()); err != nil {
			return fmt.Errorf("render tick %d: %w", race.tick, err)
		}

		for !race.Started() && !race.Finished() {
			in := input.Poll()
			if in.Quit {
				return nil
			}
			if in.KeyDown {
				race.StartLevel()
				break
			}
			if err := wait(); err != nil {
				return err
			}
			if err := renderer.Render(race.Frame()); err != nil {
				return fmt.Errorf("render prompt: %w", err)
			}
		}

		in := input.Poll()
		if in.Quit {
			return nil
		}
		race.Tick(in)
	}
}

// ScriptedInput replays a fixed sequence of inputs and then reports Quit
type ScriptedInput struct {
	inputs []Input
	next   int
}

// NewScriptedInput creates an input source over inputs
func NewScriptedInput(inputs []Input) *ScriptedInput {
	return &ScriptedInput{inputs: inputs}
}

// Poll returns the next scripted input, or Quit once exhausted
func (s *ScriptedInput) Poll() Input {
	if s.next >= len(s.inputs) {
		return Input{Quit: true}
	}
	in := s.inputs[s.next]
	s.next++
	return in
}

// Remaining returns how many inputs have not been polled yet
func (s *ScriptedInput) Remaining() int {
	return len(s.inputs) - s.next
}
