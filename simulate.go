package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/racinggame/game/config"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
)

// logRenderer logs every nth frame instead of drawing it
type logRenderer struct {
	every  int
	frames int
}

func (r *logRenderer) Render(frame engine.Frame) error {
	r.frames++
	if r.every <= 0 || r.frames%r.every != 0 {
		return nil
	}

	s := frame.State
	if frame.Prompt != "" {
		log.Debug("frame", "n", r.frames, "prompt", frame.Prompt)
		return nil
	}
	log.Info("frame", "n", r.frames, "tick", s.Tick, "level", s.Info.Level,
		"x", fmt.Sprintf("%.1f", s.Player.X), "y", fmt.Sprintf("%.1f", s.Player.Y),
		"heading", s.Player.Heading, "speed", fmt.Sprintf("%.2f", s.Player.Speed),
		"laps", s.TotalLaps)
	return nil
}

// parseControls maps control names to held keys
func parseControls(names []string) (engine.Controls, error) {
	var ctl engine.Controls
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			switch strings.ToLower(strings.TrimSpace(part)) {
			case "forward", "up":
				ctl.Forward = true
			case "backward", "down":
				ctl.Backward = true
			case "left":
				ctl.Left = true
			case "right":
				ctl.Right = true
			case "":
			default:
				return ctl, fmt.Errorf("unknown control %q", part)
			}
		}
	}
	return ctl, nil
}

// script presses the start key and then holds controls for ticks frames
func script(controls engine.Controls, ticks int) []engine.Input {
	inputs := make([]engine.Input, 0, ticks+1)
	inputs = append(inputs, engine.Input{KeyDown: true})
	for i := 0; i < ticks; i++ {
		inputs = append(inputs, engine.Input{Player: controls})
	}
	return inputs
}

// simulation is a headless scripted race
type simulation struct {
	ConfigName string
	Controls   engine.Controls
	Ticks      int
	FPS        int
	LogEvery   int
}

// run races on the named config from manager and returns the final state
func (sim simulation) run(ctx context.Context, manager *config.Manager) (*engine.RaceState, error) {
	name := sim.ConfigName
	if name == "" {
		name = manager.DefaultID()
	}

	cfg, err := manager.LoadConfig(name)
	if err != nil {
		return nil, err
	}
	track, err := manager.BuildTrack(name)
	if err != nil {
		return nil, err
	}

	fps := sim.FPS
	if fps == 0 {
		fps = cfg.FPS
	}

	race := engine.NewRace(cfg, track, engine.SystemClock{})
	input := engine.NewScriptedInput(script(sim.Controls, sim.Ticks))

	log.Info("simulating", "config", name, "ticks", sim.Ticks, "fps", fps)
	if err := engine.Run(ctx, race, input, &logRenderer{every: sim.LogEvery}, fps); err != nil {
		return nil, fmt.Errorf("simulate %s: %w", name, err)
	}
	return race.State(), nil
}

func runSimulateCommand(ctx context.Context, cmd *cli.Command) error {
	controls, err := parseControls(cmd.StringSlice("hold"))
	if err != nil {
		return err
	}

	manager, err := config.NewManager(cmd.String("config-dir"))
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}

	sim := simulation{
		ConfigName: cmd.String("config"),
		Controls:   controls,
		Ticks:      cmd.Int("ticks"),
		FPS:        cmd.Int("fps"),
		LogEvery:   cmd.Int("log-every"),
	}
	state, err := sim.run(ctx, manager)
	if err != nil {
		return err
	}
	return writeState(os.Stdout, state)
}

func writeState(w io.Writer, state *engine.RaceState) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}
