// Command autopilot drives a race session through the REST API, steering the
// player car along the centreline of a shape track until it has completed
// the requested number of laps.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/racinggame/game/service"
)

var log = log15.New("module", "autopilot")

// Options configure a drive
type Options struct {
	Laps         int
	TicksPerStep int
	MaxSteps     int
	Delay        time.Duration
}

// Summary is the outcome of a drive
type Summary struct {
	SessionID string
	Laps      int
	Steps     int
	Ticks     int
	Finished  bool
}

func main() {
	cmd := &cli.Command{
		Name:  "autopilot",
		Usage: "Drive a race session around the track through the REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Race server URL"},
			&cli.StringFlag{Name: "config", Usage: "Config for a new session (server default when empty)"},
			&cli.StringFlag{Name: "continue", Usage: "Drive an existing session by ID"},
			&cli.IntFlag{Name: "laps", Value: 1, Usage: "Laps to complete"},
			&cli.IntFlag{Name: "ticks-per-step", Value: 4, Usage: "Ticks run per step request"},
			&cli.IntFlag{Name: "max-steps", Value: 2000, Usage: "Give up after this many step requests"},
			&cli.DurationFlag{Name: "delay", Usage: "Pause between steps (e.g. 50ms) to watch the race"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Crit("autopilot failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	lvl := log15.LvlInfo
	if cmd.Bool("v") {
		lvl = log15.LvlDebug
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.LogfmtFormat())))

	client := NewClient(cmd.String("url"))
	log.Info("connecting to race server", "url", cmd.String("url"))

	summary, err := drive(ctx, client, cmd.String("continue"), cmd.String("config"), Options{
		Laps:         cmd.Int("laps"),
		TicksPerStep: cmd.Int("ticks-per-step"),
		MaxSteps:     cmd.Int("max-steps"),
		Delay:        cmd.Duration("delay"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Session %s: %d lap(s) in %d steps, %d ticks\n", summary.SessionID, summary.Laps, summary.Steps, summary.Ticks)
	if summary.Laps < cmd.Int("laps") && !summary.Finished {
		return fmt.Errorf("gave up after %d steps", summary.Steps)
	}
	return nil
}

// drive opens or resumes a session and steps it until opts.Laps laps are
// done, the game finishes, or opts.MaxSteps is reached
func drive(ctx context.Context, client *Client, sessionID, configID string, opts Options) (*Summary, error) {
	var info *service.SessionInfo
	var err error
	if sessionID != "" {
		info, err = client.UseSession(sessionID)
	} else {
		info, err = client.CreateSession(configID)
	}
	if err != nil {
		return nil, err
	}
	id := info.ID
	if info.RaceConfig == nil || info.RaceState == nil {
		return nil, fmt.Errorf("session %s has no race config or state", id)
	}

	pilot := NewPilot(info.RaceConfig)
	if len(pilot.Route) == 0 {
		log.Warn("no centreline for this track, holding forward", "config", info.ConfigName)
	}

	summary := &Summary{SessionID: id}
	state := info.RaceState
	keyDown := state.Waiting

	for summary.Steps < opts.MaxSteps && summary.Laps < opts.Laps {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		controls := pilot.Controls(state.Player)
		result, err := client.Step(controls, opts.TicksPerStep, keyDown)
		if err != nil {
			return summary, err
		}
		summary.Steps++
		summary.Ticks += result.TicksExecuted
		summary.Laps += result.LapDelta
		state = result.RaceState

		for _, ev := range result.Events {
			log.Debug("event", "type", ev.Type, "car", ev.Car, "message", ev.Message, "tick", ev.Tick)
		}
		if result.LapDelta > 0 {
			log.Info("lap complete", "laps", summary.Laps, "tick", state.Tick)
		}
		log.Debug("step", "n", summary.Steps, "x", state.Player.X, "y", state.Player.Y,
			"heading", state.Player.Heading, "speed", state.Player.Speed, "target", pilot.Target())

		if result.StoppedReason == "game_finished" || state.Finished {
			summary.Finished = true
			break
		}
		keyDown = state.Waiting

		if opts.Delay > 0 {
			time.Sleep(opts.Delay)
		}
	}
	return summary, nil
}
