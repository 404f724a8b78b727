// Command analyze prints quick, human-readable diagnostics about the race
// configurations in a configs directory. It summarizes track dimensions and
// mask coverage, checks that each car starts clear of the border and the
// finish line, and reports what a car driving straight ahead from its start
// hits first.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/wricardo/mcp-training/racinggame/game/collision"
	"github.com/wricardo/mcp-training/racinggame/game/config"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
)

// maxDashTicks bounds the straight-line dash
const maxDashTicks = 2000

// CarReport holds the start-position diagnostics of one car
type CarReport struct {
	SpriteID      string
	Start         engine.Point
	MaskWidth     int
	MaskHeight    int
	BorderOverlap int // pixels overlapping the border at the start
	FinishOverlap int // pixels overlapping the finish line at the start
	InBounds      bool
	Dash          DashResult
}

// DashResult describes what a car holding forward from its start reaches
type DashResult struct {
	Hit   string // "border", "finish" or "" when nothing within maxDashTicks
	Ticks int
	At    engine.Point
}

// TrackReport holds the diagnostics of one config
type TrackReport struct {
	ConfigID       string
	Name           string
	Width, Height  int
	BorderCoverage float64 // share of the canvas that is border
	FinishPixels   int
	FinishPos      engine.Point
	Cars           []CarReport
}

func main() {
	dir := "configs"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	manager, err := config.NewManager(dir)
	if err != nil {
		fmt.Printf("Error opening configs: %v\n", err)
		os.Exit(1)
	}

	ids, err := manager.ConfigIDs()
	if err != nil {
		fmt.Printf("Error listing configs: %v\n", err)
		os.Exit(1)
	}

	for _, id := range ids {
		fmt.Printf("\n=== Analyzing %s ===\n", id)
		report, err := analyzeConfig(manager, id)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		printReport(os.Stdout, report)
	}
}

func analyzeConfig(manager *config.Manager, id string) (*TrackReport, error) {
	cfg, err := manager.LoadConfig(id)
	if err != nil {
		return nil, err
	}
	track, err := manager.BuildTrack(id)
	if err != nil {
		return nil, err
	}

	report := &TrackReport{
		ConfigID:     id,
		Name:         cfg.Name,
		Width:        track.Width,
		Height:       track.Height,
		FinishPixels: track.Finish.Count(),
		FinishPos:    track.FinishPos,
	}
	if area := track.Width * track.Height; area > 0 {
		report.BorderCoverage = float64(track.Border.Count()) / float64(area)
	}

	for _, car := range []engine.CarConfig{cfg.Player, cfg.Second} {
		report.Cars = append(report.Cars, analyzeCar(track, car.Spec()))
	}
	return report, nil
}

func analyzeCar(track *engine.Track, spec engine.CarSpec) CarReport {
	mask := track.CarMasks[spec.SpriteID]
	r := CarReport{
		SpriteID: spec.SpriteID,
		Start:    spec.Start,
	}
	if mask != nil {
		r.MaskWidth, r.MaskHeight = mask.Width, mask.Height
	}

	x, y := int(spec.Start.X), int(spec.Start.Y)
	r.BorderOverlap = track.Border.OverlapArea(mask, x, y)
	r.FinishOverlap = track.Finish.OverlapArea(mask, x-int(track.FinishPos.X), y-int(track.FinishPos.Y))
	r.InBounds = x >= 0 && y >= 0 && x+r.MaskWidth <= track.Width && y+r.MaskHeight <= track.Height
	r.Dash = dash(track, engine.NewCar(spec, mask))
	return r
}

// dash holds forward from the car's start until it touches the border or
// the finish line
func dash(track *engine.Track, car *engine.Car) DashResult {
	for tick := 1; tick <= maxDashTicks; tick++ {
		car.Accelerate(engine.ThrottleForward)
		if touches(car, track.Border, engine.Point{}) {
			return DashResult{Hit: "border", Ticks: tick, At: car.Position()}
		}
		if touches(car, track.Finish, track.FinishPos) {
			return DashResult{Hit: "finish", Ticks: tick, At: car.Position()}
		}
	}
	return DashResult{Ticks: maxDashTicks, At: car.Position()}
}

func touches(car *engine.Car, obstacle *collision.Mask, at engine.Point) bool {
	_, hit := car.Collide(obstacle, at.X, at.Y)
	return hit
}

func printReport(w io.Writer, r *TrackReport) {
	fmt.Fprintf(w, "Name: %s\n", r.Name)
	fmt.Fprintf(w, "Track Size: %d x %d\n", r.Width, r.Height)
	fmt.Fprintf(w, "Border Coverage: %.1f%%\n", r.BorderCoverage*100)
	fmt.Fprintf(w, "Finish Line: %d pixels at (%.0f, %.0f)\n", r.FinishPixels, r.FinishPos.X, r.FinishPos.Y)

	if r.FinishPixels == 0 {
		fmt.Fprintf(w, "⚠️  CRITICAL: finish line has no solid pixels, laps can never complete\n")
	}

	for _, car := range r.Cars {
		fmt.Fprintf(w, "\nCar %s: start (%.0f, %.0f), silhouette %d x %d\n",
			car.SpriteID, car.Start.X, car.Start.Y, car.MaskWidth, car.MaskHeight)

		switch {
		case !car.InBounds:
			fmt.Fprintf(w, "⚠️  WARNING: start position places the car outside the track\n")
		case car.BorderOverlap > 0:
			fmt.Fprintf(w, "⚠️  WARNING: car starts %d pixels into the border and will bounce immediately\n", car.BorderOverlap)
		case car.FinishOverlap > 0:
			fmt.Fprintf(w, "⚠️  WARNING: car starts %d pixels on the finish line\n", car.FinishOverlap)
		default:
			fmt.Fprintf(w, "✅ Start position is clear of the border and the finish line\n")
		}

		if car.Dash.Hit == "" {
			fmt.Fprintf(w, "   Straight ahead: nothing within %d ticks\n", car.Dash.Ticks)
		} else {
			fmt.Fprintf(w, "   Straight ahead: %s after %d ticks at (%.0f, %.0f)\n",
				car.Dash.Hit, car.Dash.Ticks, car.Dash.At.X, car.Dash.At.Y)
		}
	}
}
