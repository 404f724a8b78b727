package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/mcp-training/racinggame/game/config"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
)

func newManager(t *testing.T, configs map[string]*engine.RaceConfig) *config.Manager {
	t.Helper()
	dir := t.TempDir()
	for id, cfg := range configs {
		data, err := json.Marshal(cfg)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	manager, err := config.NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return manager
}

func TestAnalyzeConfig(t *testing.T) {
	manager := newManager(t, map[string]*engine.RaceConfig{"classic": engine.DefaultRaceConfig()})

	report, err := analyzeConfig(manager, "classic")
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}

	if report.Width != 810 || report.Height != 810 {
		t.Errorf("Expected 810 x 810, got %d x %d", report.Width, report.Height)
	}
	// 810² canvas minus the 770² − 550² ring
	if report.BorderCoverage < 0.54 || report.BorderCoverage > 0.57 {
		t.Errorf("Unexpected border coverage %.3f", report.BorderCoverage)
	}
	if report.FinishPixels != 80*20 {
		t.Errorf("Expected 1600 finish pixels, got %d", report.FinishPixels)
	}
	if len(report.Cars) != 2 {
		t.Fatalf("Expected 2 car reports, got %d", len(report.Cars))
	}

	for _, car := range report.Cars {
		if !car.InBounds || car.BorderOverlap != 0 || car.FinishOverlap != 0 {
			t.Errorf("Expected %s to start clear, got %+v", car.SpriteID, car)
		}
		if car.Dash.Hit != "border" {
			t.Errorf("Expected %s to reach the top border, got %q", car.SpriteID, car.Dash.Hit)
		}
		if car.Dash.At.Y >= car.Start.Y || car.Dash.At.Y > 30 {
			t.Errorf("Expected %s to stop near the top, got y=%.1f", car.SpriteID, car.Dash.At.Y)
		}
	}
}

func TestAnalyzeConfig_BadStarts(t *testing.T) {
	cfg := engine.DefaultRaceConfig()
	cfg.Player.Start = engine.Point{X: 5, Y: 400}   // in the outer border
	cfg.Second.Start = engine.Point{X: 720, Y: 540} // on the finish line
	manager := newManager(t, map[string]*engine.RaceConfig{"bad": cfg})

	report, err := analyzeConfig(manager, "bad")
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}

	player, second := report.Cars[0], report.Cars[1]
	if player.BorderOverlap == 0 {
		t.Error("Expected the player to start in the border")
	}
	if second.FinishOverlap == 0 {
		t.Error("Expected the second car to start on the finish line")
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()
	if !strings.Contains(out, "pixels into the border") || !strings.Contains(out, "on the finish line") {
		t.Errorf("Expected warnings in output:\n%s", out)
	}
}

func TestAnalyzeConfig_Unknown(t *testing.T) {
	manager := newManager(t, nil)
	if _, err := analyzeConfig(manager, "missing"); err == nil {
		t.Error("Expected error for unknown config")
	}
}

func TestDash_FinishAhead(t *testing.T) {
	cfg := engine.DefaultRaceConfig()
	cfg.Player.Start = engine.Point{X: 720, Y: 600} // below the finish line in the right lane
	manager := newManager(t, map[string]*engine.RaceConfig{"finish": cfg})

	report, err := analyzeConfig(manager, "finish")
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}
	if report.Cars[0].Dash.Hit != "finish" {
		t.Errorf("Expected the player to reach the finish line, got %+v", report.Cars[0].Dash)
	}
}

func TestPrintReport(t *testing.T) {
	report := &TrackReport{
		Name:           "Classic",
		Width:          810,
		Height:         810,
		BorderCoverage: 0.557,
		FinishPos:      engine.Point{X: 700, Y: 535},
		Cars: []CarReport{
			{SpriteID: "grey-car", Start: engine.Point{X: 755, Y: 500}, MaskWidth: 14, MaskHeight: 29, InBounds: true,
				Dash: DashResult{Hit: "border", Ticks: 90, At: engine.Point{X: 755, Y: 19}}},
			{SpriteID: "red-car", InBounds: false, Dash: DashResult{Ticks: maxDashTicks}},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	for _, want := range []string{
		"Track Size: 810 x 810",
		"Border Coverage: 55.7%",
		"CRITICAL: finish line has no solid pixels",
		"✅ Start position is clear",
		"Straight ahead: border after 90 ticks",
		"outside the track",
		"nothing within 2000 ticks",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}
