package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RaceConfig describes a playable race: track, cars, pacing and messages
type RaceConfig struct {
	Name              string       `json:"name" yaml:"name"`
	Description       string       `json:"description" yaml:"description"`
	Levels            int          `json:"levels" yaml:"levels"`
	FPS               int          `json:"fps" yaml:"fps"`
	AdvanceLevelOnLap bool         `json:"advance_level_on_lap" yaml:"advance_level_on_lap"`
	Player            CarConfig    `json:"player" yaml:"player"`
	Second            CarConfig    `json:"second" yaml:"second"`
	Track             TrackConfig  `json:"track" yaml:"track"`
	Messages          RaceMessages `json:"messages" yaml:"messages"`
}

// CarConfig is a car's tuning plus where its silhouette comes from.
// A car uses Sprite when set, otherwise a solid Width x Height rectangle.
type CarConfig struct {
	SpriteID      string  `json:"sprite_id" yaml:"sprite_id"`
	Sprite        string  `json:"sprite,omitempty" yaml:"sprite,omitempty"`
	SpriteScale   float64 `json:"sprite_scale,omitempty" yaml:"sprite_scale,omitempty"`
	Width         int     `json:"width,omitempty" yaml:"width,omitempty"`
	Height        int     `json:"height,omitempty" yaml:"height,omitempty"`
	Start         Point   `json:"start" yaml:"start"`
	MaxSpeed      float64 `json:"max_speed" yaml:"max_speed"`
	RotationSpeed float64 `json:"rotation_speed" yaml:"rotation_speed"`
	Acceleration  float64 `json:"acceleration" yaml:"acceleration"`
}

// Spec returns the engine constants of the car
func (c CarConfig) Spec() CarSpec {
	return CarSpec{
		SpriteID:      c.SpriteID,
		Start:         c.Start,
		MaxSpeed:      c.MaxSpeed,
		RotationSpeed: c.RotationSpeed,
		Acceleration:  c.Acceleration,
	}
}

// TrackConfig points at image assets or describes a polygon track
type TrackConfig struct {
	Background      string       `json:"background,omitempty" yaml:"background,omitempty"`
	BackgroundScale float64      `json:"background_scale,omitempty" yaml:"background_scale,omitempty"`
	Image           string       `json:"image,omitempty" yaml:"image,omitempty"`
	BorderImage     string       `json:"border_image,omitempty" yaml:"border_image,omitempty"`
	FinishImage     string       `json:"finish_image,omitempty" yaml:"finish_image,omitempty"`
	Scale           float64      `json:"scale,omitempty" yaml:"scale,omitempty"`
	FinishScale     float64      `json:"finish_scale,omitempty" yaml:"finish_scale,omitempty"`
	FinishPosition  Point        `json:"finish_position" yaml:"finish_position"`
	Shape           *ShapeConfig `json:"shape,omitempty" yaml:"shape,omitempty"`
}

// UsesImages reports whether the track is built from image assets
func (t TrackConfig) UsesImages() bool {
	return t.BorderImage != ""
}

// ShapeConfig is a track drawn from polygons. The drivable ring is Outer
// minus Inner; everything else on the canvas is border.
type ShapeConfig struct {
	Width          int     `json:"width" yaml:"width"`
	Height         int     `json:"height" yaml:"height"`
	Outer          []Point `json:"outer" yaml:"outer"`
	Inner          []Point `json:"inner" yaml:"inner"`
	FinishRect     Rect    `json:"finish_rect" yaml:"finish_rect"`
	NoiseSeed      int64   `json:"noise_seed,omitempty" yaml:"noise_seed,omitempty"`
	NoiseAmplitude float64 `json:"noise_amplitude,omitempty" yaml:"noise_amplitude,omitempty"`
}

// Rect is a width x height size in pixels
type Rect struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// RaceMessages holds user-facing text. PressToStart takes the level number.
type RaceMessages struct {
	Welcome      string `json:"welcome" yaml:"welcome"`
	PressToStart string `json:"press_to_start" yaml:"press_to_start"`
	LapComplete  string `json:"lap_complete" yaml:"lap_complete"`
	WrongWay     string `json:"wrong_way" yaml:"wrong_way"`
	GameFinished string `json:"game_finished" yaml:"game_finished"`
}

// DefaultRaceConfig returns the classic rectangular circuit with the
// original tuning: both cars at max speed 5, rotation 5, acceleration 0.1.
func DefaultRaceConfig() *RaceConfig {
	return &RaceConfig{
		Name:        "Classic Circuit",
		Description: "A rectangular loop. Cross the finish line going up to complete a lap.",
		Levels:      Levels,
		FPS:         DefaultFPS,
		Player:      defaultCar("grey-car", Point{X: 755, Y: 500}),
		Second:      defaultCar("red-car", Point{X: 715, Y: 500}),
		Track: TrackConfig{
			FinishPosition: Point{X: 700, Y: 535},
			Shape: &ShapeConfig{
				Width:  810,
				Height: 810,
				Outer: []Point{
					{X: 20, Y: 20}, {X: 790, Y: 20}, {X: 790, Y: 790}, {X: 20, Y: 790},
				},
				Inner: []Point{
					{X: 130, Y: 130}, {X: 680, Y: 130}, {X: 680, Y: 680}, {X: 130, Y: 680},
				},
				FinishRect: Rect{Width: 80, Height: 20},
			},
		},
		Messages: DefaultMessages(),
	}
}

// DefaultMessages returns the stock race text
func DefaultMessages() RaceMessages {
	return RaceMessages{
		Welcome:      "Arrows drive the grey car, WASD the red one.",
		PressToStart: "Press any key to start level %d",
		LapComplete:  "Lap complete!",
		WrongWay:     "Wrong way!",
		GameFinished: "All levels complete!",
	}
}

func defaultCar(spriteID string, start Point) CarConfig {
	return CarConfig{
		SpriteID:      spriteID,
		Width:         DefaultCarWidth,
		Height:        DefaultCarHeight,
		Start:         start,
		MaxSpeed:      DefaultMaxSpeed,
		RotationSpeed: DefaultRotation,
		Acceleration:  DefaultAcceleration,
	}
}

// ApplyDefaults fills zero-valued pacing and message fields
func ApplyDefaults(config *RaceConfig) {
	if config.Levels == 0 {
		config.Levels = Levels
	}
	if config.FPS == 0 {
		config.FPS = DefaultFPS
	}
	defaults := DefaultMessages()
	if config.Messages.PressToStart == "" {
		config.Messages.PressToStart = defaults.PressToStart
	}
	if config.Messages.LapComplete == "" {
		config.Messages.LapComplete = defaults.LapComplete
	}
	if config.Messages.WrongWay == "" {
		config.Messages.WrongWay = defaults.WrongWay
	}
	if config.Messages.GameFinished == "" {
		config.Messages.GameFinished = defaults.GameFinished
	}
	if config.Player.SpriteID == "" {
		config.Player.SpriteID = CarPlayer
	}
	if config.Second.SpriteID == "" {
		config.Second.SpriteID = CarSecond
	}
}

// ValidateRaceConfig validates a race configuration for correctness and playability
func ValidateRaceConfig(config *RaceConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}
	if config.Levels < 1 {
		return fmt.Errorf("config validation: levels must be at least 1, got %d", config.Levels)
	}
	if config.FPS < MinFPS || config.FPS > MaxFPS {
		return fmt.Errorf("config validation: fps must be between %d and %d, got %d", MinFPS, MaxFPS, config.FPS)
	}

	if err := validateCar("player", config.Player); err != nil {
		return err
	}
	if err := validateCar("second", config.Second); err != nil {
		return err
	}
	if config.Player.SpriteID == config.Second.SpriteID {
		return fmt.Errorf("config validation: player and second cars need distinct sprite_id values")
	}

	if err := validateTrack(config.Track); err != nil {
		return err
	}

	if !strings.Contains(config.Messages.PressToStart, "%d") {
		return fmt.Errorf("config validation: messages.press_to_start must contain %%d for the level")
	}

	return nil
}

func validateCar(name string, car CarConfig) error {
	if car.SpriteID == "" {
		return fmt.Errorf("config validation: %s.sprite_id is required", name)
	}
	if car.MaxSpeed <= 0 {
		return fmt.Errorf("config validation: %s.max_speed must be positive, got %g", name, car.MaxSpeed)
	}
	if car.RotationSpeed <= 0 {
		return fmt.Errorf("config validation: %s.rotation_speed must be positive, got %g", name, car.RotationSpeed)
	}
	if car.Acceleration <= 0 || car.Acceleration > car.MaxSpeed {
		return fmt.Errorf("config validation: %s.acceleration must be in (0, max_speed], got %g", name, car.Acceleration)
	}
	if car.Sprite == "" && (car.Width <= 0 || car.Height <= 0) {
		return fmt.Errorf("config validation: %s needs a sprite or a positive width and height", name)
	}
	if car.Width > MaxCarSize || car.Height > MaxCarSize {
		return fmt.Errorf("config validation: %s is %dx%d, cars are at most %dx%d", name, car.Width, car.Height, MaxCarSize, MaxCarSize)
	}
	if car.SpriteScale < 0 || car.SpriteScale > MaxScale {
		return fmt.Errorf("config validation: %s.sprite_scale must be in [0, %g], got %g", name, MaxScale, car.SpriteScale)
	}
	if err := validateAsset(name+".sprite", car.Sprite); err != nil {
		return err
	}
	return nil
}

// validateAsset accepts empty names and paths that stay inside the config
// directory
func validateAsset(field, name string) error {
	if name == "" {
		return nil
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return fmt.Errorf("config validation: %s must be relative to the config directory, got %q", field, name)
	}
	if !filepath.IsLocal(name) {
		return fmt.Errorf("config validation: %s must not leave the config directory, got %q", field, name)
	}
	return nil
}

func validateTrack(track TrackConfig) error {
	for _, scale := range []float64{track.Scale, track.FinishScale, track.BackgroundScale} {
		if scale < 0 || scale > MaxScale {
			return fmt.Errorf("config validation: track scales must be in [0, %g], got %g", MaxScale, scale)
		}
	}
	assets := []struct{ field, name string }{
		{"track.background", track.Background},
		{"track.image", track.Image},
		{"track.border_image", track.BorderImage},
		{"track.finish_image", track.FinishImage},
	}
	for _, a := range assets {
		if err := validateAsset(a.field, a.name); err != nil {
			return err
		}
	}

	if track.UsesImages() {
		if track.FinishImage == "" {
			return fmt.Errorf("config validation: track.finish_image is required with track.border_image")
		}
		return nil
	}

	shape := track.Shape
	if shape == nil {
		return fmt.Errorf("config validation: track needs border_image or shape")
	}
	if shape.Width <= 0 || shape.Height <= 0 {
		return fmt.Errorf("config validation: track.shape width and height must be positive")
	}
	if shape.Width > MaxCanvasSize || shape.Height > MaxCanvasSize {
		return fmt.Errorf("config validation: track.shape is %dx%d, at most %dx%d", shape.Width, shape.Height, MaxCanvasSize, MaxCanvasSize)
	}
	if len(shape.Outer) < 3 {
		return fmt.Errorf("config validation: track.shape.outer needs at least 3 points, got %d", len(shape.Outer))
	}
	if len(shape.Inner) != 0 && len(shape.Inner) < 3 {
		return fmt.Errorf("config validation: track.shape.inner needs at least 3 points, got %d", len(shape.Inner))
	}
	if shape.FinishRect.Width <= 0 || shape.FinishRect.Height <= 0 {
		return fmt.Errorf("config validation: track.shape.finish_rect must have a positive size")
	}
	if shape.FinishRect.Width > shape.Width || shape.FinishRect.Height > shape.Height {
		return fmt.Errorf("config validation: track.shape.finish_rect must fit the canvas")
	}
	if shape.NoiseAmplitude < 0 {
		return fmt.Errorf("config validation: track.shape.noise_amplitude must not be negative")
	}
	return nil
}

// LoadRaceConfig loads a race configuration from a JSON or YAML file,
// applies defaults and validates it
func LoadRaceConfig(path string) (*RaceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config, err := ParseRaceConfig(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if err := ValidateRaceConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ParseRaceConfig decodes a config by file extension (.json, .yaml, .yml)
// and applies defaults. It does not validate.
func ParseRaceConfig(data []byte, ext string) (*RaceConfig, error) {
	var config RaceConfig
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	case ".json", "":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	ApplyDefaults(&config)
	return &config, nil
}
