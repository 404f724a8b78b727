// Package track turns a race configuration into the collision data and
// drawable layers a race is played on.
//
// A track comes either from image assets (track, border and finish-line
// PNGs, scaled on load) or from polygons: the drivable ring is the outer
// polygon minus the inner one, optionally wobbled with simplex noise, and
// everything outside the ring is border.
package track

import (
	"fmt"
	"image"
	"image/color"

	"github.com/wricardo/mcp-training/racinggame/game/collision"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
)

// Build creates the collision track for cfg. Image paths are resolved
// relative to baseDir. A missing image yields an error wrapping ErrAssetNotFound.
func Build(cfg *engine.RaceConfig, baseDir string) (*engine.Track, error) {
	if cfg == nil {
		return nil, fmt.Errorf("track: config is nil")
	}

	t := &engine.Track{
		Name:      cfg.Name,
		FinishPos: cfg.Track.FinishPosition,
		CarMasks:  map[string]*collision.Mask{},
	}

	if cfg.Track.UsesImages() {
		if err := buildFromImages(t, cfg.Track, baseDir); err != nil {
			return nil, err
		}
	} else if shape := cfg.Track.Shape; shape != nil {
		t.Width, t.Height = shape.Width, shape.Height
		t.Border = shapeBorder(shape)
		t.Finish = solidMask(shape.FinishRect.Width, shape.FinishRect.Height)
	} else {
		return nil, fmt.Errorf("track: %s has neither border_image nor shape", cfg.Name)
	}

	for _, car := range []engine.CarConfig{cfg.Player, cfg.Second} {
		mask, err := carMask(car, baseDir)
		if err != nil {
			return nil, err
		}
		t.CarMasks[car.SpriteID] = mask
	}
	return t, nil
}

func buildFromImages(t *engine.Track, tc engine.TrackConfig, baseDir string) error {
	border, err := LoadImage(baseDir, tc.BorderImage, tc.Scale)
	if err != nil {
		return fmt.Errorf("track border: %w", err)
	}
	finish, err := LoadImage(baseDir, tc.FinishImage, tc.FinishScale)
	if err != nil {
		return fmt.Errorf("track finish line: %w", err)
	}

	size := border.Bounds()
	if tc.Image != "" {
		img, err := LoadImage(baseDir, tc.Image, tc.Scale)
		if err != nil {
			return fmt.Errorf("track image: %w", err)
		}
		size = img.Bounds()
	}

	t.Width, t.Height = size.Dx(), size.Dy()
	t.Border = collision.FromImage(border, collision.DefaultThreshold)
	t.Finish = collision.FromImage(finish, collision.DefaultThreshold)
	return nil
}

func carMask(car engine.CarConfig, baseDir string) (*collision.Mask, error) {
	if car.Sprite == "" {
		return solidMask(car.Width, car.Height), nil
	}
	img, err := LoadImage(baseDir, car.Sprite, car.SpriteScale)
	if err != nil {
		return nil, fmt.Errorf("car %s sprite: %w", car.SpriteID, err)
	}
	return collision.FromImage(img, collision.DefaultThreshold), nil
}

// Layers are the images a renderer draws, bottom to top: Background, Track,
// Finish at the finish position, Border, then cars
type Layers struct {
	Background image.Image
	Track      image.Image
	Finish     image.Image
	Border     image.Image
	Cars       map[string]image.Image // keyed by sprite ID
}

// Palette used when a track or car has no image asset
var (
	GrassColor  = color.NRGBA{R: 58, G: 125, B: 52, A: 255}
	RoadColor   = color.NRGBA{R: 90, G: 90, B: 96, A: 255}
	BorderColor = color.NRGBA{R: 200, G: 40, B: 40, A: 255}
	FinishColor = color.NRGBA{R: 240, G: 240, B: 240, A: 255}
	CarColors   = []color.NRGBA{
		{R: 150, G: 150, B: 160, A: 255},
		{R: 210, G: 30, B: 30, A: 255},
	}
)

// LoadLayers loads or paints the drawable layers for cfg on t
func LoadLayers(cfg *engine.RaceConfig, t *engine.Track, baseDir string) (*Layers, error) {
	layers := &Layers{Cars: map[string]image.Image{}}
	tc := cfg.Track

	if tc.UsesImages() {
		var err error
		if tc.Background != "" {
			if layers.Background, err = LoadImage(baseDir, tc.Background, tc.BackgroundScale); err != nil {
				return nil, fmt.Errorf("track background: %w", err)
			}
		}
		if tc.Image != "" {
			if layers.Track, err = LoadImage(baseDir, tc.Image, tc.Scale); err != nil {
				return nil, fmt.Errorf("track image: %w", err)
			}
		}
		if layers.Border, err = LoadImage(baseDir, tc.BorderImage, tc.Scale); err != nil {
			return nil, fmt.Errorf("track border: %w", err)
		}
		if layers.Finish, err = LoadImage(baseDir, tc.FinishImage, tc.FinishScale); err != nil {
			return nil, fmt.Errorf("track finish line: %w", err)
		}
	} else {
		layers.Background = uniform(t.Width, t.Height, GrassColor)
		layers.Track = MaskImage(Rasterize(Ring(tc.Shape), t.Width, t.Height), RoadColor)
		layers.Border = MaskImage(t.Border, BorderColor)
		layers.Finish = checkered(t.Finish.Width, t.Finish.Height)
	}

	for i, car := range []engine.CarConfig{cfg.Player, cfg.Second} {
		if car.Sprite != "" {
			img, err := LoadImage(baseDir, car.Sprite, car.SpriteScale)
			if err != nil {
				return nil, fmt.Errorf("car %s sprite: %w", car.SpriteID, err)
			}
			layers.Cars[car.SpriteID] = img
			continue
		}
		layers.Cars[car.SpriteID] = MaskImage(t.CarMasks[car.SpriteID], CarColors[i%len(CarColors)])
	}
	return layers, nil
}

// MaskImage paints the solid pixels of m in c on a transparent image
func MaskImage(m *collision.Mask, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(m.Bounds())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Get(x, y) {
				img.SetNRGBA(x, y, c)
			}
		}
	}
	return img
}

func uniform(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func checkered(width, height int) *image.NRGBA {
	const cell = 5
	dark := color.NRGBA{A: 255}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetNRGBA(x, y, FinishColor)
			} else {
				img.SetNRGBA(x, y, dark)
			}
		}
	}
	return img
}
