package track

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/wricardo/mcp-training/racinggame/game/engine"
	"golang.org/x/image/draw"
)

// ErrAssetNotFound is returned when a configured image file does not exist
var ErrAssetNotFound = errors.New("asset not found")

// ErrBadAsset is returned for asset paths outside baseDir and for images
// too large to load
var ErrBadAsset = errors.New("bad asset")

// LoadImage decodes a PNG or JPEG under baseDir and scales it by scale.
// A scale of 0 means 1. The scaled image may be at most
// engine.MaxCanvasSize on a side.
func LoadImage(baseDir, name string, scale float64) (image.Image, error) {
	if !filepath.IsLocal(name) {
		return nil, fmt.Errorf("%w: %q is not inside the config directory", ErrBadAsset, name)
	}
	path := filepath.Join(baseDir, name)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
		}
		return nil, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	if w, h := scaledSize(cfg.Width, cfg.Height, scale); w > engine.MaxCanvasSize || h > engine.MaxCanvasSize {
		return nil, fmt.Errorf("%w: %s is %dx%d scaled, at most %d on a side", ErrBadAsset, name, w, h, engine.MaxCanvasSize)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return Scale(img, scale), nil
}

func scaledSize(w, h int, scale float64) (int, int) {
	if scale == 0 || scale == 1 {
		return w, h
	}
	return int(math.Round(float64(w) * scale)), int(math.Round(float64(h) * scale))
}

// Scale resizes img to round(w*scale) x round(h*scale) with nearest-neighbour
// sampling, keeping hard alpha edges for silhouettes
func Scale(img image.Image, scale float64) image.Image {
	if scale == 0 || scale == 1 {
		return img
	}
	b := img.Bounds()
	w, h := scaledSize(b.Dx(), b.Dy(), scale)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
