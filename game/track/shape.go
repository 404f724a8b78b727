package track

import (
	"image"
	"math"
	"sort"

	polyclip "github.com/akavel/polyclip-go"
	"github.com/ojrac/opensimplex-go"
	"github.com/wricardo/mcp-training/racinggame/game/collision"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
)

const (
	// wobble subdivides edges into segments no longer than this before
	// displacing vertices
	wobbleStep = 40.0
	// noise sampling frequency per pixel
	wobbleFrequency = 0.01
)

// Ring returns the drivable area of a shape track: Outer minus Inner,
// after optional noise wobble
func Ring(shape *engine.ShapeConfig) polyclip.Polygon {
	var noise opensimplex.Noise
	if shape.NoiseAmplitude > 0 {
		noise = opensimplex.New(shape.NoiseSeed)
	}

	outer := polyclip.Polygon{contour(shape.Outer, noise, shape.NoiseAmplitude)}
	if len(shape.Inner) == 0 {
		return outer
	}
	inner := polyclip.Polygon{contour(shape.Inner, noise, shape.NoiseAmplitude)}
	return outer.Construct(polyclip.DIFFERENCE, inner)
}

func contour(points []engine.Point, noise opensimplex.Noise, amplitude float64) polyclip.Contour {
	if noise == nil {
		c := make(polyclip.Contour, 0, len(points))
		for _, p := range points {
			c = append(c, polyclip.Point{X: p.X, Y: p.Y})
		}
		return c
	}

	var c polyclip.Contour
	for i, p := range points {
		q := points[(i+1)%len(points)]
		steps := int(math.Ceil(math.Hypot(q.X-p.X, q.Y-p.Y) / wobbleStep))
		if steps < 1 {
			steps = 1
		}
		for s := 0; s < steps; s++ {
			t := float64(s) / float64(steps)
			x := p.X + (q.X-p.X)*t
			y := p.Y + (q.Y-p.Y)*t
			dx := noise.Eval2(x*wobbleFrequency, y*wobbleFrequency) * amplitude
			dy := noise.Eval2(y*wobbleFrequency+100, x*wobbleFrequency+100) * amplitude
			c = append(c, polyclip.Point{X: x + dx, Y: y + dy})
		}
	}
	return c
}

// Rasterize sets every pixel of a width x height mask whose centre lies inside
// poly under the even-odd rule
func Rasterize(poly polyclip.Polygon, width, height int) *collision.Mask {
	m := collision.NewMask(width, height)
	var xs []float64
	for y := 0; y < height; y++ {
		cy := float64(y) + 0.5
		xs = xs[:0]
		for _, c := range poly {
			for i := range c {
				a, b := c[i], c[(i+1)%len(c)]
				if (a.Y <= cy) == (b.Y <= cy) {
					continue
				}
				xs = append(xs, a.X+(cy-a.Y)*(b.X-a.X)/(b.Y-a.Y))
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			from := int(math.Ceil(xs[i] - 0.5))
			to := int(math.Ceil(xs[i+1] - 0.5))
			m.FillRect(image.Rect(from, y, to, y+1))
		}
	}
	return m
}

// shapeBorder is the canvas minus the drivable ring
func shapeBorder(shape *engine.ShapeConfig) *collision.Mask {
	ring := Rasterize(Ring(shape), shape.Width, shape.Height)
	border := collision.NewMask(shape.Width, shape.Height)
	border.Fill()
	for y := 0; y < shape.Height; y++ {
		for x := 0; x < shape.Width; x++ {
			if ring.Get(x, y) {
				border.Clear(x, y)
			}
		}
	}
	return border
}

func solidMask(width, height int) *collision.Mask {
	m := collision.NewMask(width, height)
	m.Fill()
	return m
}
