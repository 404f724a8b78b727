// Package collision provides binary silhouette masks and the pixel-precise
// overlap query the race engine uses for border and finish-line checks.
//
// A Mask is a per-pixel opacity map. Masks are usually built from sprite
// images (FromImage) or rasterized shapes, and compared with Overlap, which
// places a second mask at an integer offset relative to the first.
package collision

import (
	"image"
	"math/bits"
)

// DefaultThreshold is the alpha value a pixel must exceed to be solid.
const DefaultThreshold uint8 = 127

// Mask is a packed binary silhouette.
type Mask struct {
	Width  int
	Height int

	stride int // words per row
	words  []uint64
}

// NewMask creates an empty mask of the given size.
func NewMask(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	stride := (width + 63) / 64
	return &Mask{
		Width:  width,
		Height: height,
		stride: stride,
		words:  make([]uint64, stride*height),
	}
}

// FromImage builds a mask where every pixel whose alpha exceeds threshold is set.
func FromImage(img image.Image, threshold uint8) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	limit := uint32(threshold) * 0x101
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a > limit {
				m.Set(x-b.Min.X, y-b.Min.Y)
			}
		}
	}
	return m
}

// Bounds returns the mask rectangle anchored at the origin.
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// Set marks the pixel at (x, y) solid. Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.words[y*m.stride+x/64] |= 1 << uint(x%64)
}

// Clear marks the pixel at (x, y) empty.
func (m *Mask) Clear(x, y int) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.words[y*m.stride+x/64] &^= 1 << uint(x%64)
}

// Get reports whether the pixel at (x, y) is solid.
func (m *Mask) Get(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.words[y*m.stride+x/64]&(1<<uint(x%64)) != 0
}

// Fill sets every pixel.
func (m *Mask) Fill() {
	m.FillRect(m.Bounds())
}

// FillRect sets every pixel inside r, clipped to the mask.
func (m *Mask) FillRect(r image.Rectangle) {
	r = r.Intersect(m.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.words[y*m.stride+x/64] |= 1 << uint(x%64)
		}
	}
}

// Count returns the number of solid pixels.
func (m *Mask) Count() int {
	n := 0
	for _, w := range m.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Overlap places other with its origin at (offX, offY) in m's coordinate space
// and returns the first pixel, in row-major order, that is solid in both.
// The point is expressed in m's coordinates.
func (m *Mask) Overlap(other *Mask, offX, offY int) (image.Point, bool) {
	if m == nil || other == nil {
		return image.Point{}, false
	}
	area := m.Bounds().Intersect(other.Bounds().Add(image.Pt(offX, offY)))
	if area.Empty() {
		return image.Point{}, false
	}
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if m.Get(x, y) && other.Get(x-offX, y-offY) {
				return image.Pt(x, y), true
			}
		}
	}
	return image.Point{}, false
}

// OverlapArea counts the pixels solid in both masks at the given offset.
func (m *Mask) OverlapArea(other *Mask, offX, offY int) int {
	if m == nil || other == nil {
		return 0
	}
	area := m.Bounds().Intersect(other.Bounds().Add(image.Pt(offX, offY)))
	n := 0
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if m.Get(x, y) && other.Get(x-offX, y-offY) {
				n++
			}
		}
	}
	return n
}
