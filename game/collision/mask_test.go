package collision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMask_Empty(t *testing.T) {
	m := NewMask(70, 3)
	assert.Equal(t, 70, m.Width)
	assert.Equal(t, 3, m.Height)
	assert.Equal(t, 0, m.Count())

	negative := NewMask(-4, -1)
	assert.Equal(t, 0, negative.Width)
	assert.Equal(t, 0, negative.Height)
}

func TestMask_SetGetClear(t *testing.T) {
	m := NewMask(130, 4)
	m.Set(0, 0)
	m.Set(64, 1)
	m.Set(129, 3)
	m.Set(200, 0) // ignored

	assert.True(t, m.Get(0, 0))
	assert.True(t, m.Get(64, 1))
	assert.True(t, m.Get(129, 3))
	assert.False(t, m.Get(63, 1))
	assert.False(t, m.Get(-1, 0))
	assert.Equal(t, 3, m.Count())

	m.Clear(64, 1)
	assert.False(t, m.Get(64, 1))
	assert.Equal(t, 2, m.Count())
}

func TestMask_FillRectClips(t *testing.T) {
	m := NewMask(10, 10)
	m.FillRect(image.Rect(8, 8, 20, 20))
	assert.Equal(t, 4, m.Count())

	m.Fill()
	assert.Equal(t, 100, m.Count())
}

func TestFromImage_AlphaThreshold(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{A: 127})
	img.SetNRGBA(2, 0, color.NRGBA{A: 128})

	m := FromImage(img, DefaultThreshold)
	assert.True(t, m.Get(0, 0))
	assert.False(t, m.Get(1, 0), "alpha equal to threshold is not solid")
	assert.True(t, m.Get(2, 0))
}

func TestFromImage_NonZeroOrigin(t *testing.T) {
	img := image.NewNRGBA(image.Rect(5, 5, 7, 7))
	img.SetNRGBA(6, 6, color.NRGBA{A: 255})

	m := FromImage(img, DefaultThreshold)
	require.Equal(t, 2, m.Width)
	assert.True(t, m.Get(1, 1))
	assert.Equal(t, 1, m.Count())
}

func TestOverlap(t *testing.T) {
	border := NewMask(20, 20)
	border.FillRect(image.Rect(10, 0, 20, 20))

	car := NewMask(4, 4)
	car.Fill()

	tests := []struct {
		name     string
		offX     int
		offY     int
		expected image.Point
		hit      bool
	}{
		{"far left", 0, 0, image.Point{}, false},
		{"touching edge", 6, 3, image.Point{}, false},
		{"one column in", 7, 3, image.Pt(10, 3), true},
		{"fully inside", 12, 12, image.Pt(12, 12), true},
		{"outside bounds", 40, 40, image.Point{}, false},
		{"negative offset", -2, -2, image.Point{}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, hit := border.Overlap(car, test.offX, test.offY)
			assert.Equal(t, test.hit, hit)
			assert.Equal(t, test.expected, p)
		})
	}
}

func TestOverlap_DisjointBoundingBoxes(t *testing.T) {
	a := NewMask(5, 5)
	a.Fill()
	b := NewMask(5, 5)
	b.Fill()

	_, hit := a.Overlap(b, 5, 0)
	assert.False(t, hit)
	_, hit = a.Overlap(b, 0, -5)
	assert.False(t, hit)
	_, hit = a.Overlap(nil, 0, 0)
	assert.False(t, hit)
}

func TestOverlapArea(t *testing.T) {
	a := NewMask(10, 10)
	a.Fill()
	b := NewMask(4, 4)
	b.Fill()

	assert.Equal(t, 16, a.OverlapArea(b, 2, 2))
	assert.Equal(t, 4, a.OverlapArea(b, 8, 8))
	assert.Equal(t, 0, a.OverlapArea(b, 10, 10))
}
