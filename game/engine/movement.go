package engine

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/wricardo/mcp-training/racinggame/game/collision"
)

// Car is a kinematic racing car. Heading is in degrees, 0 facing up in track
// space and increasing counter-clockwise. |Speed| never exceeds MaxSpeed.
type Car struct {
	SpriteID      string  `json:"sprite_id"`
	Start         Point   `json:"start"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Heading       float64 `json:"heading"`
	Speed         float64 `json:"speed"`
	MaxSpeed      float64 `json:"max_speed"`
	RotationSpeed float64 `json:"rotation_speed"`
	Acceleration  float64 `json:"acceleration"`

	// Waypoints recorded for the second car. Nothing steers by them yet.
	CurrentPoint int     `json:"current_point"`
	Path         []Point `json:"path"`

	mask *collision.Mask
}

// NewCar creates a car parked at its start position
func NewCar(spec CarSpec, mask *collision.Mask) *Car {
	return &Car{
		SpriteID:      spec.SpriteID,
		Start:         spec.Start,
		X:             spec.Start.X,
		Y:             spec.Start.Y,
		MaxSpeed:      spec.MaxSpeed,
		RotationSpeed: spec.RotationSpeed,
		Acceleration:  spec.Acceleration,
		Path:          []Point{},
		mask:          mask,
	}
}

// Mask returns the car's un-rotated silhouette
func (c *Car) Mask() *collision.Mask {
	return c.mask
}

// Position returns the car's top-left anchor
func (c *Car) Position() Point {
	return Point{X: c.X, Y: c.Y}
}

// Rotate turns the car by its rotation speed. Heading is left unbounded.
func (c *Car) Rotate(dir Direction) {
	switch dir {
	case DirectionLeft:
		c.Heading += c.RotationSpeed
	case DirectionRight:
		c.Heading -= c.RotationSpeed
	}
}

// Accelerate raises speed toward the throttle direction, clamped, then moves
func (c *Car) Accelerate(t Throttle) {
	switch t {
	case ThrottleForward:
		c.Speed = math.Min(c.Speed+c.Acceleration, c.MaxSpeed)
	case ThrottleBackward:
		c.Speed = math.Max(c.Speed-c.Acceleration, -c.MaxSpeed)
	default:
		return
	}
	c.Move()
}

// Decelerate applies half-rate drag toward zero, then moves. Forward drag
// never takes speed below 0 and backward drag never above 0.
func (c *Car) Decelerate(t Throttle) {
	drag := c.Acceleration / 2
	switch t {
	case ThrottleForward:
		c.Speed = math.Max(c.Speed-drag, 0)
	case ThrottleBackward:
		c.Speed = math.Min(c.Speed+drag, 0)
	default:
		return
	}
	c.Move()
}

// Coast applies drag in whichever direction the car is rolling.
// A stationary car does not move.
func (c *Car) Coast() {
	switch {
	case c.Speed > 0:
		c.Decelerate(ThrottleForward)
	case c.Speed < 0:
		c.Decelerate(ThrottleBackward)
	}
}

// Move advances the car one tick along its heading
func (c *Car) Move() {
	d := displacement(c.Heading, c.Speed)
	c.X += d.X()
	c.Y += d.Y()
}

// Bounce reverses and halves the speed, then moves
func (c *Car) Bounce() {
	c.Speed = -c.Speed / 2
	c.Move()
}

// Reset parks the car at its start position facing up
func (c *Car) Reset() {
	c.X, c.Y = c.Start.X, c.Start.Y
	c.Speed = 0
	c.Heading = 0
}

// Collide reports the first pixel where the car's silhouette overlaps obstacle,
// with obstacle's origin at (x, y). The point is in obstacle coordinates.
func (c *Car) Collide(obstacle *collision.Mask, x, y float64) (image.Point, bool) {
	if c.mask == nil || obstacle == nil {
		return image.Point{}, false
	}
	return obstacle.Overlap(c.mask, int(c.X-x), int(c.Y-y))
}

// AddWaypoint appends a point to the car's recorded path
func (c *Car) AddWaypoint(p Point) {
	c.Path = append(c.Path, p)
}

// ClearPath drops every recorded waypoint
func (c *Car) ClearPath() {
	c.Path = c.Path[:0]
	c.CurrentPoint = 0
}

// displacement returns (-sin θ·speed, -cos θ·speed) for heading θ in degrees
func displacement(heading, speed float64) mgl64.Vec2 {
	rad := mgl64.DegToRad(heading)
	return mgl64.Rotate2D(-rad).Mul2x1(mgl64.Vec2{0, -speed})
}

// clampSpeed keeps speed within [-max, max]
func clampSpeed(speed, max float64) float64 {
	return math.Max(-max, math.Min(speed, max))
}
