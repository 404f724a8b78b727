package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
)

// Pilot steers the player car along a route of targets, looping forever
type Pilot struct {
	Route       []engine.Point
	Radius      float64 // a target counts as reached within this distance
	BrakeDist   float64 // start slowing this far from a target
	CornerSpeed float64 // speed to carry into a target
	Rotation    float64 // degrees the car turns per tick

	next int
}

// NewPilot builds a pilot for a shape track, driving from the player's start
func NewPilot(cfg *engine.RaceConfig) *Pilot {
	var route []engine.Point
	if cfg.Track.Shape != nil {
		route = orderRoute(centreline(cfg.Track.Shape), cfg.Player.Start, 0)
	}
	return &Pilot{
		Route:       route,
		Radius:      50,
		BrakeDist:   110,
		CornerSpeed: 2,
		Rotation:    cfg.Player.RotationSpeed,
	}
}

// Target returns the point the pilot is heading for
func (p *Pilot) Target() engine.Point {
	if len(p.Route) == 0 {
		return engine.Point{}
	}
	return p.Route[p.next]
}

// Controls picks the held keys for the car's next ticks
func (p *Pilot) Controls(car engine.Car) engine.Controls {
	if len(p.Route) == 0 {
		return engine.Controls{Forward: true}
	}

	pos := engine.Point{X: car.X, Y: car.Y}
	dist := distance(pos, p.Target())
	if dist < p.Radius {
		p.next = (p.next + 1) % len(p.Route)
		dist = distance(pos, p.Target())
	}

	diff := normalizeAngle(bearing(pos, p.Target()) - car.Heading)
	tolerance := math.Max(p.Rotation/2, 1)

	var ctl engine.Controls
	ctl.Left = diff > tolerance
	ctl.Right = diff < -tolerance

	switch {
	case car.Speed > p.CornerSpeed && dist < p.BrakeDist:
		ctl.Backward = true
	case math.Abs(diff) < 30 || car.Speed < p.CornerSpeed:
		ctl.Forward = true
	}
	return ctl
}

// centreline returns the midpoints of matching outer and inner vertices
func centreline(shape *engine.ShapeConfig) []engine.Point {
	if len(shape.Outer) != len(shape.Inner) {
		return nil
	}
	points := make([]engine.Point, len(shape.Outer))
	for i := range shape.Outer {
		mid := vec(shape.Outer[i]).Add(vec(shape.Inner[i])).Mul(0.5)
		points[i] = engine.Point{X: mid.X(), Y: mid.Y()}
	}
	return points
}

// orderRoute rotates points so the route starts at the point most nearly
// straight ahead of a car at start facing heading, and runs away from start
func orderRoute(points []engine.Point, start engine.Point, heading float64) []engine.Point {
	n := len(points)
	if n == 0 {
		return nil
	}

	first, best := 0, math.Inf(1)
	for i, pt := range points {
		if d := math.Abs(normalizeAngle(bearing(start, pt) - heading)); d < best {
			first, best = i, d
		}
	}

	step := 1
	if n > 2 {
		fwd, back := points[(first+1)%n], points[(first-1+n)%n]
		if distance(start, back) > distance(start, fwd) {
			step = -1
		}
	}

	route := make([]engine.Point, n)
	for i := range route {
		route[i] = points[((first+step*i)%n+n)%n]
	}
	return route
}

// bearing is the heading, in degrees, that points from a to b. Heading 0
// faces up and positive headings turn left.
func bearing(a, b engine.Point) float64 {
	d := vec(b).Sub(vec(a))
	return mgl64.RadToDeg(math.Atan2(-d.X(), -d.Y()))
}

// normalizeAngle maps degrees into (-180, 180]
func normalizeAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	} else if deg <= -180 {
		deg += 360
	}
	return deg
}

func distance(a, b engine.Point) float64 {
	return vec(b).Sub(vec(a)).Len()
}

func vec(p engine.Point) mgl64.Vec2 {
	return mgl64.Vec2{p.X, p.Y}
}
