package sim

import (
	"fmt"
	"math"

	"github.com/plus3/aerosim/ecs"
)

// Position is a location in world space.
type Position struct {
	X, Y float32
}

func (p Position) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y)
}

// Velocity is a rate of change of Position in units per second.
type Velocity struct {
	X, Y float32
}

// Magnitude returns the speed, independent of direction.
func (v Velocity) Magnitude() float32 {
	return float32(math.Hypot(float64(v.X), float64(v.Y)))
}

func (v Velocity) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Y)
}

// Rotation is an orientation in radians, counter-clockwise.
type Rotation struct {
	Angle float32
}

// RotationFromDegrees builds a Rotation from an angle in degrees.
func RotationFromDegrees(degrees float32) Rotation {
	return Rotation{Angle: degrees * math.Pi / 180}
}

// Degrees returns the angle in degrees.
func (r Rotation) Degrees() float32 {
	return r.Angle * 180 / math.Pi
}

// Mass in kilograms.
type Mass struct {
	Value float32
}

// Name labels an entity for debugging output.
type Name struct {
	Value string
}

func (n Name) String() string {
	return n.Value
}

// Clock is the simulation-wide time source, stored as a singleton.
type Clock struct {
	Tick     uint64
	Elapsed  float64
	TimeStep float64
}

// RegisterComponents registers every simulation component type with w.
func RegisterComponents(w *ecs.World) {
	ecs.RegisterComponent[Position](w)
	ecs.RegisterComponent[Velocity](w)
	ecs.RegisterComponent[Rotation](w)
	ecs.RegisterComponent[Mass](w)
	ecs.RegisterComponent[Name](w)
}
