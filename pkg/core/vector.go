// pkg/core/vector.go
package core

import (
	"math"
	"math/rand"
)

// Vec3 is a float64 3D vector in simulation space. Y is up.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Common axis vectors
var (
	Zero    = Vec3{}
	Up      = Vec3{Y: 1}
	Right   = Vec3{X: 1}
	Forward = Vec3{Z: 1}
)

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) LengthSq() float64 {
	return v.Dot(v)
}

func (v Vec3) Length() float64 {
	return math.Sqrt(v.LengthSq())
}

// Normalized returns the unit vector, or Zero for a zero-length input.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return Zero
	}
	return v.Scale(1 / l)
}

// Distance returns the euclidean distance between two points.
func (v Vec3) Distance(o Vec3) float64 {
	return v.Sub(o).Length()
}

// Lerp interpolates between v and o; t is not clamped.
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

// IsZero reports whether every component is exactly zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// RandomInUnitSphere samples a point uniformly inside the unit sphere by rejection.
func RandomInUnitSphere(rng *rand.Rand) Vec3 {
	for {
		p := Vec3{
			X: rng.Float64()*2 - 1,
			Y: rng.Float64()*2 - 1,
			Z: rng.Float64()*2 - 1,
		}
		if p.LengthSq() <= 1 {
			return p
		}
	}
}

// Transform is a position with an orthonormal basis.
type Transform struct {
	Position Vec3
	Forward  Vec3
	Right    Vec3
	Up       Vec3
}

// IdentityTransform returns a transform at origin looking down +Z.
func IdentityTransform() Transform {
	return Transform{Forward: Forward, Right: Right, Up: Up}
}

// LookTransform builds a transform at position looking along forward with world up.
func LookTransform(position, forward Vec3) Transform {
	f := forward.Normalized()
	if f.IsZero() {
		f = Forward
	}
	r := Up.Cross(f).Normalized()
	if r.IsZero() {
		r = Right
	}
	return Transform{
		Position: position,
		Forward:  f,
		Right:    r,
		Up:       f.Cross(r),
	}
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Clamp clamps v into [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp interpolates scalars; t is clamped to [0,1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*Clamp01(t)
}

// MoveTowards moves current toward target by at most maxDelta.
func MoveTowards(current, target, maxDelta float64) float64 {
	if math.Abs(target-current) <= maxDelta {
		return target
	}
	if target > current {
		return current + maxDelta
	}
	return current - maxDelta
}
