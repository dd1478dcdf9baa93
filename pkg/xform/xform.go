// Package xform provides the rotation and rigid-transform helpers shared by
// the motion store and the locomotion engine.
//
// Conventions: Y is up, the ground plane is XZ, a yaw of zero faces +Z and a
// positive yaw turns +Z toward +X. Quaternions are gonum quat.Number values
// with Real as the scalar part.
package xform

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// Up is the world up axis.
	Up = r3.Vec{Y: 1}

	// Forward is the facing direction of a zero yaw.
	Forward = r3.Vec{Z: 1}

	// Identity is the identity rotation.
	Identity = quat.Number{Real: 1}
)

const epsilon = 1e-9

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// AxisAngle returns the rotation of angle radians around a unit axis.
func AxisAngle(axis r3.Vec, angle float64) quat.Number {
	s := math.Sin(angle / 2)
	return quat.Number{
		Real: math.Cos(angle / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// QuatY returns a rotation of angle radians around the up axis.
func QuatY(angle float64) quat.Number {
	return quat.Number{Real: math.Cos(angle / 2), Jmag: math.Sin(angle / 2)}
}

// Mul composes rotations: the result applies b first, then a.
func Mul(a, b quat.Number) quat.Number {
	return quat.Mul(a, b)
}

// Normalize scales q to unit length. A degenerate q becomes the identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < epsilon {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Rotate applies the unit rotation q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Angle returns the rotation angle in [0, pi] between two unit rotations.
func Angle(a, b quat.Number) float64 {
	d := math.Abs(a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag)
	if d > 1 {
		d = 1
	}
	return 2 * math.Acos(d)
}

// ScaleRotation returns the rotation q applied t times along its own axis,
// so t=0 yields the identity and t=1 yields q.
func ScaleRotation(q quat.Number, t float64) quat.Number {
	q = Normalize(q)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	v := r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	s := r3.Norm(v)
	if s < epsilon {
		return Identity
	}
	angle := 2 * math.Atan2(s, q.Real)
	return AxisAngle(r3.Scale(1/s, v), angle*t)
}

// EulerToQuat converts BVH-style Euler angles in degrees to a rotation.
// order names the axis of each angle, e.g. "ZXY"; rotations compose in
// channel order.
func EulerToQuat(angles []float64, order string) quat.Number {
	q := Identity
	for i, axis := range order {
		if i >= len(angles) {
			break
		}
		var a r3.Vec
		switch axis {
		case 'X', 'x':
			a = r3.Vec{X: 1}
		case 'Y', 'y':
			a = r3.Vec{Y: 1}
		case 'Z', 'z':
			a = r3.Vec{Z: 1}
		default:
			continue
		}
		q = quat.Mul(q, AxisAngle(a, Deg2Rad(angles[i])))
	}
	return Normalize(q)
}

// Yaw returns the heading angle of q's forward axis projected on the ground.
func Yaw(q quat.Number) float64 {
	f := Rotate(q, Forward)
	return math.Atan2(f.X, f.Z)
}

// Ground projects v onto the ground plane.
func Ground(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.X, Z: v.Z}
}

// GroundDirection returns the unit ground projection of v, or fallback when
// the projection is degenerate.
func GroundDirection(v, fallback r3.Vec) r3.Vec {
	g := Ground(v)
	if r3.Norm(g) < 1e-6 {
		return fallback
	}
	return r3.Unit(g)
}

// RotateY rotates v by angle radians around the up axis.
func RotateY(v r3.Vec, angle float64) r3.Vec {
	c, s := math.Cos(angle), math.Sin(angle)
	return r3.Vec{
		X: v.X*c + v.Z*s,
		Y: v.Y,
		Z: -v.X*s + v.Z*c,
	}
}

// SignedAngle returns the yaw that turns the ground projection of from onto
// the ground projection of to, in (-pi, pi].
func SignedAngle(from, to r3.Vec) float64 {
	f, t := Ground(from), Ground(to)
	cross := f.Z*t.X - f.X*t.Z
	dot := f.X*t.X + f.Z*t.Z
	return math.Atan2(cross, dot)
}

// WrapAngle maps a to (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// Clamp restricts v to [-limit, limit]. A negative limit is treated as zero.
func Clamp(v, limit float64) float64 {
	if limit < 0 {
		limit = 0
	}
	return math.Max(-limit, math.Min(limit, v))
}

// ClampVec shortens v to at most maxLen.
func ClampVec(v r3.Vec, maxLen float64) r3.Vec {
	if maxLen <= 0 {
		return r3.Vec{}
	}
	n := r3.Norm(v)
	if n <= maxLen {
		return v
	}
	return r3.Scale(maxLen/n, v)
}

// Direction returns the ground heading of q's forward axis.
func Direction(q quat.Number) r3.Vec {
	return GroundDirection(Rotate(q, Forward), Forward)
}
