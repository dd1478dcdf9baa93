package xform

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Rigid is a yaw rotation followed by a ground translation. It re-bases clip
// space into world space without touching heights.
type Rigid struct {
	Yaw         float64
	Translation r3.Vec
}

// Apply maps a point.
func (r Rigid) Apply(v r3.Vec) r3.Vec {
	return r3.Add(RotateY(v, r.Yaw), r.Translation)
}

// ApplyDirection maps a direction, ignoring the translation.
func (r Rigid) ApplyDirection(v r3.Vec) r3.Vec {
	return RotateY(v, r.Yaw)
}

// Rotation returns the rotation part as a quaternion.
func (r Rigid) Rotation() quat.Number {
	return QuatY(r.Yaw)
}

// ApplyRotation maps an orientation.
func (r Rigid) ApplyRotation(q quat.Number) quat.Number {
	return Mul(QuatY(r.Yaw), q)
}

// Compose returns the transform that applies b first, then r.
func (r Rigid) Compose(b Rigid) Rigid {
	return Rigid{
		Yaw:         WrapAngle(r.Yaw + b.Yaw),
		Translation: r3.Add(RotateY(b.Translation, r.Yaw), r.Translation),
	}
}

// Inverse returns the transform undoing r.
func (r Rigid) Inverse() Rigid {
	return Rigid{
		Yaw:         -r.Yaw,
		Translation: r3.Scale(-1, RotateY(r.Translation, -r.Yaw)),
	}
}

// Align returns the transform that places fromPos on the ground point under
// toPos and turns fromDir onto toDir. Heights are preserved.
func Align(fromPos, fromDir, toPos, toDir r3.Vec) Rigid {
	yaw := SignedAngle(fromDir, toDir)
	return Rigid{
		Yaw:         yaw,
		Translation: r3.Sub(Ground(toPos), RotateY(Ground(fromPos), yaw)),
	}
}
