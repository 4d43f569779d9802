package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform in 3D space, a translation paired with a unit
// quaternion rotation. It places a camera (or any rigid body) in a parent
// frame: Transform maps body coordinates to parent coordinates.
type Pose struct {
	Translation r3.Vector
	Rotation    quat.Number
}

// NewZeroPose returns the identity transform. Since the rotation must be a
// unit quaternion, not all zeroes, this should be used instead of Pose{}.
func NewZeroPose() Pose {
	return Pose{Rotation: quat.Number{Real: 1}}
}

// NewPose returns a pose from a translation and a rotation, normalizing the
// rotation so accumulated floating point drift cannot leave the group.
func NewPose(t r3.Vector, r quat.Number) Pose {
	return Pose{Translation: t, Rotation: normalize(r)}
}

// NewPoseFromTangent builds the pose exp(v, w) from a translation increment
// and an so3 tangent vector, composing the rotation through the exponential
// map.
func NewPoseFromTangent(v, w r3.Vector) Pose {
	r, _ := Exp(w)
	return Pose{Translation: v, Rotation: r}
}

// Compose returns the pose p then q applied on top, i.e. the transform
// mapping x to p.Transform(q.Transform(x)).
func (p Pose) Compose(q Pose) Pose {
	return Pose{
		Translation: p.Translation.Add(RotateVec(p.Rotation, q.Translation)),
		Rotation:    normalize(quat.Mul(p.Rotation, q.Rotation)),
	}
}

// Invert returns the inverse transform of p.
func (p Pose) Invert() Pose {
	inv := quat.Conj(p.Rotation)
	return Pose{
		Translation: RotateVec(inv, p.Translation.Mul(-1)),
		Rotation:    inv,
	}
}

// Transform maps a point from the pose's body frame to its parent frame.
func (p Pose) Transform(pt r3.Vector) r3.Vector {
	return RotateVec(p.Rotation, pt).Add(p.Translation)
}

// RotateVec rotates a vector by a unit quaternion through the sandwich
// product q * v * q'.
func RotateVec(q quat.Number, v r3.Vector) r3.Vector {
	pure := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rotated := quat.Mul(quat.Mul(q, pure), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// QuatNorm returns the imaginary norm of the quaternion, i.e. the sqrt of the
// sum of the squares of the imaginary parts.
func QuatNorm(q quat.Number) float64 {
	return math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

func normalize(q quat.Number) quat.Number {
	if abs := quat.Abs(q); abs != 1 && abs != 0 {
		return quat.Scale(1/abs, q)
	}
	return q
}
