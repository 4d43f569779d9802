// Package spatialmath defines the spatial mathematical operations used for
// rotation and rigid transform handling during direct image alignment.
package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Threshold under which angles are considered small enough that Taylor
// expansions of sin/cos ratios are more accurate than the closed forms.
const so3Epsilon = 1e-2

// Hat maps an so3 parameterization to its so3 element, a skew-symmetric matrix.
func Hat(w r3.Vector) mgl64.Mat3 {
	// mgl64 matrices are column major.
	return mgl64.Mat3{
		0, w.Z, -w.Y,
		-w.Z, 0, w.X,
		w.Y, -w.X, 0,
	}
}

// Hat2 returns Hat(w) multiplied by itself, computed in closed form.
// The result is a symmetric matrix.
func Hat2(w r3.Vector) mgl64.Mat3 {
	w11 := w.X * w.X
	w12 := w.X * w.Y
	w13 := w.X * w.Z
	w22 := w.Y * w.Y
	w23 := w.Y * w.Z
	w33 := w.Z * w.Z
	return mgl64.Mat3{
		-w22 - w33, w12, w13,
		w12, -w11 - w33, w23,
		w13, w23, -w11 - w22,
	}
}

// Vee is the inverse of Hat. The caller must guarantee that the given matrix
// is skew-symmetric, the result is undefined otherwise.
func Vee(m mgl64.Mat3) r3.Vector {
	return r3.Vector{X: m.At(2, 1), Y: m.At(0, 2), Z: m.At(1, 0)}
}

// Exp computes the exponential map from the Lie algebra so3 to the Lie group
// SO3, returning the corresponding unit quaternion together with the rotation
// angle theta, the norm of w.
//
// Below so3Epsilon the real and imaginary factors are evaluated with their
// first order Taylor expansions to avoid the catastrophic cancellation of
// sin(theta/2)/theta.
func Exp(w r3.Vector) (quat.Number, float64) {
	theta2 := w.Norm2()
	theta := math.Sqrt(theta2)
	var realFactor, imagFactor float64
	if theta < so3Epsilon {
		realFactor = 1.0 - theta2/8.0
		imagFactor = 0.5 - theta2/48.0
	} else {
		halfTheta := 0.5 * theta
		realFactor = math.Cos(halfTheta)
		imagFactor = math.Sin(halfTheta) / theta
	}
	return quat.Number{
		Real: realFactor,
		Imag: imagFactor * w.X,
		Jmag: imagFactor * w.Y,
		Kmag: imagFactor * w.Z,
	}, theta
}

// Log computes the logarithm map from the Lie group SO3 to the Lie algebra
// so3, the inverse of Exp. It returns the tangent vector together with its
// norm theta.
//
// Three numerically distinct regimes are required. Near-zero imaginary norm
// uses an atan-based Taylor identity so there is no division by a vanishing
// quantity; a near-zero real part pins theta to +/- pi with the sign taken
// from the real part; the general case uses 2*atan2(|imag|, real). The
// atan-based formulation follows Hertzberg et al., "Integrating Generic
// Sensor Fusion Algorithms with Sound State Representation through
// Encapsulation of Manifolds", Information Fusion 2011.
func Log(q quat.Number) (r3.Vector, float64) {
	imag := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	imagNorm2 := imag.Norm2()
	imagNorm := math.Sqrt(imagNorm2)
	realPart := q.Real
	var theta, coef float64
	switch {
	case imagNorm < so3Epsilon:
		atanCoef := 2.0 * (1.0 - imagNorm2/(realPart*realPart)) / realPart
		theta = atanCoef * imagNorm
		coef = atanCoef
	case math.Abs(realPart) < so3Epsilon:
		theta = math.Pi
		if realPart < 0 {
			theta = -math.Pi
		}
		coef = theta / imagNorm
	default:
		theta = 2.0 * math.Atan2(imagNorm, realPart)
		coef = theta / imagNorm
	}
	return imag.Mul(coef), theta
}
