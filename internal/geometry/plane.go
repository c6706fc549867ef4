package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// OrientedPlane is the minimal 3-DoF plane parameterization: a unit normal
// direction (2 DoF on S^2) and a signed distance from the origin (1 DoF).
type OrientedPlane struct {
	Normal   r3.Vector // unit length
	Distance float64
}

// NewOrientedPlane normalizes n and builds the plane.
func NewOrientedPlane(n r3.Vector, d float64) OrientedPlane {
	return OrientedPlane{Normal: n.Normalize(), Distance: d}
}

// FromCoefficients builds a plane from (a,b,c,d) with a^2+b^2+c^2=1 assumed;
// the normal is still renormalized defensively.
func FromCoefficients(a, b, c, d float64) OrientedPlane {
	return NewOrientedPlane(r3.Vector{X: a, Y: b, Z: c}, d)
}

// Coefficients returns the derivable 4-vector (a,b,c,d) with a^2+b^2+c^2=1.
func (p OrientedPlane) Coefficients() [4]float64 {
	return [4]float64{p.Normal.X, p.Normal.Y, p.Normal.Z, p.Distance}
}

// Transform expresses this plane, assumed given in pose's "to" frame, in
// pose's "from" frame: normal' = R^T*n, d' = n.t + d. See package docs on
// Pose for the frame convention; this single rule serves both
// observation/landmark prediction (C5) and initial-guess construction (C6),
// matching gtsam's OrientedPlane3::transform semantics used throughout
// gtsam_mapping.cpp.
func (p OrientedPlane) Transform(pose Pose) OrientedPlane {
	n2 := mulVec(pose.Rotation.T(), p.Normal)
	d2 := p.Normal.Dot(pose.Translation) + p.Distance
	return OrientedPlane{Normal: n2.Normalize(), Distance: d2}
}

// RoundTrip reports whether transforming by pose then pose.Inverse()
// reproduces the plane within tol, on both angle and distance.
func (p OrientedPlane) RoundTrip(pose Pose, tol float64) bool {
	back := p.Transform(pose).Transform(pose.Inverse())
	angle := math.Acos(clamp(p.Normal.Dot(back.Normal), -1, 1))
	return angle < tol && math.Abs(p.Distance-back.Distance) < tol
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Compare returns the angular misalignment (radians) and the absolute
// distance offset between two planes already expressed in the same
// frame — the two scalars association and refinement gate on.
func Compare(a, b OrientedPlane) (angle, dist float64) {
	cs := clamp(a.Normal.Dot(b.Normal), -1, 1)
	return math.Acos(cs), math.Abs(a.Distance - b.Distance)
}

// LocalFrame is the SE(3) frame whose z-axis is a plane's normal and whose
// origin is a reference point (typically the plane's centroid). It reduces
// plane-to-plane comparison to a scalar angle and a scalar offset: compare
// two planes by transforming both into the same LocalFrame and reading off
// their normal-vs-Z angle and signed distance.
func LocalFrame(normal r3.Vector, origin r3.Vector) Pose {
	n := normal.Normalize()
	col1, col2 := orthonormalBasis(n)
	rot := denseFromColumns(col1, col2, n)
	return NewPose(origin, rot)
}

// orthonormalBasis builds two unit vectors col1, col2 such that
// (col1, col2, n) is a right-handed orthonormal basis, mirroring gtsam's
// OrientedPlane3::normal().basis() construction used by matchPlanes and
// refinePlanarMap in gtsam_mapping.cpp.
func orthonormalBasis(n r3.Vector) (r3.Vector, r3.Vector) {
	var seed r3.Vector
	if math.Abs(n.X) < math.Abs(n.Y) && math.Abs(n.X) < math.Abs(n.Z) {
		seed = r3.Vector{X: 1}
	} else if math.Abs(n.Y) < math.Abs(n.Z) {
		seed = r3.Vector{Y: 1}
	} else {
		seed = r3.Vector{Z: 1}
	}
	col1 := seed.Sub(n.Mul(seed.Dot(n))).Normalize()
	col2 := n.Cross(col1).Normalize()
	return col1, col2
}
