// Package geometry implements the rigid-pose and oriented-plane primitives
// the mapping engine operates on: SE(3) poses, the minimal 3-DoF
// oriented-plane parameterization, and the local plane frame construction
// used by data association and map refinement.
package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Pose is a rigid transform in SE(3): a rotation and a translation.
// Applying a Pose to a point in its "from" frame yields the point's
// coordinates in its "to" frame: p_to = Rotation*p_from + Translation.
type Pose struct {
	Translation r3.Vector
	Rotation    *mat.Dense // 3x3, orthonormal
}

// Identity returns the identity pose.
func Identity() Pose {
	return Pose{Translation: r3.Vector{}, Rotation: identity3()}
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// NewPose builds a Pose from a translation and a 3x3 rotation matrix.
// The rotation is re-orthonormalized via SVD (see Renormalize) so that
// small numerical drift from repeated composition never accumulates into
// an invalid rotation.
func NewPose(translation r3.Vector, rotation *mat.Dense) Pose {
	p := Pose{Translation: translation, Rotation: cloneDense(rotation)}
	p.Renormalize()
	return p
}

func cloneDense(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Copy(m)
	return out
}

// Renormalize projects Rotation back onto SO(3) via the polar decomposition
// R' = U*V^T from the SVD R = U*S*V^T, the same gonum SVD idiom used for
// 2-D rigid-alignment fits, generalized here to 3-D.
func (p *Pose) Renormalize() {
	var svd mat.SVD
	ok := svd.Factorize(p.Rotation, mat.SVDThin)
	if !ok {
		return
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		// Flip the sign of the last column of V to avoid a reflection,
		// matching Procrustes' reflection-correction branch.
		cols := make([]float64, 3)
		for i := 0; i < 3; i++ {
			cols[i] = -v.At(i, 2)
		}
		v.SetCol(2, cols)
		r.Mul(&u, v.T())
	}
	p.Rotation = &r
}

// FromMatrix builds a Pose from a 4x4 homogeneous transform.
func FromMatrix(m *mat.Dense) Pose {
	rot := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot.Set(i, j, m.At(i, j))
		}
	}
	t := r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
	return NewPose(t, rot)
}

// Matrix returns the 4x4 homogeneous transform for this pose.
func (p Pose) Matrix() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, p.Rotation.At(i, j))
		}
	}
	m.Set(0, 3, p.Translation.X)
	m.Set(1, 3, p.Translation.Y)
	m.Set(2, 3, p.Translation.Z)
	m.Set(3, 3, 1)
	return m
}

// TransformPoint maps a point from this pose's "from" frame into its "to"
// frame: p_to = R*p_from + t.
func (p Pose) TransformPoint(pt r3.Vector) r3.Vector {
	return mulVec(p.Rotation, pt).Add(p.Translation)
}

// Inverse returns the inverse pose.
func (p Pose) Inverse() Pose {
	rt := mat.NewDense(3, 3, nil)
	rt.Copy(p.Rotation.T())
	negT := mulVec(rt, p.Translation).Mul(-1)
	return NewPose(negT, rt)
}

// Compose returns p followed by q: applying the result to a point is the
// same as applying p then q (p: A->B, q: B->C, result: A->C).
func (p Pose) Compose(q Pose) Pose {
	var r mat.Dense
	r.Mul(q.Rotation, p.Rotation)
	t := mulVec(q.Rotation, p.Translation).Add(q.Translation)
	return NewPose(t, &r)
}

// Between returns the relative pose last^-1 * current, i.e. "current
// expressed in last's frame" — the odometry-factor measurement.
func Between(last, current Pose) Pose {
	return last.Inverse().Compose(current)
}

// TranslationMagnitude returns ||Translation||.
func (p Pose) TranslationMagnitude() float64 {
	return p.Translation.Norm()
}

// RotationAngle returns the magnitude of the axis-angle rotation, in
// radians, via trace(R) = 1 + 2*cos(theta).
func (p Pose) RotationAngle() float64 {
	trace := p.Rotation.At(0, 0) + p.Rotation.At(1, 1) + p.Rotation.At(2, 2)
	cosTheta := (trace - 1) / 2
	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	return math.Acos(cosTheta)
}

func mulVec(m mat.Matrix, v r3.Vector) r3.Vector {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// denseFromColumns builds a 3x3 matrix from three column vectors.
func denseFromColumns(c1, c2, c3 r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		c1.X, c2.X, c3.X,
		c1.Y, c2.Y, c3.Y,
		c1.Z, c2.Z, c3.Z,
	})
}
