package geometry

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

func floatsClose(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func vectorsClose(a, b r3.Vector, tol float64) bool {
	return floatsClose(a.X, b.X, tol) && floatsClose(a.Y, b.Y, tol) && floatsClose(a.Z, b.Z, tol)
}

func TestIdentityComposeIsNoop(t *testing.T) {
	id := Identity()
	p := NewPose(r3.Vector{X: 1, Y: 2, Z: 3}, identity3())
	got := id.Compose(p)
	if !vectorsClose(got.Translation, p.Translation, 1e-9) {
		t.Fatalf("identity compose changed translation: got %v want %v", got.Translation, p.Translation)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	rot := mat.NewDense(3, 3, []float64{
		0, -1, 0,
		1, 0, 0,
		0, 0, 1,
	})
	p := NewPose(r3.Vector{X: 1, Y: -2, Z: 0.5}, rot)
	pt := r3.Vector{X: 3, Y: 4, Z: 5}

	transformed := p.TransformPoint(pt)
	back := p.Inverse().TransformPoint(transformed)
	if !vectorsClose(back, pt, 1e-9) {
		t.Fatalf("round trip failed: got %v want %v", back, pt)
	}
}

func TestBetweenComposesBackToCurrent(t *testing.T) {
	last := NewPose(r3.Vector{X: 1}, identity3())
	current := NewPose(r3.Vector{X: 2, Y: 1}, identity3())
	rel := Between(last, current)
	got := last.Compose(rel)
	if !vectorsClose(got.Translation, current.Translation, 1e-9) {
		t.Fatalf("Between/Compose round trip failed: got %v want %v", got.Translation, current.Translation)
	}
}

func TestTranslationAndRotationMagnitude(t *testing.T) {
	p := NewPose(r3.Vector{X: 3, Y: 4, Z: 0}, identity3())
	if !floatsClose(p.TranslationMagnitude(), 5, 1e-9) {
		t.Fatalf("translation magnitude = %v, want 5", p.TranslationMagnitude())
	}
	if !floatsClose(p.RotationAngle(), 0, 1e-9) {
		t.Fatalf("identity rotation angle = %v, want 0", p.RotationAngle())
	}

	rot := mat.NewDense(3, 3, []float64{
		0, -1, 0,
		1, 0, 0,
		0, 0, 1,
	})
	q := NewPose(r3.Vector{}, rot)
	if !floatsClose(q.RotationAngle(), math.Pi/2, 1e-6) {
		t.Fatalf("90deg rotation angle = %v, want pi/2", q.RotationAngle())
	}
}

func TestRenormalizeRejectsReflection(t *testing.T) {
	reflect := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, -1,
	})
	p := NewPose(r3.Vector{}, reflect)
	if mat.Det(p.Rotation) < 0 {
		t.Fatalf("Renormalize left a reflection: det = %v", mat.Det(p.Rotation))
	}
}
