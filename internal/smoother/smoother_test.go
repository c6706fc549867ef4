package smoother

import (
	"errors"
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/sg47/plane-slam/internal/geometry"
)

func TestPoseAndPlaneKeyFormat(t *testing.T) {
	if PoseKey(0) != "x0" || PoseKey(12) != "x12" {
		t.Fatalf("PoseKey format mismatch: %s %s", PoseKey(0), PoseKey(12))
	}
	if PlaneKey(0) != "l0" || PlaneKey(7) != "l7" {
		t.Fatalf("PlaneKey format mismatch: %s %s", PlaneKey(0), PlaneKey(7))
	}
}

func TestSingleObservationReproducesCoefficients(t *testing.T) {
	s := New(DefaultParams())
	x0 := PoseKey(0)
	l0 := PlaneKey(0)

	pose := geometry.Identity()
	s.SetPoseGuess(x0, pose)
	s.AddFactors(NewPosePrior(x0, pose, [6]float64{1e-3, 1e-3, 1e-3, 1e-4, 1e-3, 1e-3}))
	s.AddFactors(NewDirectionPrior(l0, [2]float64{0, 0}, [2]float64{0.01, 0.01}))
	s.AddFactors(NewPlaneObservation(x0, l0, [4]float64{0, 0, 1, -1}, [3]float64{0.01, 0.01, 0.02}))
	s.SetPlaneGuess(l0, geometry.FromCoefficients(0, 0, 1, -1))

	if err := s.Relinearize(); err != nil {
		t.Fatalf("Relinearize: %v", err)
	}

	best := s.BestEstimate()
	plane := best.Planes[l0]
	angle, dist := geometry.Compare(plane, geometry.FromCoefficients(0, 0, 1, -1))
	if angle > 1e-3 || dist > 1e-3 {
		t.Fatalf("plane estimate = %+v, angle=%v dist=%v", plane, angle, dist)
	}
}

func TestRelinearizeSkipDelaysUpdate(t *testing.T) {
	params := Params{RelinearizeThreshold: 0, RelinearizeSkip: 2}
	s := New(params)
	x0 := PoseKey(0)
	l0 := PlaneKey(0)
	pose := geometry.Identity()
	s.SetPoseGuess(x0, pose)
	s.SetPlaneGuess(l0, geometry.FromCoefficients(1, 0, 0, 0))
	s.AddFactors(NewPlaneObservation(x0, l0, [4]float64{0, 1, 0, 0}, [3]float64{0.01, 0.01, 0.01}))

	if err := s.Relinearize(); err != nil {
		t.Fatalf("first Relinearize: %v", err)
	}
	first := s.BestEstimate().Planes[l0]
	if first.Normal.X < 0.9 {
		t.Fatalf("first relinearize (skipped) should keep initial guess, got %+v", first)
	}

	if err := s.Relinearize(); err != nil {
		t.Fatalf("second Relinearize: %v", err)
	}
	second := s.BestEstimate().Planes[l0]
	if second.Normal.Y < 0.9 {
		t.Fatalf("second relinearize should have applied the observation, got %+v", second)
	}
}

func TestDivergesWithNoInformation(t *testing.T) {
	s := New(Params{RelinearizeThreshold: 0, RelinearizeSkip: 1})
	s.planeEst[PlaneKey(0)] = geometry.OrientedPlane{Normal: r3.Vector{}, Distance: 0}
	err := s.Relinearize()
	if err == nil {
		t.Fatalf("expected ErrDiverged for a plane with zero normal and no factors")
	}
	if !errors.Is(err, ErrDiverged) {
		t.Fatalf("expected error to wrap ErrDiverged, got %v", err)
	}
}

func TestRoundTripSanity(t *testing.T) {
	p := geometry.FromCoefficients(0, 0, 1, -1)
	pose := geometry.NewPose(r3.Vector{X: 1, Y: 2, Z: 3}, mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}))
	if !p.RoundTrip(pose, 1e-6) {
		t.Fatalf("plane failed to round-trip")
	}
}
