package association

import (
	"testing"

	"github.com/golang/geo/r3"

	"github.com/sg47/plane-slam/internal/cloud"
	"github.com/sg47/plane-slam/internal/geometry"
	"github.com/sg47/plane-slam/internal/landmark"
	"github.com/sg47/plane-slam/internal/types"
)

func defaultConfig() Config {
	return Config{
		DirectionThreshold: 10 * 3.14159265 / 180,
		DistanceThreshold:  0.1,
		CheckOverlap:       false,
	}
}

func TestMatchAcceptsCloseLandmark(t *testing.T) {
	store := landmark.NewStore()
	store.Append(landmark.Landmark{Coefficients: [4]float64{0, 0, 1, -1}, Valid: true, Cloud: cloud.Cloud{{Position: r3.Vector{Z: 1}}}})

	estimated := map[int]geometry.OrientedPlane{0: geometry.FromCoefficients(0, 0, 1, -1)}
	obs := types.PlaneObservation{
		Coefficients: [4]float64{0, 0, 1, -0.999},
		Centroid:     r3.Vector{Z: 1},
	}

	pairs := Match(geometry.Identity(), []types.PlaneObservation{obs}, store, estimated, defaultConfig())
	if len(pairs) != 1 || pairs[0].Lm != 0 {
		t.Fatalf("pairs = %+v, want one pair to landmark 0", pairs)
	}
}

func TestMatchRejectsFarLandmark(t *testing.T) {
	store := landmark.NewStore()
	store.Append(landmark.Landmark{Coefficients: [4]float64{0, 0, 1, -1}, Valid: true})

	estimated := map[int]geometry.OrientedPlane{0: geometry.FromCoefficients(0, 0, 1, -1)}
	obs := types.PlaneObservation{
		Coefficients: [4]float64{1, 0, 0, -2}, // orthogonal, unrelated plane
		Centroid:     r3.Vector{X: 2},
	}

	pairs := Match(geometry.Identity(), []types.PlaneObservation{obs}, store, estimated, defaultConfig())
	if len(pairs) != 0 {
		t.Fatalf("pairs = %+v, want no match", pairs)
	}
}

func TestMatchTieBreaksOnLargestCloud(t *testing.T) {
	store := landmark.NewStore()
	small := make(cloud.Cloud, 10)
	big := make(cloud.Cloud, 100)
	store.Append(landmark.Landmark{Coefficients: [4]float64{0, 0, 1, -1}, Valid: true, Cloud: small})
	store.Append(landmark.Landmark{Coefficients: [4]float64{0, 0, 1, -1}, Valid: true, Cloud: big})

	estimated := map[int]geometry.OrientedPlane{
		0: geometry.FromCoefficients(0, 0, 1, -1),
		1: geometry.FromCoefficients(0, 0, 1, -1),
	}
	obs := types.PlaneObservation{Coefficients: [4]float64{0, 0, 1, -1}, Centroid: r3.Vector{Z: 1}}

	pairs := Match(geometry.Identity(), []types.PlaneObservation{obs}, store, estimated, defaultConfig())
	if len(pairs) != 1 || pairs[0].Lm != 1 {
		t.Fatalf("pairs = %+v, want tie-break to pick landmark 1 (largest cloud)", pairs)
	}
}

func TestMatchIgnoresInvalidLandmarks(t *testing.T) {
	store := landmark.NewStore()
	store.Append(landmark.Landmark{Coefficients: [4]float64{0, 0, 1, -1}, Valid: false})

	estimated := map[int]geometry.OrientedPlane{0: geometry.FromCoefficients(0, 0, 1, -1)}
	obs := types.PlaneObservation{Coefficients: [4]float64{0, 0, 1, -1}, Centroid: r3.Vector{Z: 1}}

	pairs := Match(geometry.Identity(), []types.PlaneObservation{obs}, store, estimated, defaultConfig())
	if len(pairs) != 0 {
		t.Fatalf("pairs = %+v, want no pairs against an invalidated landmark", pairs)
	}
}
