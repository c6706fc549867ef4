package refine

import (
	"testing"

	"github.com/golang/geo/r3"

	"github.com/sg47/plane-slam/internal/cloud"
	"github.com/sg47/plane-slam/internal/landmark"
)

func defaultConfig() Config {
	return Config{
		MergeDirectionThreshold: 10 * 3.14159265 / 180,
		MergeDistanceThreshold:  0.1,
		OverlapResolution:       0.05,
	}
}

func gridCloud(n int, leaf float64) cloud.Cloud {
	out := make(cloud.Cloud, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, cloud.Point{Position: r3.Vector{X: float64(i) * leaf, Y: 0, Z: 1}})
	}
	return out
}

func TestMergeCoplanarMergesIdenticalPlanes(t *testing.T) {
	store := landmark.NewStore()
	small := gridCloud(50, 0.01)
	big := gridCloud(500, 0.01)
	store.Append(landmark.Landmark{Coefficients: [4]float64{0, 0, 1, -1}, Cloud: small, Valid: true})
	store.Append(landmark.Landmark{Coefficients: [4]float64{0, 0, 1, -1}, Cloud: big, Valid: true})

	merged := MergeCoplanar(store, defaultConfig())
	if !merged {
		t.Fatalf("expected a merge between two identical co-planar landmarks")
	}

	l0, _ := store.Get(0)
	l1, _ := store.Get(1)
	if l0.Valid == l1.Valid {
		t.Fatalf("expected exactly one landmark to become invalid: l0.Valid=%v l1.Valid=%v", l0.Valid, l1.Valid)
	}
}

func TestMergeCoplanarIdempotent(t *testing.T) {
	store := landmark.NewStore()
	small := gridCloud(50, 0.01)
	big := gridCloud(500, 0.01)
	store.Append(landmark.Landmark{Coefficients: [4]float64{0, 0, 1, -1}, Cloud: small, Valid: true})
	store.Append(landmark.Landmark{Coefficients: [4]float64{0, 0, 1, -1}, Cloud: big, Valid: true})

	MergeCoplanar(store, defaultConfig())
	second := MergeCoplanar(store, defaultConfig())
	if second {
		t.Fatalf("second MergeCoplanar call should find nothing left to merge")
	}
}

func TestMergeCoplanarSkipsDistinctPlanes(t *testing.T) {
	store := landmark.NewStore()
	store.Append(landmark.Landmark{Coefficients: [4]float64{0, 0, 1, -1}, Cloud: gridCloud(100, 0.01), Valid: true})
	store.Append(landmark.Landmark{Coefficients: [4]float64{1, 0, 0, -2}, Cloud: gridCloud(100, 0.01), Valid: true})

	merged := MergeCoplanar(store, defaultConfig())
	if merged {
		t.Fatalf("expected no merge between orthogonal planes")
	}
}

func TestBadInlierMinNeighbors(t *testing.T) {
	n := BadInlierMinNeighbors(0.1, 0.05, 0.3)
	if n <= 0 {
		t.Fatalf("BadInlierMinNeighbors = %d, want > 0", n)
	}
}

func TestRemoveBadInlierDropsSparsePoints(t *testing.T) {
	store := landmark.NewStore()
	dense := gridCloud(30, 0.01)
	dense = append(dense, cloud.Point{Position: r3.Vector{X: 1000}})
	store.Append(landmark.Landmark{Coefficients: [4]float64{0, 0, 1, -1}, Cloud: dense, Valid: true})

	RemoveBadInlier(store, Config{BadInlierRadius: 0.05, BadInlierAlpha: 0.1}, 0.01)

	lm, _ := store.Get(0)
	for _, p := range lm.Cloud {
		if p.Position.X == 1000 {
			t.Fatalf("outlier point survived RemoveBadInlier")
		}
	}
}
