package cloud

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/sg47/plane-slam/internal/geometry"
)

func TestCentroid3Empty(t *testing.T) {
	c := Centroid3(nil)
	if c != (r3.Vector{}) {
		t.Fatalf("centroid of empty cloud = %v, want zero vector", c)
	}
}

func TestCentroid3Average(t *testing.T) {
	c := Cloud{
		{Position: r3.Vector{X: 0, Y: 0, Z: 0}},
		{Position: r3.Vector{X: 2, Y: 0, Z: 0}},
	}
	got := Centroid3(c)
	want := r3.Vector{X: 1}
	if got != want {
		t.Fatalf("centroid = %v, want %v", got, want)
	}
}

func TestProjectToPlaneLandsOnPlane(t *testing.T) {
	c := Cloud{
		{Position: r3.Vector{X: 1, Y: 2, Z: 5}},
		{Position: r3.Vector{X: -3, Y: 0, Z: -2}},
	}
	coeffs := [4]float64{0, 0, 1, -1} // z = 1
	projected := ProjectToPlane(c, coeffs)
	for _, p := range projected {
		if math.Abs(p.Position.Z-1) > 1e-9 {
			t.Fatalf("projected point not on plane: %v", p.Position)
		}
	}
}

func TestVoxelDownsampleDecimates(t *testing.T) {
	c := make(Cloud, 0, 8)
	for i := 0; i < 8; i++ {
		c = append(c, Point{Position: r3.Vector{X: 0.001 * float64(i)}})
	}
	got := VoxelDownsample(c, 1.0)
	if len(got) != 1 {
		t.Fatalf("len(VoxelDownsample) = %d, want 1", len(got))
	}
}

func TestVoxelDownsampleEmptyLeaf(t *testing.T) {
	c := Cloud{{Position: r3.Vector{X: 1}}}
	got := VoxelDownsample(c, 0)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 passthrough", len(got))
	}
}

func TestTransformAppliesPoseAndColor(t *testing.T) {
	c := Cloud{{Position: r3.Vector{X: 1}}}
	pose := geometry.Identity()
	pose.Translation = r3.Vector{X: 1}
	color := Color{R: 10, G: 20, B: 30, A: 255}

	got := Transform(c, pose, color)
	want := r3.Vector{X: 2}
	if got[0].Position != want {
		t.Fatalf("transformed position = %v, want %v", got[0].Position, want)
	}
	if got[0].Color != color {
		t.Fatalf("transformed color = %v, want %v", got[0].Color, color)
	}
}
