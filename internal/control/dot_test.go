package control

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sg47/plane-slam/internal/geometry"
	"github.com/sg47/plane-slam/internal/smoother"
)

func TestWriteGraphDOTIncludesAllFactorKinds(t *testing.T) {
	factors := []smoother.Factor{
		smoother.NewPosePrior("x0", geometry.Identity(), [6]float64{}),
		smoother.NewDirectionPrior("l0", [2]float64{0, 0}, [2]float64{}),
		smoother.NewBetweenPose("x0", "x1", geometry.Identity(), [6]float64{}),
		smoother.NewPlaneObservation("x1", "l0", [4]float64{0, 0, 1, -1}, [3]float64{}),
	}

	var buf bytes.Buffer
	if err := WriteGraphDOT(&buf, factors); err != nil {
		t.Fatalf("WriteGraphDOT: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "graph plane_slam {\n") {
		t.Fatalf("missing graph header: %q", out)
	}
	for _, want := range []string{"x0", "x1", "l0", "pose_prior", "direction_prior", "between_pose", "plane_observation"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Fatalf("missing graph footer")
	}
}
