package control

import (
	"math"
	"testing"
)

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"KeyframeLinearThreshold", cfg.KeyframeLinearThreshold, 0.05},
		{"KeyframeAngularThresholdDeg", cfg.KeyframeAngularThresholdDeg, 5},
		{"RelinearizeThreshold", cfg.RelinearizeThreshold, 0.05},
		{"PlaneMatchDistanceThreshold", cfg.PlaneMatchDistanceThreshold, 0.10},
		{"PlaneMatchOverlapAlpha", cfg.PlaneMatchOverlapAlpha, 0.5},
		{"PlaneInlierLeafSize", cfg.PlaneInlierLeafSize, 0.05},
	}
	for _, c := range cases {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if !cfg.UseKeyframe || !cfg.PlaneMatchCheckOverlap || !cfg.PublishOptimizedPath {
		t.Errorf("expected UseKeyframe, PlaneMatchCheckOverlap and PublishOptimizedPath to default true")
	}
	if cfg.RelinearizeSkip != 1 {
		t.Errorf("RelinearizeSkip = %d, want 1", cfg.RelinearizeSkip)
	}
}

func TestAngularThresholdConversions(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.KeyframeAngularThreshold()
	want := 5 * math.Pi / 180
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("KeyframeAngularThreshold() = %v, want %v", got, want)
	}
}
