// Package control implements the engine's configuration surface and
// persisted-format writers: Config/DefaultConfig, the Observer hook, and
// the PCD/DOT writers consumed by save_map and save_graph.
package control

import "math"

// Config enumerates every tunable threshold the mapping engine reads.
// Angular thresholds are configured in degrees and converted to radians
// by the accessor methods below each time the mapping engine reads them,
// matching a dynamic-reconfigure-style parameter set.
type Config struct {
	UseKeyframe                 bool
	KeyframeLinearThreshold     float64 // meters
	KeyframeAngularThresholdDeg float64

	RelinearizeThreshold float64
	RelinearizeSkip      int

	PlaneMatchDirectionThresholdDeg float64
	PlaneMatchDistanceThreshold     float64
	PlaneMatchCheckOverlap          bool
	PlaneMatchOverlapAlpha          float64

	PlaneInlierLeafSize float64
	PlaneHullAlpha      float64 // reserved, not consumed by any operation yet

	RefinePlanarMap                  bool
	PlanarMergeDirectionThresholdDeg float64
	PlanarMergeDistanceThreshold     float64
	PlanarBadInlierAlpha             float64

	PublishOptimizedPath bool
}

// DefaultConfig returns the engine's default configuration.
func DefaultConfig() Config {
	return Config{
		UseKeyframe:                 true,
		KeyframeLinearThreshold:     0.05,
		KeyframeAngularThresholdDeg: 5,

		RelinearizeThreshold: 0.05,
		RelinearizeSkip:      1,

		PlaneMatchDirectionThresholdDeg: 10,
		PlaneMatchDistanceThreshold:     0.10,
		PlaneMatchCheckOverlap:          true,
		PlaneMatchOverlapAlpha:          0.5,

		PlaneInlierLeafSize: 0.05,
		PlaneHullAlpha:      0.5,

		RefinePlanarMap:                  true,
		PlanarMergeDirectionThresholdDeg: 10,
		PlanarMergeDistanceThreshold:     0.10,
		PlanarBadInlierAlpha:             0.3,

		PublishOptimizedPath: true,
	}
}

// KeyframeAngularThreshold returns θ_key in radians.
func (c Config) KeyframeAngularThreshold() float64 {
	return c.KeyframeAngularThresholdDeg * math.Pi / 180
}

// PlaneMatchDirectionThreshold returns τ_angle in radians.
func (c Config) PlaneMatchDirectionThreshold() float64 {
	return c.PlaneMatchDirectionThresholdDeg * math.Pi / 180
}

// PlanarMergeDirectionThreshold returns τ'_angle in radians.
func (c Config) PlanarMergeDirectionThreshold() float64 {
	return c.PlanarMergeDirectionThresholdDeg * math.Pi / 180
}
