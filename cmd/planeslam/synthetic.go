package main

import (
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/sg47/plane-slam/internal/cloud"
	"github.com/sg47/plane-slam/internal/geometry"
	"github.com/sg47/plane-slam/internal/types"
)

// syntheticFrames builds n keyframes observing a single fixed floor
// plane (0,0,1,-1) from a trajectory translating along x, exercising
// the mapping loop's keyframe gate and matched-observation path without
// depending on the out-of-scope ingest pipeline.
func syntheticFrames(n int) []types.Frame {
	frames := make([]types.Frame, n)
	for k := 0; k < n; k++ {
		pose := geometry.NewPose(r3.Vector{X: float64(k) * 0.1}, identity3())
		obsCloud := syntheticPlaneCloud(200, 1.0)
		frames[k] = types.Frame{
			Pose: pose,
			Planes: []types.PlaneObservation{
				{
					Coefficients: [4]float64{0, 0, 1, -1},
					Sigmas:       [3]float64{0.01, 0.01, 0.02},
					Cloud:        obsCloud,
					Centroid:     cloud.Centroid3(obsCloud),
				},
			},
		}
	}
	return frames
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func syntheticPlaneCloud(n int, z float64) cloud.Cloud {
	out := make(cloud.Cloud, n)
	for i := 0; i < n; i++ {
		out[i] = cloud.Point{
			Position: r3.Vector{X: rand.Float64()*2 - 1, Y: rand.Float64()*2 - 1, Z: z},
			Color:    cloud.Color{R: 200, G: 200, B: 200, A: 255},
		}
	}
	return out
}
