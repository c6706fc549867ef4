// Package types holds the engine's input data model: the per-frame
// sensor observation and the frame the mapping loop consumes.
// These are supplied by an external front-end (image sync, depth-to-cloud,
// plane segmentation, visual odometry) that is out of scope for this
// module; the core only reads them.
package types

import (
	"github.com/golang/geo/r3"

	"github.com/sg47/plane-slam/internal/cloud"
	"github.com/sg47/plane-slam/internal/geometry"
)

// PlaneObservation is one segmented planar patch reported by the
// front-end in the current sensor frame.
type PlaneObservation struct {
	// Coefficients are (a,b,c,d) in sensor frame, a^2+b^2+c^2=1.
	Coefficients [4]float64
	// Sigmas are the observation noise sigmas for the minimal
	// (direction x2, distance x1) plane parameterization.
	Sigmas   [3]float64
	Cloud    cloud.Cloud
	Centroid r3.Vector
}

// Plane returns the observation's coefficients as a geometry.OrientedPlane.
func (o PlaneObservation) Plane() geometry.OrientedPlane {
	c := o.Coefficients
	return geometry.FromCoefficients(c[0], c[1], c[2], c[3])
}

// Frame is one timestamped input to the mapping loop: the front-end's
// sensor pose estimate plus the planes segmented in that frame.
type Frame struct {
	Pose   geometry.Pose
	Planes []PlaneObservation
}
