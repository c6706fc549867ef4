// Package smoother wraps an incremental nonlinear smoother over Pose and
// OrientedPlane variables: pose priors, a direction prior on the first
// landmark, between-pose odometry factors, and plane observation
// factors. gtsam's ISAM2 is the library a full factor-graph SLAM backend
// would normally run on; there is no equivalent incremental factor-graph
// package available here, so this package re-derives the solve with
// gonum linear algebra (gonum.org/v1/gonum/mat), in the same gonum-SVD
// rigid-alignment style used for pose renormalization in
// internal/geometry. See DESIGN.md for the precise scope of that
// substitution.
package smoother

import (
	"fmt"

	"github.com/sg47/plane-slam/internal/geometry"
)

// PoseKey and PlaneKey format the variable symbols x_k / l_j: pose
// variables indexed x0..x_{P-1}, landmark variables l0..l_{L-1},
// following gtsam's Symbol('x', k) / Symbol('l', j) naming.
func PoseKey(k int) string  { return fmt.Sprintf("x%d", k) }
func PlaneKey(j int) string { return fmt.Sprintf("l%d", j) }

// FactorKind distinguishes the four factor shapes the engine adds.
type FactorKind int

const (
	// FactorPosePrior anchors x0.
	FactorPosePrior FactorKind = iota
	// FactorDirectionPrior anchors l0's normal direction only.
	FactorDirectionPrior
	// FactorBetweenPose is an odometry factor x_{k-1} -> x_k.
	FactorBetweenPose
	// FactorPlaneObservation links a pose variable to a plane variable.
	FactorPlaneObservation
)

// Factor is a single graph factor. Only the fields relevant to Kind are
// populated; see the New* constructors.
type Factor struct {
	Kind FactorKind

	// PosePrior
	PoseKey   string
	PoseMean  geometry.Pose
	PoseSigma [6]float64

	// DirectionPrior
	PlaneKey    string
	DirMean     [2]float64
	DirSigma    [2]float64

	// BetweenPose
	FromKey, ToKey string
	Relative       geometry.Pose
	BetweenSigma   [6]float64

	// PlaneObservation
	ObsPoseKey  string
	ObsPlaneKey string
	Measurement [4]float64
	ObsSigma    [3]float64
}

// NewPosePrior builds the x0 prior factor. Default sigmas are
// (0.001,0.001,0.001,0.0001,0.001,0.001) in (tx,ty,tz,rx,ry,rz).
func NewPosePrior(key string, mean geometry.Pose, sigmas [6]float64) Factor {
	return Factor{Kind: FactorPosePrior, PoseKey: key, PoseMean: mean, PoseSigma: sigmas}
}

// NewDirectionPrior builds the l0 direction prior from the first plane's
// first two observation sigmas.
func NewDirectionPrior(key string, dir [2]float64, sigmas [2]float64) Factor {
	return Factor{Kind: FactorDirectionPrior, PlaneKey: key, DirMean: dir, DirSigma: sigmas}
}

// NewBetweenPose builds the x_{k-1} -> x_k odometry factor. Default
// sigmas are all 0.05, held constant rather than scaled by the
// relative-pose magnitude (a commented-out scaled-noise alternative
// was never activated; see DESIGN.md open question).
func NewBetweenPose(fromKey, toKey string, relative geometry.Pose, sigmas [6]float64) Factor {
	return Factor{Kind: FactorBetweenPose, FromKey: fromKey, ToKey: toKey, Relative: relative, BetweenSigma: sigmas}
}

// NewPlaneObservation builds an observation factor between a pose and a
// plane variable.
func NewPlaneObservation(poseKey, planeKey string, measurement [4]float64, sigmas [3]float64) Factor {
	return Factor{Kind: FactorPlaneObservation, ObsPoseKey: poseKey, ObsPlaneKey: planeKey, Measurement: measurement, ObsSigma: sigmas}
}
