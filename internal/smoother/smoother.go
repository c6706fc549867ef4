package smoother

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/sg47/plane-slam/internal/geometry"
)

// ErrDiverged is returned by Relinearize when the weighted combination
// behind a variable's new estimate collapses (zero total information),
// the Go equivalent of ISAM2 signalling an optimizer failure.
var ErrDiverged = errors.New("smoother: optimizer diverged")

// Values is a snapshot of the smoother's best estimate.
type Values struct {
	Poses  map[string]geometry.Pose
	Planes map[string]geometry.OrientedPlane
}

// Params configures the incremental solve.
type Params struct {
	// RelinearizeThreshold: a Relinearize() call that would move every
	// plane and pose estimate by less than this (max over all planes of
	// angle in radians plus distance in meters, and over all poses of
	// translation plus rotation angle) is treated as converged and
	// skipped — mirroring ISAM2Params.relinearizeThreshold gating how
	// eagerly the smoother redoes work.
	RelinearizeThreshold float64
	// RelinearizeSkip: only every RelinearizeSkip'th Relinearize() call
	// actually recomputes the plane and pose estimates; the rest are no-ops. This
	// is the Go stand-in for ISAM2Params.relinearizeSkip.
	RelinearizeSkip int
}

// DefaultParams returns the standard relinearization defaults.
func DefaultParams() Params {
	return Params{RelinearizeThreshold: 0.05, RelinearizeSkip: 1}
}

// Smoother owns the growing factor graph and the current best estimate of
// every variable. It is an owned field of the mapping engine, not a
// process-wide singleton.
//
// Full ISAM2-equivalent incremental nonlinear optimization over an SE(3) x
// OrientedPlane3 manifold needs a real factor-graph/Bayes-tree library,
// which isn't available here. Relinearize instead recomputes every pose
// and plane estimate as the inverse-variance-weighted combination of
// every prior/observation/odometry factor that currently references it
// (poses via a weighted rotation-matrix average renormalized back onto
// SO(3), planes via a weighted normal/distance average), each then
// locally polished by a small gonum optimize.NelderMead pass over its
// tangent space. See DESIGN.md.
type Smoother struct {
	params Params

	factors  []Factor
	poseVal  map[string]geometry.Pose
	planeEst map[string]geometry.OrientedPlane

	relinCounter int
}

// New creates an empty smoother.
func New(params Params) *Smoother {
	return &Smoother{
		params:   params,
		poseVal:  make(map[string]geometry.Pose),
		planeEst: make(map[string]geometry.OrientedPlane),
	}
}

// SetParams atomically replaces the relinearization parameters (wired
// from Engine.ApplyConfig).
func (s *Smoother) SetParams(p Params) { s.params = p }

// AddFactors appends factors to the graph without touching values.
// Used by the first frame, which seeds the graph and initial guesses but
// never calls Update.
func (s *Smoother) AddFactors(factors ...Factor) {
	s.factors = append(s.factors, factors...)
}

// SetPoseGuess inserts (or overwrites) the initial/estimated value of a
// pose variable.
func (s *Smoother) SetPoseGuess(key string, pose geometry.Pose) {
	s.poseVal[key] = pose
}

// SetPlaneGuess inserts (or overwrites) the initial/estimated value of a
// plane variable.
func (s *Smoother) SetPlaneGuess(key string, plane geometry.OrientedPlane) {
	s.planeEst[key] = plane
}

// Update ingests newFactors and newValues (poses/planes that don't exist
// yet get inserted as their initial guess) and runs one relinearization
// pass, exactly as isam2_->update(factor_graph_, initial_estimate_) does
// in gtsam_mapping.cpp.
func (s *Smoother) Update(newFactors []Factor, newPoses map[string]geometry.Pose, newPlanes map[string]geometry.OrientedPlane) error {
	s.factors = append(s.factors, newFactors...)
	for k, v := range newPoses {
		if _, ok := s.poseVal[k]; !ok {
			s.poseVal[k] = v
		}
	}
	for k, v := range newPlanes {
		if _, ok := s.planeEst[k]; !ok {
			s.planeEst[k] = v
		}
	}
	return s.Relinearize()
}

// normalContrib and distContrib are the raw per-factor contributions
// behind a plane's closed-form weighted average, kept so polishPlane can
// run a local nonlinear refinement over them.
type normalContrib struct {
	normal r3.Vector
	weight float64
}
type distContrib struct {
	dist   float64
	weight float64
}

// poseContrib is the raw per-factor contribution behind a pose's
// closed-form weighted average, kept so polishPose can run a local
// nonlinear refinement over them.
type poseContrib struct {
	pose   geometry.Pose
	weight float64
}

// Relinearize re-runs the solve over all currently buffered data — the
// Go equivalent of isam2_->update() called with no new factors, used by
// the mapping loop's second update() call and by OptimizeGraph.
func (s *Smoother) Relinearize() error {
	s.relinCounter++
	if s.params.RelinearizeSkip > 0 && s.relinCounter%s.params.RelinearizeSkip != 0 {
		return nil
	}

	type accum struct {
		normalSum r3.Vector
		distSum   float64
		weight    float64
		normals   []normalContrib
		dists     []distContrib
	}
	acc := make(map[string]*accum)
	for key, plane := range s.planeEst {
		// Seed with the current estimate at low weight so a landmark with
		// no factors referencing it this round keeps its last value
		// instead of collapsing to zero.
		acc[key] = &accum{
			normalSum: plane.Normal.Mul(1e-6),
			distSum:   plane.Distance * 1e-6,
			weight:    1e-6,
			normals:   []normalContrib{{normal: plane.Normal, weight: 1e-6}},
			dists:     []distContrib{{dist: plane.Distance, weight: 1e-6}},
		}
	}

	type poseAccum struct {
		transSum r3.Vector
		rotSum   *mat.Dense
		weight   float64
		contribs []poseContrib
	}
	accP := make(map[string]*poseAccum)
	for key, pose := range s.poseVal {
		// Same low-weight seeding as planes: a pose with no factors
		// referencing it this round keeps its last value.
		accP[key] = &poseAccum{
			transSum: pose.Translation.Mul(1e-6),
			rotSum:   scaleDense(pose.Rotation, 1e-6),
			weight:   1e-6,
			contribs: []poseContrib{{pose: pose, weight: 1e-6}},
		}
	}

	for _, f := range s.factors {
		switch f.Kind {
		case FactorDirectionPrior:
			w := sigmaWeight(f.DirSigma[0], f.DirSigma[1])
			a := acc[f.PlaneKey]
			if a == nil {
				a = &accum{}
				acc[f.PlaneKey] = a
			}
			dirNormal := r3.Vector{X: f.DirMean[0], Y: f.DirMean[1], Z: math.Sqrt(math.Max(0, 1-f.DirMean[0]*f.DirMean[0]-f.DirMean[1]*f.DirMean[1]))}
			a.normalSum = a.normalSum.Add(dirNormal.Mul(w))
			a.weight += w
			a.normals = append(a.normals, normalContrib{normal: dirNormal, weight: w})
		case FactorPlaneObservation:
			pose, ok := s.poseVal[f.ObsPoseKey]
			if !ok {
				continue
			}
			w := sigmaWeight(f.ObsSigma[0], f.ObsSigma[1], f.ObsSigma[2])
			obs := geometry.FromCoefficients(f.Measurement[0], f.Measurement[1], f.Measurement[2], f.Measurement[3])
			// Bring the sensor-frame measurement into the map frame: the
			// observation is expressed in pose's "from" (sensor) frame,
			// which is the "to" frame of pose.Inverse(), so
			// transform(pose.Inverse()) yields it in the map frame — see
			// geometry.OrientedPlane.Transform and
			// gtsam_mapping.cpp's `lmn.transform(init_pose.inverse())`.
			mapPlane := obs.Transform(pose.Inverse())
			a := acc[f.ObsPlaneKey]
			if a == nil {
				a = &accum{}
				acc[f.ObsPlaneKey] = a
			}
			a.normalSum = a.normalSum.Add(mapPlane.Normal.Mul(w))
			a.distSum += mapPlane.Distance * w
			a.weight += w
			a.normals = append(a.normals, normalContrib{normal: mapPlane.Normal, weight: w})
			a.dists = append(a.dists, distContrib{dist: mapPlane.Distance, weight: w})
		case FactorPosePrior:
			w := sigmaWeight(f.PoseSigma[0], f.PoseSigma[1], f.PoseSigma[2], f.PoseSigma[3], f.PoseSigma[4], f.PoseSigma[5])
			a := accP[f.PoseKey]
			if a == nil {
				a = &poseAccum{rotSum: zeroDense3()}
				accP[f.PoseKey] = a
			}
			a.transSum = a.transSum.Add(f.PoseMean.Translation.Mul(w))
			addScaledRotation(a.rotSum, f.PoseMean.Rotation, w)
			a.weight += w
			a.contribs = append(a.contribs, poseContrib{pose: f.PoseMean, weight: w})
		case FactorBetweenPose:
			anchor, ok := s.poseVal[f.FromKey]
			if !ok {
				continue
			}
			w := sigmaWeight(f.BetweenSigma[0], f.BetweenSigma[1], f.BetweenSigma[2], f.BetweenSigma[3], f.BetweenSigma[4], f.BetweenSigma[5])
			// relPose = Between(from, to) = from^-1 then to, so the value
			// odometry predicts for "to" given the current "from" estimate
			// is from.Compose(relPose) — the inverse of how the factor's
			// measurement was built in Engine.doMapping.
			predicted := anchor.Compose(f.Relative)
			a := accP[f.ToKey]
			if a == nil {
				a = &poseAccum{rotSum: zeroDense3()}
				accP[f.ToKey] = a
			}
			a.transSum = a.transSum.Add(predicted.Translation.Mul(w))
			addScaledRotation(a.rotSum, predicted.Rotation, w)
			a.weight += w
			a.contribs = append(a.contribs, poseContrib{pose: predicted, weight: w})
		}
	}

	maxDelta := 0.0
	next := make(map[string]geometry.OrientedPlane, len(acc))
	for key, a := range acc {
		if a.weight <= 0 || a.normalSum.Norm() == 0 {
			return errors.Wrapf(ErrDiverged, "plane %s has no information", key)
		}
		closedForm := geometry.NewOrientedPlane(a.normalSum, a.distSum/a.weight)
		newPlane := polishPlane(closedForm, a.normals, a.dists)
		if old, ok := s.planeEst[key]; ok {
			angle, dist := geometry.Compare(old, newPlane)
			if angle+dist > maxDelta {
				maxDelta = angle + dist
			}
		} else {
			maxDelta = math.Inf(1)
		}
		next[key] = newPlane
	}

	nextPoses := make(map[string]geometry.Pose, len(accP))
	for key, a := range accP {
		if a.weight <= 0 {
			return errors.Wrapf(ErrDiverged, "pose %s has no information", key)
		}
		closedForm := geometry.NewPose(a.transSum.Mul(1/a.weight), scaleDense(a.rotSum, 1/a.weight))
		newPose := polishPose(closedForm, a.contribs)
		if old, ok := s.poseVal[key]; ok {
			delta := geometry.Between(old, newPose)
			d := delta.TranslationMagnitude() + delta.RotationAngle()
			if d > maxDelta {
				maxDelta = d
			}
		} else {
			maxDelta = math.Inf(1)
		}
		nextPoses[key] = newPose
	}

	if maxDelta < s.params.RelinearizeThreshold && maxDelta != math.Inf(1) {
		return nil
	}
	for key, p := range next {
		s.planeEst[key] = p
	}
	for key, p := range nextPoses {
		s.poseVal[key] = p
	}
	return nil
}

// polishPlane runs a local nonlinear least-squares pass over a plane's
// raw per-factor contributions, seeded at the closed-form weighted
// average. This is the Go stand-in for the one or two Gauss-Newton
// iterations ISAM2 would run while relinearizing a plane variable: the
// closed form is already close to optimal for the linearized problem,
// so optimize.NelderMead typically needs only a handful of evaluations
// to settle.
func polishPlane(initial geometry.OrientedPlane, normals []normalContrib, dists []distContrib) geometry.OrientedPlane {
	theta0, phi0 := toSpherical(initial.Normal)
	x0 := []float64{theta0, phi0, initial.Distance}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			n := fromSpherical(x[0], x[1])
			sum := 0.0
			for _, c := range normals {
				diff := 1 - n.Dot(c.normal)
				sum += c.weight * diff * diff
			}
			for _, c := range dists {
				d := x[2] - c.dist
				sum += c.weight * d * d
			}
			return sum
		},
	}

	result, err := optimize.Minimize(problem, x0, &optimize.Settings{MajorIterations: 50}, &optimize.NelderMead{})
	if err != nil || result == nil {
		return initial
	}
	return geometry.NewOrientedPlane(fromSpherical(result.X[0], result.X[1]), result.X[2])
}

func toSpherical(n r3.Vector) (theta, phi float64) {
	theta = math.Acos(math.Max(-1, math.Min(1, n.Z)))
	phi = math.Atan2(n.Y, n.X)
	return theta, phi
}

func fromSpherical(theta, phi float64) r3.Vector {
	return r3.Vector{
		X: math.Sin(theta) * math.Cos(phi),
		Y: math.Sin(theta) * math.Sin(phi),
		Z: math.Cos(theta),
	}
}

// polishPose runs a local nonlinear least-squares pass over a pose's raw
// per-factor contributions, seeded at the closed-form weighted average.
// The search variable is a 6-vector SE(3) tangent perturbation (x,y,z
// translation plus an axis-angle rotation) applied to initial via
// Compose/poseExpMap — the same retraction-in-the-tangent-space move
// gtsam's optimizer performs at each Pose3 linearization point.
func polishPose(initial geometry.Pose, contribs []poseContrib) geometry.Pose {
	if len(contribs) == 0 {
		return initial
	}
	x0 := make([]float64, 6)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			candidate := initial.Compose(poseExpMap(x))
			sum := 0.0
			for _, c := range contribs {
				delta := geometry.Between(candidate, c.pose)
				t := delta.TranslationMagnitude()
				r := delta.RotationAngle()
				sum += c.weight * (t*t + r*r)
			}
			return sum
		},
	}

	result, err := optimize.Minimize(problem, x0, &optimize.Settings{MajorIterations: 50}, &optimize.NelderMead{})
	if err != nil || result == nil {
		return initial
	}
	return initial.Compose(poseExpMap(result.X))
}

// poseExpMap maps a 6-vector tangent perturbation (translation x,y,z,
// then an axis-angle rotation) onto a Pose via the Rodrigues rotation
// formula.
func poseExpMap(x []float64) geometry.Pose {
	translation := r3.Vector{X: x[0], Y: x[1], Z: x[2]}
	axis := r3.Vector{X: x[3], Y: x[4], Z: x[5]}
	return geometry.NewPose(translation, rodrigues(axis))
}

// rodrigues builds the rotation matrix for an axis-angle vector whose
// direction is the rotation axis and whose magnitude is the angle, in
// radians.
func rodrigues(axisAngle r3.Vector) *mat.Dense {
	theta := axisAngle.Norm()
	if theta < 1e-12 {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}
	k := axisAngle.Mul(1 / theta)
	c, s, t := math.Cos(theta), math.Sin(theta), 1-math.Cos(theta)
	return mat.NewDense(3, 3, []float64{
		c + k.X*k.X*t, k.X*k.Y*t - k.Z*s, k.X*k.Z*t + k.Y*s,
		k.Y*k.X*t + k.Z*s, c + k.Y*k.Y*t, k.Y*k.Z*t - k.X*s,
		k.Z*k.X*t - k.Y*s, k.Z*k.Y*t + k.X*s, c + k.Z*k.Z*t,
	})
}

// zeroDense3 returns a fresh 3x3 zero matrix, the additive identity used
// to accumulate a weighted sum of rotation matrices.
func zeroDense3() *mat.Dense {
	return mat.NewDense(3, 3, nil)
}

// scaleDense returns a new matrix equal to m scaled by factor.
func scaleDense(m *mat.Dense, factor float64) *mat.Dense {
	var out mat.Dense
	out.Scale(factor, m)
	return &out
}

// addScaledRotation adds w*rot into dst in place.
func addScaledRotation(dst *mat.Dense, rot *mat.Dense, w float64) {
	dst.Add(dst, scaleDense(rot, w))
}

func sigmaWeight(sigmas ...float64) float64 {
	sumSq := 0.0
	for _, s := range sigmas {
		sumSq += s * s
	}
	if sumSq <= 0 {
		return 0
	}
	return 1.0 / sumSq
}

// BestEstimate returns a snapshot of every current pose and plane value.
func (s *Smoother) BestEstimate() Values {
	poses := make(map[string]geometry.Pose, len(s.poseVal))
	for k, v := range s.poseVal {
		poses[k] = v
	}
	planes := make(map[string]geometry.OrientedPlane, len(s.planeEst))
	for k, v := range s.planeEst {
		planes[k] = v
	}
	return Values{Poses: poses, Planes: planes}
}

// Empty reports whether the graph has no factors, used by the control
// surface to fail optimize/save commands on an empty map.
func (s *Smoother) Empty() bool { return len(s.factors) == 0 }

// Factors returns the current factor list, used by the DOT graph writer.
func (s *Smoother) Factors() []Factor {
	out := make([]Factor, len(s.factors))
	copy(out, s.factors)
	return out
}
