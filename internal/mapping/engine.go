// Package mapping implements the mapping loop: the keyframe gate,
// first-frame initialization, per-frame data association and
// factor-graph update, landmark cloud maintenance, refinement
// triggering, and observer notification. Engine is the orchestration
// loop a sensor-fusion pipeline plays for its stages, generalized here
// to plane-SLAM frames.
package mapping

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sg47/plane-slam/internal/association"
	"github.com/sg47/plane-slam/internal/cloud"
	"github.com/sg47/plane-slam/internal/control"
	"github.com/sg47/plane-slam/internal/geometry"
	"github.com/sg47/plane-slam/internal/landmark"
	"github.com/sg47/plane-slam/internal/refine"
	"github.com/sg47/plane-slam/internal/smoother"
	"github.com/sg47/plane-slam/internal/types"
)

// posePriorSigmas and betweenSigmas are hard-coded defaults, kept as
// package constants rather than Config fields so they stay fixed for
// reproducibility.
var (
	posePriorSigmas = [6]float64{1e-3, 1e-3, 1e-3, 1e-4, 1e-3, 1e-3}
	betweenSigmas   = [6]float64{0.05, 0.05, 0.05, 0.05, 0.05, 0.05}
)

// Engine is the mapping engine: the single mutator of graph state,
// landmark store, and estimate vectors. Callers must serialize calls to
// Mapping and the command methods; Engine does no internal locking
// (ApplyConfig is a plain field assignment), leaving scheduling to the
// caller.
type Engine struct {
	cfg control.Config
	log *zap.SugaredLogger

	store *landmark.Store
	sm    *smoother.Smoother

	poseCount        int
	landmarkMaxCount int
	estimatedPoses   []geometry.Pose
	estimatedPlanes  map[int]geometry.OrientedPlane
	lastEstimated    geometry.Pose

	observers []control.Observer
}

// NewEngine constructs an Engine with cfg and an optional logger (pass
// zap.NewNop().Sugar() for silence).
func NewEngine(cfg control.Config, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	e := &Engine{cfg: cfg, log: log}
	e.reset()
	return e
}

func (e *Engine) reset() {
	e.store = landmark.NewStore()
	e.sm = smoother.New(smoother.Params{
		RelinearizeThreshold: e.cfg.RelinearizeThreshold,
		RelinearizeSkip:      e.cfg.RelinearizeSkip,
	})
	e.poseCount = 0
	e.landmarkMaxCount = 0
	e.estimatedPoses = nil
	e.estimatedPlanes = make(map[int]geometry.OrientedPlane)
	e.lastEstimated = geometry.Identity()
}

// Subscribe registers an observer. Engines support exactly one observer
// at a time; a later call replaces the earlier one.
func (e *Engine) Subscribe(o control.Observer) {
	e.observers = []control.Observer{o}
}

func (e *Engine) notify() {
	if !e.cfg.PublishOptimizedPath || len(e.observers) == 0 {
		return
	}
	poses := e.OptimizedPath()
	landmarks := e.store.All()
	for _, o := range e.observers {
		o.OnMapUpdated(poses, landmarks)
	}
}

// ApplyConfig atomically overwrites thresholds. Callers must not call
// this concurrently with Mapping.
func (e *Engine) ApplyConfig(cfg control.Config) {
	e.cfg = cfg
	e.sm.SetParams(smoother.Params{
		RelinearizeThreshold: cfg.RelinearizeThreshold,
		RelinearizeSkip:      cfg.RelinearizeSkip,
	})
}

// Mapping feeds one frame into the engine. The returned bool is the
// success flag: false means the frame was ignored (not a keyframe, or
// first-frame init found no planes) without advancing any state; an
// error indicates a genuine failure (optimizer divergence) as opposed
// to an ordinary ignore.
func (e *Engine) Mapping(frame types.Frame) (bool, error) {
	if e.store.Len() == 0 {
		return e.addFirstFrame(frame)
	}
	if e.cfg.UseKeyframe && !e.isKeyframe(frame.Pose) {
		e.log.Debugw("frame rejected: not a keyframe", "pose_count", e.poseCount)
		return false, nil
	}
	return e.doMapping(frame)
}

func (e *Engine) isKeyframe(pose geometry.Pose) bool {
	delta := geometry.Between(e.lastEstimated, pose)
	return delta.TranslationMagnitude() > e.cfg.KeyframeLinearThreshold ||
		delta.RotationAngle() > e.cfg.KeyframeAngularThreshold()
}

func (e *Engine) addFirstFrame(frame types.Frame) (bool, error) {
	if len(frame.Planes) == 0 {
		e.log.Warnw("first frame has no planes, ignored")
		return false, nil
	}
	e.reset()

	x0 := smoother.PoseKey(0)
	e.sm.AddFactors(smoother.NewPosePrior(x0, frame.Pose, posePriorSigmas))
	e.sm.SetPoseGuess(x0, frame.Pose)

	leaf := e.cfg.PlaneInlierLeafSize
	invX0 := frame.Pose.Inverse()

	// The direction prior on l0 is expressed in the map frame, matching
	// glm0 = lm0.transform(init_pose.inverse()) in
	// GTMapping::addFirstFrame — not the raw sensor-frame plane.
	firstMapPlane := frame.Planes[0].Plane().Transform(invX0)
	l0 := smoother.PlaneKey(0)
	dirSigma := [2]float64{frame.Planes[0].Sigmas[0], frame.Planes[0].Sigmas[1]}
	e.sm.AddFactors(smoother.NewDirectionPrior(l0, [2]float64{firstMapPlane.Normal.X, firstMapPlane.Normal.Y}, dirSigma))
	for i, obs := range frame.Planes {
		planeKey := smoother.PlaneKey(i)
		e.sm.AddFactors(smoother.NewPlaneObservation(x0, planeKey, obs.Coefficients, obs.Sigmas))

		mapPlane := obs.Plane().Transform(invX0)
		e.sm.SetPlaneGuess(planeKey, mapPlane)
		e.estimatedPlanes[i] = mapPlane

		color := landmark.RandomColor()
		transformed := cloud.Transform(obs.Cloud, frame.Pose, color)
		downsampled := cloud.VoxelDownsample(transformed, leaf)
		e.store.Append(landmark.Landmark{
			Coefficients: mapPlane.Coefficients(),
			Cloud:        downsampled,
			Centroid:     cloud.Centroid3(downsampled),
			Color:        color,
			Valid:        true,
		})
	}

	e.poseCount = 1
	e.landmarkMaxCount = len(frame.Planes)
	e.estimatedPoses = []geometry.Pose{frame.Pose}
	e.lastEstimated = frame.Pose

	e.log.Infow("first frame initialized", "landmarks", e.landmarkMaxCount)
	e.notify()
	return true, nil
}

func (e *Engine) doMapping(frame types.Frame) (bool, error) {
	newIdx := e.poseCount
	prevKey := smoother.PoseKey(newIdx - 1)
	newKey := smoother.PoseKey(newIdx)
	relPose := geometry.Between(e.lastEstimated, frame.Pose)

	assocCfg := association.Config{
		DirectionThreshold: e.cfg.PlaneMatchDirectionThreshold(),
		DistanceThreshold:  e.cfg.PlaneMatchDistanceThreshold,
		CheckOverlap:       e.cfg.PlaneMatchCheckOverlap,
		OverlapAlpha:       e.cfg.PlaneMatchOverlapAlpha,
		OverlapResolution:  e.cfg.PlaneInlierLeafSize,
	}
	pairs := association.Match(frame.Pose, frame.Planes, e.store, e.estimatedPlanes, assocCfg)

	matched := make(map[int]int, len(pairs))
	for _, p := range pairs {
		matched[p.Obs] = p.Lm
	}

	newFactors := []smoother.Factor{smoother.NewBetweenPose(prevKey, newKey, relPose, betweenSigmas)}
	newPoses := map[string]geometry.Pose{newKey: frame.Pose}
	newPlanes := map[string]geometry.OrientedPlane{}

	type newLandmark struct {
		obsIdx   int
		planeIdx int
	}
	var created []newLandmark

	invNew := frame.Pose.Inverse()
	oldLandmarkCount := e.landmarkMaxCount
	nextLandmarkCount := oldLandmarkCount
	for i, obs := range frame.Planes {
		if j, ok := matched[i]; ok {
			planeKey := smoother.PlaneKey(j)
			newFactors = append(newFactors, smoother.NewPlaneObservation(newKey, planeKey, obs.Coefficients, obs.Sigmas))
			continue
		}
		j := nextLandmarkCount
		nextLandmarkCount++
		planeKey := smoother.PlaneKey(j)
		newFactors = append(newFactors, smoother.NewPlaneObservation(newKey, planeKey, obs.Coefficients, obs.Sigmas))
		mapPlane := obs.Plane().Transform(invNew)
		newPlanes[planeKey] = mapPlane
		created = append(created, newLandmark{obsIdx: i, planeIdx: j})
	}

	// Neither poseCount nor landmarkMaxCount advance until the smoother
	// has actually accepted this frame's factors. On a divergence the
	// smoother keeps the factors and initial guesses it was handed, but
	// the counts, the landmark store and the keyframe reference pose stay
	// as they were before Mapping was called.
	if err := e.sm.Update(newFactors, newPoses, newPlanes); err != nil {
		e.log.Warnw("optimizer diverged on update", "error", err.Error())
		return false, errors.Wrap(ErrOptimizerDiverged, err.Error())
	}
	if err := e.sm.Relinearize(); err != nil {
		e.log.Warnw("optimizer diverged on relinearize", "error", err.Error())
		return false, errors.Wrap(ErrOptimizerDiverged, err.Error())
	}

	e.poseCount = newIdx + 1
	e.landmarkMaxCount = nextLandmarkCount
	e.refreshEstimates()

	leaf := e.cfg.PlaneInlierLeafSize
	newestPose := e.estimatedPoses[newIdx]

	for j := 0; j < oldLandmarkCount; j++ {
		if p, ok := e.estimatedPlanes[j]; ok {
			e.store.SetCoefficients(j, p.Coefficients())
		}
	}

	for i, j := range matched {
		obs := frame.Planes[i]
		lm, _ := e.store.Get(j)
		downsampled := cloud.VoxelDownsample(obs.Cloud, leaf)
		transformed := cloud.Transform(downsampled, newestPose, lm.Color)
		combined := cloud.Concat(lm.Cloud, transformed)
		projected := cloud.ProjectToPlane(combined, lm.Coefficients)
		e.store.SetCloud(j, cloud.VoxelDownsample(projected, leaf))
	}

	for _, nl := range created {
		obs := frame.Planes[nl.obsIdx]
		color := landmark.RandomColor()
		downsampled := cloud.VoxelDownsample(obs.Cloud, leaf)
		transformed := cloud.Transform(downsampled, newestPose, color)
		plane := e.estimatedPlanes[nl.planeIdx]
		e.store.Append(landmark.Landmark{
			Coefficients: plane.Coefficients(),
			Cloud:        transformed,
			Centroid:     cloud.Centroid3(transformed),
			Color:        color,
			Valid:        true,
		})
	}

	if e.cfg.RefinePlanarMap {
		refineCfg := refine.Config{
			MergeDirectionThreshold: e.cfg.PlanarMergeDirectionThreshold(),
			MergeDistanceThreshold:  e.cfg.PlanarMergeDistanceThreshold,
			OverlapResolution:       leaf,
			BadInlierRadius:         0.1,
			BadInlierAlpha:          e.cfg.PlanarBadInlierAlpha,
		}
		if refine.MergeCoplanar(e.store, refineCfg) {
			if err := e.sm.Relinearize(); err != nil {
				e.log.Warnw("optimizer diverged after merge", "error", err.Error())
				return false, errors.Wrap(ErrOptimizerDiverged, err.Error())
			}
			e.refreshEstimates()
		}
	}

	e.lastEstimated = e.estimatedPoses[newIdx]
	e.log.Infow("frame mapped", "pose_count", e.poseCount, "landmarks", e.landmarkMaxCount, "matched", len(pairs), "new", len(created))
	e.notify()
	return true, nil
}

// refreshEstimates rebuilds estimatedPoses/estimatedPlanes from the
// smoother's best estimate, falling back to a zero-initialised
// placeholder plane for any landmark index not yet realized in the
// smoother.
func (e *Engine) refreshEstimates() {
	best := e.sm.BestEstimate()
	poses := make([]geometry.Pose, e.poseCount)
	for k := 0; k < e.poseCount; k++ {
		if p, ok := best.Poses[smoother.PoseKey(k)]; ok {
			poses[k] = p
		} else {
			poses[k] = geometry.Identity()
		}
	}
	e.estimatedPoses = poses

	planes := make(map[int]geometry.OrientedPlane, e.landmarkMaxCount)
	for j := 0; j < e.landmarkMaxCount; j++ {
		if p, ok := best.Planes[smoother.PlaneKey(j)]; ok {
			planes[j] = p
		} else {
			planes[j] = geometry.OrientedPlane{Normal: planes[j].Normal, Distance: 0}
		}
	}
	e.estimatedPlanes = planes
}

// OptimizeGraph calls the smoother's relinearization n times, failing
// if the graph is empty.
func (e *Engine) OptimizeGraph(n int) error {
	if e.sm.Empty() {
		return errors.Wrap(ErrPreconditionViolated, "optimize_graph on empty graph")
	}
	for i := 0; i < n; i++ {
		if err := e.sm.Relinearize(); err != nil {
			return errors.Wrap(ErrOptimizerDiverged, err.Error())
		}
	}
	e.refreshEstimates()
	e.notify()
	return nil
}

// SaveGraph writes a DOT snapshot of the factor graph to path.
func (e *Engine) SaveGraph(path string) error {
	if e.sm.Empty() {
		return errors.Wrap(ErrPreconditionViolated, "save_graph on empty graph")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(ErrIOFailure, err.Error())
	}
	defer f.Close()
	if err := control.WriteGraphDOT(f, e.sm.Factors()); err != nil {
		return errors.Wrap(ErrIOFailure, err.Error())
	}
	return nil
}

// SaveMap writes the concatenated colored landmark clouds to path in
// PCD-ASCII.
func (e *Engine) SaveMap(path string) error {
	if e.store.Len() == 0 {
		return errors.Wrap(ErrPreconditionViolated, "save_map on empty map")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(ErrIOFailure, err.Error())
	}
	defer f.Close()
	if err := control.WriteMapPCD(f, e.store.All()); err != nil {
		return errors.Wrap(ErrIOFailure, err.Error())
	}
	return nil
}

// RemoveBadInlier runs radius outlier pruning over every valid
// landmark's cloud.
func (e *Engine) RemoveBadInlier() error {
	if e.store.Len() == 0 {
		return errors.Wrap(ErrPreconditionViolated, "remove_bad_inlier on empty map")
	}
	refineCfg := refine.Config{BadInlierRadius: 0.1, BadInlierAlpha: e.cfg.PlanarBadInlierAlpha}
	refine.RemoveBadInlier(e.store, refineCfg, e.cfg.PlaneInlierLeafSize)
	e.notify()
	return nil
}

// OptimizedPath returns a snapshot of every current pose estimate.
func (e *Engine) OptimizedPath() []geometry.Pose {
	out := make([]geometry.Pose, len(e.estimatedPoses))
	copy(out, e.estimatedPoses)
	return out
}

// Landmarks returns a snapshot of every landmark, valid or not.
func (e *Engine) Landmarks() []landmark.Landmark {
	return e.store.All()
}
