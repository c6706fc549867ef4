// Package association implements data association between a frame's plane
// observations and the existing landmark map: local-frame geometric
// gating plus an optional point-cloud overlap veto.
package association

import (
	"github.com/sg47/plane-slam/internal/cloud"
	"github.com/sg47/plane-slam/internal/geometry"
	"github.com/sg47/plane-slam/internal/landmark"
	"github.com/sg47/plane-slam/internal/types"
)

// Pair is a matched (observation index, landmark index), the Go
// equivalent of gtsam_mapping.cpp's PlanePair{iobs, ilm}.
type Pair struct {
	Obs int
	Lm  int
}

// Config carries the thresholds matches are gated on.
type Config struct {
	DirectionThreshold float64 // radians
	DistanceThreshold  float64 // meters
	CheckOverlap       bool
	OverlapAlpha       float64
	OverlapResolution  float64 // voxel leaf / octree resolution
}

// Match predicts every valid landmark into the sensor frame via pose,
// then for each observation finds the best-matching valid landmark
// (largest inlier cloud among those passing gating and, if enabled,
// overlap), emitting at most one pair per observation. A landmark may
// legally appear in more than one pair.
func Match(pose geometry.Pose, observations []types.PlaneObservation, store *landmark.Store, estimatedPlanes map[int]geometry.OrientedPlane, cfg Config) []Pair {
	type candidate struct {
		idx   int
		lm    landmark.Landmark
		plane geometry.OrientedPlane
	}
	var live []candidate
	store.IterValid(func(i int, lm landmark.Landmark) {
		predicted, ok := estimatedPlanes[i]
		if !ok {
			predicted = lm.Plane()
		}
		live = append(live, candidate{idx: i, lm: lm, plane: predicted.Transform(pose)})
	})

	var pairs []Pair
	for i, obs := range observations {
		local := geometry.LocalFrame(obs.Plane().Normal, obs.Centroid)
		obsLocal := obs.Plane().Transform(local)

		bestIdx := -1
		bestSize := -1
		for _, c := range live {
			lmLocal := c.plane.Transform(local)
			angle, dist := geometry.Compare(obsLocal, lmLocal)
			if angle >= cfg.DirectionThreshold || dist >= cfg.DistanceThreshold {
				continue
			}
			size := len(c.lm.Cloud)
			if size <= bestSize {
				continue
			}
			if cfg.CheckOverlap && !CheckOverlap(c.lm.Cloud, c.lm.Plane(), obs.Cloud, pose, cfg) {
				continue
			}
			bestIdx = c.idx
			bestSize = size
		}
		if bestIdx >= 0 {
			pairs = append(pairs, Pair{Obs: i, Lm: bestIdx})
		}
	}
	return pairs
}

// CheckOverlap projects the posed, transformed observation cloud onto
// the landmark's plane, builds an occupancy index over the landmark
// cloud, and accepts iff the collision ratio meets cfg.OverlapAlpha.
func CheckOverlap(landmarkCloud cloud.Cloud, landmarkPlane geometry.OrientedPlane, obsCloud cloud.Cloud, pose geometry.Pose, cfg Config) bool {
	if len(obsCloud) == 0 {
		return false
	}
	transformed := cloud.Transform(obsCloud, pose, cloud.Color{})
	projected := cloud.ProjectToPlane(transformed, landmarkPlane.Coefficients())

	octree := cloud.OctreeOccupancy(landmarkCloud, cfg.OverlapResolution)
	collisions := octree.CountOccupied(projected, 0)
	alpha := float64(collisions) / float64(len(projected))
	return alpha >= cfg.OverlapAlpha
}
