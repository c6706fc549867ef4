// Package refine implements on-line map refinement: co-planar landmark
// merging and radius-based bad-inlier removal.
package refine

import (
	"math"

	"github.com/sg47/plane-slam/internal/cloud"
	"github.com/sg47/plane-slam/internal/geometry"
	"github.com/sg47/plane-slam/internal/landmark"
)

// Config carries the merge/prune thresholds, independent from
// association's match thresholds.
type Config struct {
	MergeDirectionThreshold float64 // radians
	MergeDistanceThreshold  float64 // meters
	OverlapResolution       float64 // voxel leaf / octree resolution
	BadInlierRadius         float64
	BadInlierAlpha          float64
}

// overlapCollisionThreshold is the short-circuit collision count at
// which overlap is declared.
const overlapCollisionThreshold = 10

// MergeCoplanar runs a co-planar merge over every ordered pair (i,j),
// i<j, of valid landmarks in store, merging the smaller cloud into
// the larger and invalidating the smaller landmark whenever they are
// found to be the same physical plane. It returns whether any merge
// happened.
func MergeCoplanar(store *landmark.Store, cfg Config) bool {
	merged := false
	n := store.Len()
	for i := 0; i < n-1; i++ {
		p1, ok := store.Get(i)
		if !ok || !p1.Valid {
			continue
		}
		local := geometry.LocalFrame(p1.Plane().Normal, p1.Centroid)
		l1 := p1.Plane().Transform(local)

		for j := i + 1; j < n; j++ {
			p2, ok := store.Get(j)
			if !ok || !p2.Valid {
				continue
			}
			l2 := p2.Plane().Transform(local)
			angle, dist := geometry.Compare(l1, l2)
			if angle >= cfg.MergeDirectionThreshold || dist >= cfg.MergeDistanceThreshold {
				continue
			}

			// checkLandmarksOverlap(from, to) projects the smaller cloud
			// onto the larger plane and builds the occupancy index over
			// the larger cloud, mirroring checkLandmarksOverlap's
			// "indices of lm1 must bigger than that of lm2" contract in
			// gtsam_mapping.cpp (there called as (bigger, smaller)).
			var overlap bool
			if len(p1.Cloud) < len(p2.Cloud) {
				overlap = checkLandmarksOverlap(p1, p2, cfg)
			} else {
				overlap = checkLandmarksOverlap(p2, p1, cfg)
			}
			if !overlap {
				continue
			}

			if len(p1.Cloud) < len(p2.Cloud) {
				mergeInto(store, i, j, cfg)
				merged = true
				break // p1 (i) is now invalid; move to the next i
			}
			mergeInto(store, j, i, cfg)
			merged = true
			p1 = mustGet(store, i)
			local = geometry.LocalFrame(p1.Plane().Normal, p1.Centroid)
			l1 = p1.Plane().Transform(local)
		}
	}
	return merged
}

func mustGet(store *landmark.Store, i int) landmark.Landmark {
	l, _ := store.Get(i)
	return l
}

// checkLandmarksOverlap projects from's inlier cloud onto to's plane and
// counts collisions against an occupancy index over to's cloud, returning
// true as soon as the collision count reaches overlapCollisionThreshold —
// the short-circuit gtsam_mapping.cpp's checkLandmarksOverlap performs.
func checkLandmarksOverlap(from, to landmark.Landmark, cfg Config) bool {
	projected := cloud.ProjectToPlane(from.Cloud, to.Plane().Coefficients())
	octree := cloud.OctreeOccupancy(to.Cloud, cfg.OverlapResolution)
	return octree.CountOccupied(projected, overlapCollisionThreshold) >= overlapCollisionThreshold
}

// mergeInto merges landmark `from` into landmark `to`: project from's
// cloud onto to's plane, concatenate, voxel-downsample, and invalidate
// from. Mirrors mergeLandmarkInlier in gtsam_mapping.cpp.
func mergeInto(store *landmark.Store, from, to int, cfg Config) {
	fromLm, _ := store.Get(from)
	toLm, _ := store.Get(to)

	projected := cloud.ProjectToPlane(fromLm.Cloud, toLm.Plane().Coefficients())
	combined := cloud.Concat(projected, toLm.Cloud)
	store.SetCloud(to, cloud.VoxelDownsample(combined, cfg.OverlapResolution))
	store.Invalidate(from)
}

// BadInlierMinNeighbors computes the minimum-neighbor count required to
// keep a point: N = pi*r^2/leaf^2 * alpha.
func BadInlierMinNeighbors(radius, leaf, alpha float64) int {
	return int(math.Pi * radius * radius / (leaf * leaf) * alpha)
}

// RemoveBadInlier runs radius outlier removal over every valid
// landmark's cloud, replacing it in place.
func RemoveBadInlier(store *landmark.Store, cfg Config, leaf float64) {
	minNeighbors := BadInlierMinNeighbors(cfg.BadInlierRadius, leaf, cfg.BadInlierAlpha)
	store.IterValid(func(i int, l landmark.Landmark) {
		filtered := cloud.RadiusOutlierRemoval(l.Cloud, cfg.BadInlierRadius, minNeighbors)
		store.SetCloud(i, filtered)
	})
}
