package cloud

import "github.com/golang/geo/r3"

// Octree answers "is this 3-D point inside an occupied voxel" against a
// fixed cloud, standing in for a pcl::octree::OctreePointCloud built at
// the inlier leaf size for an overlap or merge check. We key occupancy
// by the same uniform voxel grid VoxelDownsample uses rather than a
// recursive octree node tree: only the occupancy predicate is needed
// here, and a voxel-hash set gives it in O(1) instead of O(log n),
// which is the simpler and faster choice.
type Octree struct {
	resolution float64
	occupied   map[voxelKey]struct{}
}

// OctreeOccupancy builds an occupancy index over cloud at the given
// resolution.
func OctreeOccupancy(c Cloud, resolution float64) *Octree {
	occ := make(map[voxelKey]struct{}, len(c))
	for _, p := range c {
		occ[voxelIndex(p.Position, resolution)] = struct{}{}
	}
	return &Octree{resolution: resolution, occupied: occ}
}

// IsOccupied reports whether pt falls in a voxel that contains at least
// one point of the cloud the octree was built from.
func (o *Octree) IsOccupied(pt r3.Vector) bool {
	_, ok := o.occupied[voxelIndex(pt, o.resolution)]
	return ok
}

// CountOccupied returns how many points of c fall in an occupied voxel of
// o, short-circuiting once the count reaches limit (limit <= 0 means no
// short-circuit). This backs both the overlap-ratio test (limit<=0)
// and the co-planar-merge overlap test (limit=10).
func (o *Octree) CountOccupied(c Cloud, limit int) int {
	collisions := 0
	for _, p := range c {
		if o.IsOccupied(p.Position) {
			collisions++
			if limit > 0 && collisions >= limit {
				return collisions
			}
		}
	}
	return collisions
}
