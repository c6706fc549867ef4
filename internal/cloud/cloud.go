// Package cloud implements the pure point-cloud operations the mapping
// engine relies on: voxel-grid downsampling, orthogonal plane
// projection, octree-style occupancy testing, rigid transform with
// color assignment, and centroid computation. None of these hold shared
// mutable state — every call takes a cloud and returns a new one.
package cloud

import (
	"github.com/golang/geo/r3"

	"github.com/sg47/plane-slam/internal/geometry"
)

// Color is a fixed per-point RGBA color, alpha always 255 for landmark
// clouds.
type Color struct {
	R, G, B, A uint8
}

// Point is a single colored 3-D point belonging to a Cloud.
type Point struct {
	Position r3.Vector
	Color    Color
}

// Cloud is an inlier point cloud. Clouds are owned by value: callers that
// want to keep a copy should clone explicitly (Clone), since downsampling,
// projection and transform all build fresh slices.
type Cloud []Point

// Clone returns an independent copy of the cloud.
func (c Cloud) Clone() Cloud {
	out := make(Cloud, len(c))
	copy(out, c)
	return out
}

// Concat returns the concatenation of a and b without mutating either.
func Concat(a, b Cloud) Cloud {
	out := make(Cloud, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// Centroid3 returns the mean position of the cloud's points (the zero
// vector for an empty cloud).
func Centroid3(c Cloud) r3.Vector {
	if len(c) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, p := range c {
		sum = sum.Add(p.Position)
	}
	return sum.Mul(1.0 / float64(len(c)))
}

// Transform applies pose (p_to = R*p_from + t) to every point and assigns
// color to all of them, matching transformPointCloud's color-stamping
// behavior in gtsam_mapping.cpp.
func Transform(c Cloud, pose geometry.Pose, color Color) Cloud {
	out := make(Cloud, len(c))
	for i, p := range c {
		out[i] = Point{Position: pose.TransformPoint(p.Position), Color: color}
	}
	return out
}

// ProjectToPlane orthogonally projects every point of c onto the plane
// a*x+b*y+c*z+d=0 given by coeffs, preserving each point's color.
func ProjectToPlane(c Cloud, coeffs [4]float64) Cloud {
	n := r3.Vector{X: coeffs[0], Y: coeffs[1], Z: coeffs[2]}
	d := coeffs[3]
	out := make(Cloud, len(c))
	for i, p := range c {
		signedDist := n.Dot(p.Position) + d
		out[i] = Point{Position: p.Position.Sub(n.Mul(signedDist)), Color: p.Color}
	}
	return out
}

// VoxelDownsample decimates c onto a uniform grid of cubic cells with edge
// leaf, replacing every occupied voxel with the centroid of the points
// that fell in it and the color of the first point seen in that voxel —
// the Go equivalent of pcl::VoxelGrid used by voxelGridFilter in
// gtsam_mapping.cpp.
func VoxelDownsample(c Cloud, leaf float64) Cloud {
	if leaf <= 0 || len(c) == 0 {
		return c.Clone()
	}
	type bucket struct {
		sum   r3.Vector
		count int
		color Color
	}
	buckets := make(map[voxelKey]*bucket)
	order := make([]voxelKey, 0)
	for _, p := range c {
		key := voxelIndex(p.Position, leaf)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{color: p.Color}
			buckets[key] = b
			order = append(order, key)
		}
		b.sum = b.sum.Add(p.Position)
		b.count++
	}
	out := make(Cloud, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		out = append(out, Point{
			Position: b.sum.Mul(1.0 / float64(b.count)),
			Color:    b.color,
		})
	}
	return out
}

type voxelKey struct{ x, y, z int64 }

func voxelIndex(p r3.Vector, leaf float64) voxelKey {
	return voxelKey{
		x: floorDiv(p.X, leaf),
		y: floorDiv(p.Y, leaf),
		z: floorDiv(p.Z, leaf),
	}
}

func floorDiv(v, leaf float64) int64 {
	q := v / leaf
	i := int64(q)
	if q < 0 && float64(i) != q {
		i--
	}
	return i
}
