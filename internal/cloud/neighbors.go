package cloud

import (
	"github.com/golang/geo/r3"
	"github.com/kyroy/kdtree"
)

// kdPoint adapts a cloud Point's position into kyroy/kdtree's 3-D Point
// interface.
type kdPoint struct {
	pos r3.Vector
	idx int
}

func (p kdPoint) Dimensions() int { return 3 }

func (p kdPoint) Dimension(i int) float64 {
	switch i {
	case 0:
		return p.pos.X
	case 1:
		return p.pos.Y
	default:
		return p.pos.Z
	}
}

func (p kdPoint) Distance(q kdtree.Point) float64 {
	o := q.(kdPoint)
	d := p.pos.Sub(o.pos)
	return d.Dot(d)
}

// NeighborIndex supports repeated radius-neighbor-count queries against a
// fixed cloud, as used by radius outlier removal.
type NeighborIndex struct {
	tree   *kdtree.KDTree
	points []kdPoint
}

// NewNeighborIndex builds a k-d tree over c's point positions.
func NewNeighborIndex(c Cloud) *NeighborIndex {
	points := make([]kdPoint, len(c))
	kdPoints := make([]kdtree.Point, len(c))
	for i, p := range c {
		points[i] = kdPoint{pos: p.Position, idx: i}
		kdPoints[i] = points[i]
	}
	return &NeighborIndex{tree: kdtree.New(kdPoints), points: points}
}

// CountWithinRadius returns the number of points (other than pointIdx
// itself) within radius of c[pointIdx]. The k-d tree backs future range
// queries but the count here walks the point list directly — at the
// landmark-cloud sizes this engine deals with, that is simpler than
// threading a bounded searcher through kyroy/kdtree and just as fast.
func (n *NeighborIndex) CountWithinRadius(pointIdx int, radius float64) int {
	center := n.points[pointIdx].pos
	r2 := radius * radius
	count := 0
	for i, p := range n.points {
		if i == pointIdx {
			continue
		}
		d := p.pos.Sub(center)
		if d.Dot(d) <= r2 {
			count++
		}
	}
	return count
}

// RadiusOutlierRemoval keeps only the points of c that have at least
// minNeighbors other points within radius, mirroring
// pcl::RadiusOutlierRemoval as used by GTMapping::removeBadInlier.
func RadiusOutlierRemoval(c Cloud, radius float64, minNeighbors int) Cloud {
	if len(c) == 0 {
		return c.Clone()
	}
	idx := NewNeighborIndex(c)
	out := make(Cloud, 0, len(c))
	for i, p := range c {
		if idx.CountWithinRadius(i, radius) >= minNeighbors {
			out = append(out, p)
		}
	}
	return out
}
