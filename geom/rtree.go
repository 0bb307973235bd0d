package geom

import (
	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// RTree wraps tidwall/rtree for spatial indexing of edges
type RTree[T any] struct {
	tree rtree.RTreeG[T]
}

// NewRTree creates a new RTree
func NewRTree[T any]() *RTree[T] {
	return &RTree[T]{}
}

// Insert adds an item to the RTree with the given bounding box
func (r *RTree[T]) Insert(item T, b orb.Bound) {
	r.tree.Insert(
		[2]float64{b.Min[0], b.Min[1]},
		[2]float64{b.Max[0], b.Max[1]},
		item,
	)
}

// Search returns all items whose bounding boxes intersect with the query bbox
func (r *RTree[T]) Search(b orb.Bound) []T {
	result := make([]T, 0)
	r.tree.Search(
		[2]float64{b.Min[0], b.Min[1]},
		[2]float64{b.Max[0], b.Max[1]},
		func(min, max [2]float64, item T) bool {
			result = append(result, item)
			return true // continue searching
		},
	)
	return result
}

// SearchNearPoint returns all items within a distance (in meters) of a point
func (r *RTree[T]) SearchNearPoint(lon, lat, distanceMeters float64) []T {
	deltaLon, deltaLat := MetersToDegrees(lat, distanceMeters)
	return r.Search(orb.Bound{
		Min: orb.Point{lon - deltaLon, lat - deltaLat},
		Max: orb.Point{lon + deltaLon, lat + deltaLat},
	})
}

// Size returns the number of items in the RTree
func (r *RTree[T]) Size() int {
	return r.tree.Len()
}
