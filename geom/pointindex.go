package geom

import (
	"github.com/tidwall/geoindex"
	"github.com/tidwall/geoindex/algo"
	"github.com/tidwall/rtree"
)

// PointIndex is a k-nearest-neighbour index over point ids
type PointIndex struct {
	index *geoindex.Index
	size  int
}

func NewPointIndex() *PointIndex {
	return &PointIndex{index: geoindex.Wrap(&rtree.RTree{})}
}

func (p *PointIndex) Insert(id int64, lon, lat float64) {
	pt := [2]float64{lon, lat}
	p.index.Insert(pt, pt, id)
	p.size++
}

// Nearest returns up to k ids ordered by planar degree distance from (lon, lat).
// Callers that need metric ordering should re-rank the result.
func (p *PointIndex) Nearest(lon, lat float64, k int) []int64 {
	if k <= 0 {
		return nil
	}
	target := [2]float64{lon, lat}
	result := make([]int64, 0, k)
	p.index.Nearby(
		algo.Box(target, target, false, nil),
		func(min, max [2]float64, data interface{}, dist float64) bool {
			result = append(result, data.(int64))
			return len(result) < k
		},
	)
	return result
}

func (p *PointIndex) Size() int {
	return p.size
}
