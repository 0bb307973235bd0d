package roadnet

import (
	"math"
	"sort"

	"kuanb/gosm-matcher/geom"
)

// Hit is an edge found near a query point
type Hit struct {
	Edge     *Edge
	Distance float64 // meters from the point to the edge
	Offset   float64 // fraction along the edge of the closest point, 0 = From, 1 = To
}

// EdgesNear returns the edges within radius meters of (lon, lat), closest first.
// Ties are broken by ascending edge id.
func (n *Network) EdgesNear(lon, lat, radius float64) []Hit {
	ids := n.edgeIndex.SearchNearPoint(lon, lat, radius)
	hits := make([]Hit, 0, len(ids))
	for _, id := range ids {
		e := n.edges[id]
		dist, offset := n.Project(lon, lat, e)
		if dist <= radius {
			hits = append(hits, Hit{Edge: e, Distance: dist, Offset: offset})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Edge.ID.Less(hits[j].Edge.ID)
	})
	return hits
}

// Project returns the distance in meters from (lon, lat) to the edge and the fractional
// offset of the closest point along it, clamped to [0, 1].
func (n *Network) Project(lon, lat float64, e *Edge) (distance, offset float64) {
	line := e.shape
	if len(line) < 2 {
		return math.Inf(1), 0
	}

	best := math.Inf(1)
	bestAlong := 0.0
	total := 0.0
	for i := 0; i < len(line)-1; i++ {
		a, b := line[i], line[i+1]
		p := geom.ProjectOnSegment(lon, lat, a[0], a[1], b[0], b[1])
		if p.Distance < best {
			best = p.Distance
			bestAlong = total + p.T*p.Length
		}
		total += p.Length
	}

	if total > 0 {
		offset = bestAlong / total
	}
	if offset > 1 {
		offset = 1
	}
	if e.flipped {
		offset = 1 - offset
	}
	return best, offset
}

// PointAt interpolates the lon/lat at a fractional offset along the edge
func (e *Edge) PointAt(offset float64) (lon, lat float64) {
	line := e.Geometry
	if len(line) == 0 {
		return 0, 0
	}
	if offset <= 0 || len(line) == 1 {
		return line[0][0], line[0][1]
	}
	if offset >= 1 {
		last := line[len(line)-1]
		return last[0], last[1]
	}

	lengths := make([]float64, len(line)-1)
	total := 0.0
	for i := range lengths {
		lengths[i] = geom.Haversine(line[i][1], line[i][0], line[i+1][1], line[i+1][0])
		total += lengths[i]
	}
	target := offset * total
	for i, l := range lengths {
		if target <= l && l > 0 {
			t := target / l
			a, b := line[i], line[i+1]
			return a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])
		}
		target -= l
	}
	last := line[len(line)-1]
	return last[0], last[1]
}

// NearestNode returns the node closest to (lon, lat) and its distance in meters
func (n *Network) NearestNode(lon, lat float64) (*Node, float64, bool) {
	// the index orders by planar degrees, so re-rank a few by haversine
	ids := n.nodeIndex.Nearest(lon, lat, 8)
	var best *Node
	bestDist := math.Inf(1)
	for _, id := range ids {
		node := n.nodes[NodeID(id)]
		d := geom.Haversine(lat, lon, node.Lat, node.Lon)
		if d < bestDist || (d == bestDist && best != nil && node.ID < best.ID) {
			best, bestDist = node, d
		}
	}
	return best, bestDist, best != nil
}
