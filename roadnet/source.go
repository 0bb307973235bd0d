package roadnet

import (
	"context"

	"kuanb/gosm-matcher/geom"
)

// Source is the raw material a graph loader hands over, already in the local datum
type Source struct {
	Nodes []Node
	Edges []RawEdge
}

// Loader provides graph sources, e.g. from an OSM extract
type Loader interface {
	Load(ctx context.Context) (*Source, error)
}

// Load builds a Network from a Loader
func Load(ctx context.Context, l Loader) (*Network, error) {
	src, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Build(src.Nodes, src.Edges)
}

// EdgeInfo is the per-edge metadata row exported alongside matched trips
type EdgeInfo struct {
	Name      string // "from-to"
	From      NodeID
	To        NodeID
	Length    float64
	RoadClass string
	OriginLon float64
	OriginLat float64
	MidLon    float64
	MidLat    float64
}

// Info returns the metadata of a single edge
func (n *Network) Info(id EdgeID) (EdgeInfo, error) {
	e, ok := n.edges[id]
	if !ok {
		return EdgeInfo{}, ErrUnknownEdge
	}
	from := n.nodes[id.From]
	to := n.nodes[id.To]
	midLat, midLon := geom.Midpoint(from.Lat, from.Lon, to.Lat, to.Lon)
	return EdgeInfo{
		Name:      id.String(),
		From:      id.From,
		To:        id.To,
		Length:    e.Length,
		RoadClass: e.RoadClass,
		OriginLon: from.Lon,
		OriginLat: from.Lat,
		MidLon:    midLon,
		MidLat:    midLat,
	}, nil
}

// EdgeTable returns metadata for every edge ordered by id
func (n *Network) EdgeTable() []EdgeInfo {
	edges := n.Edges()
	out := make([]EdgeInfo, 0, len(edges))
	for _, e := range edges {
		info, _ := n.Info(e.ID)
		out = append(out, info)
	}
	return out
}
