package osm

import (
	"github.com/paulmach/orb"
)

type OsmWayId int64

type OsmNodeId int64

type OsmNode struct {
	ID  OsmNodeId
	Lat float64
	Lon float64
}

type OsmWay struct {
	ID      OsmWayId
	Nodes   []OsmNodeId
	Highway string
	Oneway  int // 0 both directions, 1 forward only, -1 backward only
}

// onewayFromTags interprets the OSM oneway tag
func onewayFromTags(tags map[string]string) int {
	switch tags["oneway"] {
	case "yes", "true", "1":
		return 1
	case "-1", "reverse":
		return -1
	}
	if tags["junction"] == "roundabout" {
		return 1
	}
	return 0
}

// buildLineString creates a LineString geometry from a slice of node IDs
func buildLineString(nodeIDs []OsmNodeId, nodes map[OsmNodeId]*OsmNode) orb.LineString {
	geom := make(orb.LineString, 0, len(nodeIDs))
	for _, nid := range nodeIDs {
		if node, ok := nodes[nid]; ok {
			geom = append(geom, orb.Point{node.Lon, node.Lat})
		}
	}
	return geom
}

func reverse(line orb.LineString) orb.LineString {
	out := make(orb.LineString, len(line))
	for i, p := range line {
		out[len(line)-1-i] = p
	}
	return out
}
