package osm

import (
	"context"
	"testing"

	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/roadnet"
)

func testNodes() map[OsmNodeId]*OsmNode {
	nodes := make(map[OsmNodeId]*OsmNode)
	for i, lon := range []float64{104.000, 104.001, 104.002, 104.003, 104.004} {
		id := OsmNodeId(10 + i)
		nodes[id] = &OsmNode{ID: id, Lat: 30, Lon: lon}
	}
	// a side street leaving node 12 to the north
	nodes[20] = &OsmNode{ID: 20, Lat: 30.001, Lon: 104.002}
	return nodes
}

func TestBuildSourceSplitsAtIntersections(t *testing.T) {
	ways := map[OsmWayId]*OsmWay{
		1: {ID: 1, Nodes: []OsmNodeId{10, 11, 12, 13, 14}, Highway: "residential"},
		2: {ID: 2, Nodes: []OsmNodeId{12, 20}, Highway: "service", Oneway: 1},
		3: {ID: 3, Nodes: []OsmNodeId{10, 20}, Highway: "footway"},
		4: {ID: 4, Nodes: []OsmNodeId{14, 99}, Highway: "residential"},
	}

	src := BuildSource(testNodes(), ways, DefaultRoadClasses, geom.Identity{})

	// way 1 splits at node 12, way 2 stays whole, the footway is dropped and
	// way 4 loses its missing node and with it every edge
	if len(src.Edges) != 3 {
		t.Fatalf("got %d edges: %+v", len(src.Edges), src.Edges)
	}
	first := src.Edges[0]
	if first.From != 10 || first.To != 12 || len(first.Geometry) != 3 || first.Oneway {
		t.Fatalf("first edge = %+v", first)
	}
	if first.Length < 190 || first.Length > 195 {
		t.Fatalf("first edge length = %f", first.Length)
	}
	side := src.Edges[2]
	if side.From != 12 || side.To != 20 || !side.Oneway || side.RoadClass != "service" {
		t.Fatalf("side edge = %+v", side)
	}

	degree := make(map[roadnet.NodeID]int)
	for _, n := range src.Nodes {
		degree[n.ID] = n.StreetCount
	}
	want := map[roadnet.NodeID]int{10: 1, 12: 3, 14: 1, 20: 1}
	if len(degree) != len(want) {
		t.Fatalf("nodes = %v, want %v", degree, want)
	}
	for id, d := range want {
		if degree[id] != d {
			t.Fatalf("node %d street count = %d, want %d", id, degree[id], d)
		}
	}

	net, err := roadnet.Build(src.Nodes, src.Edges)
	if err != nil {
		t.Fatal(err)
	}
	if net.NumEdges() != 5 {
		t.Fatalf("NumEdges = %d, want 5", net.NumEdges())
	}
	if _, ok := net.Edge(roadnet.EdgeID{From: 20, To: 12}); ok {
		t.Fatal("oneway side street traversable backwards")
	}
}

func TestBuildSourceReverseOneway(t *testing.T) {
	ways := map[OsmWayId]*OsmWay{
		1: {ID: 1, Nodes: []OsmNodeId{10, 11}, Highway: "primary", Oneway: -1},
	}
	src := BuildSource(testNodes(), ways, DefaultRoadClasses, geom.Identity{})
	if len(src.Edges) != 1 {
		t.Fatalf("got %d edges", len(src.Edges))
	}
	e := src.Edges[0]
	if e.From != 11 || e.To != 10 || e.Geometry[0][0] != 104.001 {
		t.Fatalf("reverse oneway edge = %+v", e)
	}
}

func TestBuildSourceTransform(t *testing.T) {
	ways := map[OsmWayId]*OsmWay{
		1: {ID: 1, Nodes: []OsmNodeId{10, 11}, Highway: "primary"},
	}
	src := BuildSource(testNodes(), ways, DefaultRoadClasses, geom.GCJ02{})
	for _, n := range src.Nodes {
		if n.Lat == 30 {
			t.Fatalf("node %d not moved into the local datum", n.ID)
		}
	}
	if src.Edges[0].Geometry[0][1] == 30 {
		t.Fatal("edge geometry not moved into the local datum")
	}
}

func TestOnewayFromTags(t *testing.T) {
	tests := []struct {
		tags map[string]string
		want int
	}{
		{map[string]string{}, 0},
		{map[string]string{"oneway": "yes"}, 1},
		{map[string]string{"oneway": "-1"}, -1},
		{map[string]string{"oneway": "no", "junction": "roundabout"}, 1},
		{map[string]string{"oneway": "no"}, 0},
	}
	for _, tt := range tests {
		if got := onewayFromTags(tt.tags); got != tt.want {
			t.Fatalf("onewayFromTags(%v) = %d, want %d", tt.tags, got, tt.want)
		}
	}
}

func TestPBFLoaderMissingFile(t *testing.T) {
	l := &PBFLoader{Path: t.TempDir() + "/missing.osm.pbf"}
	if _, err := l.Load(context.Background()); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
