package roadnet

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/paulmach/orb"
)

// line builds n nodes spaced 0.001° of longitude apart along latitude 30, joined by two-way edges
func line(t *testing.T, n int) *Network {
	t.Helper()
	lons := []float64{104, 104.001, 104.002, 104.003, 104.004}
	var nodes []Node
	var edges []RawEdge
	for i := 1; i <= n; i++ {
		nodes = append(nodes, Node{ID: NodeID(i), Lat: 30, Lon: lons[i-1]})
		if i > 1 {
			edges = append(edges, RawEdge{From: NodeID(i - 1), To: NodeID(i), RoadClass: "residential"})
		}
	}
	net, err := Build(nodes, edges)
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func TestBuildMissingNode(t *testing.T) {
	nodes := []Node{{ID: 1, Lat: 30, Lon: 104}}
	_, err := Build(nodes, []RawEdge{{From: 1, To: 2, Length: 10}})
	if !errors.Is(err, ErrGraphIntegrity) {
		t.Fatalf("err = %v, want ErrGraphIntegrity", err)
	}
}

func TestBuildBothDirections(t *testing.T) {
	net := line(t, 3)
	if net.NumNodes() != 3 || net.NumEdges() != 4 {
		t.Fatalf("got %d nodes, %d edges", net.NumNodes(), net.NumEdges())
	}
	fwd, ok := net.Edge(EdgeID{1, 2})
	if !ok {
		t.Fatal("missing 1-2")
	}
	back, ok := net.Edge(EdgeID{2, 1})
	if !ok {
		t.Fatal("missing 2-1")
	}
	if fwd.Length != back.Length || fwd.Length < 90 || fwd.Length > 100 {
		t.Fatalf("lengths %f / %f", fwd.Length, back.Length)
	}
	if back.Geometry[0] != (orb.Point{104.001, 30}) {
		t.Fatalf("2-1 geometry should start at node 2, got %v", back.Geometry[0])
	}

	out := net.Outgoing(2)
	if len(out) != 2 || out[0].To() != 1 || out[1].To() != 3 {
		t.Fatalf("outgoing of 2 not ordered by destination: %v", out)
	}
}

func TestBuildOnewayAndDuplicates(t *testing.T) {
	nodes := []Node{{ID: 1, Lat: 30, Lon: 104}, {ID: 2, Lat: 30, Lon: 104.001}}
	net, err := Build(nodes, []RawEdge{
		{From: 1, To: 2, Length: 120, Oneway: true},
		{From: 1, To: 2, Length: 100, Oneway: true},
		{From: 1, To: 1, Length: 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	if net.NumEdges() != 1 {
		t.Fatalf("NumEdges = %d, want 1", net.NumEdges())
	}
	e, _ := net.Edge(EdgeID{1, 2})
	if e.Length != 100 {
		t.Fatalf("Length = %f, want the shorter duplicate", e.Length)
	}
	if _, ok := net.Edge(EdgeID{2, 1}); ok {
		t.Fatal("oneway edge inserted backwards")
	}
}

func TestEdgeID(t *testing.T) {
	id := EdgeID{From: 12, To: 7}
	if id.String() != "12-7" {
		t.Fatalf("String = %s", id)
	}
	if id.Reverse() != (EdgeID{From: 7, To: 12}) {
		t.Fatalf("Reverse = %v", id.Reverse())
	}
	if !id.Reverse().Less(id) || id.Less(id) {
		t.Fatal("Less ordering")
	}
}

func TestProjectSymmetric(t *testing.T) {
	net := line(t, 2)
	fwd, _ := net.Edge(EdgeID{1, 2})
	back, _ := net.Edge(EdgeID{2, 1})

	d1, o1 := net.Project(104.0003, 30.0001, fwd)
	d2, o2 := net.Project(104.0003, 30.0001, back)
	if d1 != d2 {
		t.Fatalf("distances differ: %v vs %v", d1, d2)
	}
	if math.Abs(o1+o2-1) > 1e-12 {
		t.Fatalf("offsets %f and %f do not mirror", o1, o2)
	}
	if math.Abs(o1-0.3) > 1e-6 {
		t.Fatalf("offset = %f, want 0.3", o1)
	}

	// beyond the end the offset clamps
	_, o := net.Project(104.002, 30, fwd)
	if o != 1 {
		t.Fatalf("clamped offset = %f", o)
	}
}

func TestEdgesNearOrdering(t *testing.T) {
	net := line(t, 4)
	hits := net.EdgesNear(104.001, 30.00005, 50)
	if len(hits) != 4 {
		t.Fatalf("got %d hits, want the 4 edges touching node 2", len(hits))
	}
	ordered := sort.SliceIsSorted(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Edge.ID.Less(hits[j].Edge.ID)
	})
	if !ordered {
		t.Fatalf("hits not ordered: %+v", hits)
	}
	for _, h := range hits {
		if h.Distance > 50 {
			t.Fatalf("hit %s at %f m", h.Edge.ID, h.Distance)
		}
	}

	if hits := net.EdgesNear(104.001, 30.01, 50); len(hits) != 0 {
		t.Fatalf("expected no hits 1 km away, got %d", len(hits))
	}
}

func TestPointAt(t *testing.T) {
	net := line(t, 2)
	e, _ := net.Edge(EdgeID{2, 1})
	if lon, lat := e.PointAt(0); lon != 104.001 || lat != 30 {
		t.Fatalf("PointAt(0) = %f,%f", lon, lat)
	}
	if lon, _ := e.PointAt(0.5); math.Abs(lon-104.0005) > 1e-9 {
		t.Fatalf("PointAt(0.5) lon = %f", lon)
	}
	if lon, _ := e.PointAt(1); lon != 104 {
		t.Fatalf("PointAt(1) lon = %f", lon)
	}
}

func TestNearestNode(t *testing.T) {
	net := line(t, 4)
	node, dist, ok := net.NearestNode(104.0021, 30.0001)
	if !ok || node.ID != 3 {
		t.Fatalf("NearestNode = %v, %v", node, ok)
	}
	if dist <= 0 || dist > 20 {
		t.Fatalf("dist = %f", dist)
	}
}

func TestShortestPath(t *testing.T) {
	net := line(t, 4)
	e12, _ := net.Edge(EdgeID{1, 2})

	d, path, ok := net.ShortestPath(1, 4, 1000)
	if !ok {
		t.Fatal("1 to 4 not reachable")
	}
	if len(path) != 3 || path[0].ID != (EdgeID{1, 2}) || path[2].ID != (EdgeID{3, 4}) {
		t.Fatalf("path = %v", path)
	}
	if math.Abs(d-3*e12.Length) > 1e-6 {
		t.Fatalf("distance = %f", d)
	}

	if _, _, ok := net.ShortestPath(1, 4, 2*e12.Length); ok {
		t.Fatal("cutoff ignored")
	}
	if d, path, ok := net.ShortestPath(2, 2, 0); !ok || d != 0 || len(path) != 0 {
		t.Fatalf("self path = %f %v %v", d, path, ok)
	}

	tree := net.ShortestPaths(4, 1.5*e12.Length)
	if _, ok := tree.Distance(3); !ok {
		t.Fatal("3 should be within the cutoff from 4")
	}
	if _, ok := tree.Distance(2); ok {
		t.Fatal("2 should be beyond the cutoff from 4")
	}
}

func TestEdgeTable(t *testing.T) {
	net := line(t, 3)
	table := net.EdgeTable()
	if len(table) != 4 {
		t.Fatalf("got %d rows", len(table))
	}
	names := []string{"1-2", "2-1", "2-3", "3-2"}
	for i, row := range table {
		if row.Name != names[i] {
			t.Fatalf("row %d = %s, want %s", i, row.Name, names[i])
		}
	}
	info := table[1]
	if info.OriginLon != 104.001 || math.Abs(info.MidLon-104.0005) > 1e-6 || info.RoadClass != "residential" {
		t.Fatalf("2-1 info = %+v", info)
	}

	if _, err := net.Info(EdgeID{1, 3}); !errors.Is(err, ErrUnknownEdge) {
		t.Fatalf("err = %v", err)
	}
}
