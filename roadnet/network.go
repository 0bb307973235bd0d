// Package roadnet holds the immutable directed road graph that map matching runs against.
package roadnet

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"kuanb/gosm-matcher/geom"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

var (
	ErrGraphIntegrity = errors.New("graph integrity")
	ErrUnknownEdge    = errors.New("unknown edge")
	ErrUnknownNode    = errors.New("unknown node")
)

type NodeID int64

type Node struct {
	ID          NodeID
	Lat         float64
	Lon         float64
	StreetCount int
}

// EdgeID identifies a directed edge by its endpoints, so it is reproducible from node ids alone
type EdgeID struct {
	From NodeID
	To   NodeID
}

// Reverse returns the id of the opposite direction
func (id EdgeID) Reverse() EdgeID {
	return EdgeID{From: id.To, To: id.From}
}

// String renders the id as "from-to"
func (id EdgeID) String() string {
	return strconv.FormatInt(int64(id.From), 10) + "-" + strconv.FormatInt(int64(id.To), 10)
}

// Less orders ids by From then To
func (id EdgeID) Less(o EdgeID) bool {
	if id.From != o.From {
		return id.From < o.From
	}
	return id.To < o.To
}

type Edge struct {
	ID        EdgeID
	Length    float64 // meters
	RoadClass string
	Geometry  orb.LineString // lon/lat from From to To

	// shape is Geometry oriented from the lower node id to the higher one, shared by
	// both directions so projections onto a road agree regardless of direction
	shape   orb.LineString
	flipped bool
}

func (e *Edge) From() NodeID { return e.ID.From }
func (e *Edge) To() NodeID   { return e.ID.To }

// RawEdge is an edge as handed over by a graph loader
type RawEdge struct {
	From      NodeID
	To        NodeID
	Length    float64        // meters; computed from the geometry when <= 0
	RoadClass string         // e.g. the OSM highway tag
	Geometry  orb.LineString // optional intermediate shape including both endpoints
	Oneway    bool           // when false both directions are inserted
}

// Network is the read-only road graph. It is safe for concurrent use once built.
type Network struct {
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge
	out   map[NodeID][]*Edge // sorted by destination

	edgeIndex *geom.RTree[EdgeID]
	nodeIndex *geom.PointIndex
}

// Build indexes nodes and edges. Every edge endpoint must reference a known node.
// Undirected raw edges are inserted in both directions; when the same directed edge is
// supplied twice the shorter one wins.
func Build(nodes []Node, raw []RawEdge) (*Network, error) {
	n := &Network{
		nodes:     make(map[NodeID]*Node, len(nodes)),
		edges:     make(map[EdgeID]*Edge, 2*len(raw)),
		out:       make(map[NodeID][]*Edge),
		edgeIndex: geom.NewRTree[EdgeID](),
		nodeIndex: geom.NewPointIndex(),
	}
	for i := range nodes {
		node := nodes[i]
		n.nodes[node.ID] = &node
	}

	for _, r := range raw {
		from, ok := n.nodes[r.From]
		if !ok {
			return nil, fmt.Errorf("%w: edge %d-%d references missing node %d", ErrGraphIntegrity, r.From, r.To, r.From)
		}
		to, ok := n.nodes[r.To]
		if !ok {
			return nil, fmt.Errorf("%w: edge %d-%d references missing node %d", ErrGraphIntegrity, r.From, r.To, r.To)
		}
		if r.From == r.To {
			continue
		}

		line := r.Geometry
		if len(line) < 2 {
			line = orb.LineString{{from.Lon, from.Lat}, {to.Lon, to.Lat}}
		}
		length := r.Length
		if length <= 0 {
			length = geo.Length(line)
		}

		n.addEdge(EdgeID{From: r.From, To: r.To}, length, r.RoadClass, line)
		if !r.Oneway {
			n.addEdge(EdgeID{From: r.To, To: r.From}, length, r.RoadClass, reversed(line))
		}
	}

	ids := make([]EdgeID, 0, len(n.edges))
	for id := range n.edges {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	for _, id := range ids {
		e := n.edges[id]
		n.out[id.From] = append(n.out[id.From], e)
		n.edgeIndex.Insert(id, e.Geometry.Bound())
	}

	nodeIDs := make([]NodeID, 0, len(n.nodes))
	for id := range n.nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })
	for _, id := range nodeIDs {
		node := n.nodes[id]
		n.nodeIndex.Insert(int64(id), node.Lon, node.Lat)
	}
	return n, nil
}

func (n *Network) addEdge(id EdgeID, length float64, class string, line orb.LineString) {
	if prev, ok := n.edges[id]; ok && prev.Length <= length {
		return
	}
	e := &Edge{
		ID:        id,
		Length:    length,
		RoadClass: class,
		Geometry:  line,
		shape:     line,
	}
	if id.From > id.To {
		e.shape = reversed(line)
		e.flipped = true
	}
	n.edges[id] = e
}

func reversed(line orb.LineString) orb.LineString {
	out := make(orb.LineString, len(line))
	for i, p := range line {
		out[len(line)-1-i] = p
	}
	return out
}

func (n *Network) Node(id NodeID) (*Node, bool) {
	node, ok := n.nodes[id]
	return node, ok
}

func (n *Network) Edge(id EdgeID) (*Edge, bool) {
	e, ok := n.edges[id]
	return e, ok
}

// Outgoing returns the edges leaving a node, ordered by destination id
func (n *Network) Outgoing(id NodeID) []*Edge {
	return n.out[id]
}

func (n *Network) NumNodes() int { return len(n.nodes) }
func (n *Network) NumEdges() int { return len(n.edges) }

// Edges returns every directed edge ordered by id
func (n *Network) Edges() []*Edge {
	out := make([]*Edge, 0, len(n.edges))
	for _, e := range n.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out
}
