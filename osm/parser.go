package osm

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sort"

	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/roadnet"

	"github.com/paulmach/orb/geo"
	"github.com/qedus/osmpbf"
)

// DefaultRoadClasses is the highway whitelist used when none is configured
var DefaultRoadClasses = []string{
	"motorway",
	"motorway_link",
	"trunk",
	"trunk_link",
	"primary",
	"primary_link",
	"secondary",
	"secondary_link",
	"tertiary",
	"tertiary_link",
	"residential",
	"service",
	"living_street",
}

// PBFLoader loads a routable road graph from an OSM PBF extract
type PBFLoader struct {
	Path        string
	RoadClasses []string       // highway whitelist, DefaultRoadClasses when empty
	Transform   geom.Transform // applied to every coordinate, identity when nil
}

// Load decodes the file and converts it into a graph source
func (l *PBFLoader) Load(ctx context.Context) (*roadnet.Source, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	nodes, ways, err := decode(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", l.Path, err)
	}

	classes := l.RoadClasses
	if len(classes) == 0 {
		classes = DefaultRoadClasses
	}
	transform := l.Transform
	if transform == nil {
		transform = geom.Identity{}
	}
	return BuildSource(nodes, ways, classes, transform), nil
}

func decode(ctx context.Context, r io.Reader) (map[OsmNodeId]*OsmNode, map[OsmWayId]*OsmWay, error) {
	d := osmpbf.NewDecoder(r)

	// use more memory from the start, it is faster
	d.SetBufferSize(osmpbf.MaxBlobSize)

	// start decoding with several goroutines, it is faster
	if err := d.Start(runtime.GOMAXPROCS(-1)); err != nil {
		return nil, nil, err
	}

	var nc, wc, rc uint64
	nodes := make(map[OsmNodeId]*OsmNode)
	ways := make(map[OsmWayId]*OsmWay)

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		v, err := d.Decode()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, err
		}
		switch v := v.(type) {
		case *osmpbf.Node:
			nodes[OsmNodeId(v.ID)] = &OsmNode{
				ID:  OsmNodeId(v.ID),
				Lat: v.Lat,
				Lon: v.Lon,
			}
			nc++
		case *osmpbf.Way:
			nodeIDs := make([]OsmNodeId, len(v.NodeIDs))
			for i, id := range v.NodeIDs {
				nodeIDs[i] = OsmNodeId(id)
			}
			ways[OsmWayId(v.ID)] = &OsmWay{
				ID:      OsmWayId(v.ID),
				Highway: v.Tags["highway"],
				Nodes:   nodeIDs,
				Oneway:  onewayFromTags(v.Tags),
			}
			wc++
		case *osmpbf.Relation:
			// we ignore relations for now
			rc++
		default:
			return nil, nil, fmt.Errorf("unknown type %T", v)
		}
	}
	log.Printf("Decoded %d nodes, %d ways, %d relations", nc, wc, rc)
	return nodes, ways, nil
}

// BuildSource filters ways to the whitelisted road classes and splits them into edges
// between graph nodes. Graph nodes are way endpoints and nodes shared by several ways.
func BuildSource(nodes map[OsmNodeId]*OsmNode, ways map[OsmWayId]*OsmWay, roadClasses []string, transform geom.Transform) *roadnet.Source {
	// Build set for roadClasses for fast lookup
	whitelistedHighways := make(map[string]struct{}, len(roadClasses))
	for _, hw := range roadClasses {
		whitelistedHighways[hw] = struct{}{}
	}

	wayIDs := make([]OsmWayId, 0, len(ways))
	for id, way := range ways {
		if _, ok := whitelistedHighways[way.Highway]; ok {
			wayIDs = append(wayIDs, id)
		}
	}
	sort.Slice(wayIDs, func(i, j int) bool { return wayIDs[i] < wayIDs[j] })
	log.Printf("Dropped %d ways (kept %d)", len(ways)-len(wayIDs), len(wayIDs))

	// Drop references to nodes the extract does not contain
	kept := make([]*OsmWay, 0, len(wayIDs))
	for _, id := range wayIDs {
		way := ways[id]
		refs := make([]OsmNodeId, 0, len(way.Nodes))
		for _, nid := range way.Nodes {
			if _, ok := nodes[nid]; ok {
				refs = append(refs, nid)
			}
		}
		if len(refs) < 2 {
			continue
		}
		kept = append(kept, &OsmWay{ID: way.ID, Nodes: refs, Highway: way.Highway, Oneway: way.Oneway})
	}

	// 1. Identify graph nodes: way endpoints and nodes referenced more than once
	nodeRefCount := make(map[OsmNodeId]int)
	graphNodes := make(map[OsmNodeId]struct{})
	for _, way := range kept {
		for _, nid := range way.Nodes {
			nodeRefCount[nid]++
		}
		graphNodes[way.Nodes[0]] = struct{}{}
		graphNodes[way.Nodes[len(way.Nodes)-1]] = struct{}{}
	}
	for nid, count := range nodeRefCount {
		if count > 1 {
			graphNodes[nid] = struct{}{}
		}
	}

	// Move every coordinate into the local datum once
	local := make(map[OsmNodeId]*OsmNode, len(nodeRefCount))
	for nid := range nodeRefCount {
		n := nodes[nid]
		lat, lon := transform.ToLocal(n.Lat, n.Lon)
		local[nid] = &OsmNode{ID: nid, Lat: lat, Lon: lon}
	}

	// 2. For each way, break it into edges between graph nodes
	src := &roadnet.Source{}
	degree := make(map[OsmNodeId]int)
	for _, way := range kept {
		segStart := 0
		for i := 1; i < len(way.Nodes); i++ {
			if _, ok := graphNodes[way.Nodes[i]]; !ok {
				continue
			}
			segment := way.Nodes[segStart : i+1]
			from, to := segment[0], segment[len(segment)-1]
			segStart = i
			if from == to {
				continue
			}

			line := buildLineString(segment, local)
			edge := roadnet.RawEdge{
				From:      roadnet.NodeID(from),
				To:        roadnet.NodeID(to),
				Length:    geo.Length(line),
				RoadClass: way.Highway,
				Geometry:  line,
				Oneway:    way.Oneway != 0,
			}
			if way.Oneway < 0 {
				edge.From, edge.To = edge.To, edge.From
				edge.Geometry = reverse(line)
			}
			src.Edges = append(src.Edges, edge)
			degree[from]++
			degree[to]++
		}
	}

	ids := make([]OsmNodeId, 0, len(degree))
	for nid := range degree {
		ids = append(ids, nid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, nid := range ids {
		n := local[nid]
		src.Nodes = append(src.Nodes, roadnet.Node{
			ID:          roadnet.NodeID(nid),
			Lat:         n.Lat,
			Lon:         n.Lon,
			StreetCount: degree[nid],
		})
	}
	log.Printf("Built graph source: %d nodes, %d edges", len(src.Nodes), len(src.Edges))
	return src
}
