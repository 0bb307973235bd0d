package routing

import (
	"context"
	"errors"
	"fmt"

	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/roadnet"
)

// Matcher matches trajectories against a road network. A Matcher is read-only after
// construction and may be shared by concurrent goroutines.
type Matcher struct {
	network   *roadnet.Network
	cfg       Config
	decoder   *LatticeDecoder
	projector *SegmentProjector
	transform geom.Transform
}

type Option func(*Matcher)

// WithTransform sets the datum conversion used when reporting node coordinates
func WithTransform(t geom.Transform) Option {
	return func(m *Matcher) {
		m.transform = t
	}
}

// NewMatcher creates a matcher over an already built network
func NewMatcher(network *roadnet.Network, cfg Config, opts ...Option) (*Matcher, error) {
	if network == nil {
		return nil, errors.New("nil network")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Matcher{
		network:   network,
		cfg:       cfg,
		decoder:   NewLatticeDecoder(network, cfg),
		projector: NewSegmentProjector(network),
		transform: geom.Identity{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Matcher) Config() Config            { return m.cfg }
func (m *Matcher) Network() *roadnet.Network { return m.network }

// Match decodes the most likely path of obs through the network
func (m *Matcher) Match(ctx context.Context, obs []Observation) (*Match, error) {
	return m.decoder.Decode(ctx, obs)
}

// Project calibrates a match against its timestamped observations
func (m *Matcher) Project(match *Match, obs []Observation) ([]SegmentRecord, error) {
	return m.projector.Project(match.Sequence, obs)
}

// MatchSegments decodes obs and projects the result. The match is returned even when
// projection fails so callers can still use the node path.
func (m *Matcher) MatchSegments(ctx context.Context, obs []Observation) (*Match, []SegmentRecord, error) {
	match, err := m.Match(ctx, obs)
	if err != nil {
		return nil, nil, err
	}
	records, err := m.Project(match, obs)
	if err != nil {
		return match, nil, err
	}
	return match, records, nil
}

// NodePoint is a matched node in the external datum
type NodePoint struct {
	ID  roadnet.NodeID
	Lon float64
	Lat float64
}

// Nodes resolves the matched path to node coordinates
func (m *Matcher) Nodes(match *Match) ([]NodePoint, error) {
	out := make([]NodePoint, 0, len(match.Path))
	for _, id := range match.Path {
		node, ok := m.network.Node(id)
		if !ok {
			return nil, fmt.Errorf("%w: %d", roadnet.ErrUnknownNode, id)
		}
		lat, lon := m.transform.ToExternal(node.Lat, node.Lon)
		out = append(out, NodePoint{ID: id, Lon: lon, Lat: lat})
	}
	return out, nil
}
