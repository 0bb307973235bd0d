package routing

import (
	"context"
	"fmt"
	"math"

	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/roadnet"
)

// LatticeState is one candidate of one observation inside the decode lattice
type LatticeState struct {
	Obs       int // observation index
	Candidate Candidate
	Score     float64 // best cumulative log-probability ending here
	Prev      int     // index of the best predecessor in the previous layer, -1 for the first layer

	route []*roadnet.Edge // edges traversed from the predecessor, excluding both candidate edges
}

// DecodedState is one entry of the decoded edge sequence. Direct states correspond to an
// observation; pass-through states are edges driven between two observations.
type DecodedState struct {
	Edge   *roadnet.Edge
	Obs    int     // observation index, or the preceding one for pass-through states
	ObsNE  int     // 0 for direct states, k for the k-th pass-through edge after Obs
	Offset float64 // position along Edge for direct states
}

func (s DecodedState) Direct() bool {
	return s.ObsNE == 0
}

// MatchedPath is the ordered node sequence of a decoded route
type MatchedPath []roadnet.NodeID

// Match is the result of decoding one trajectory
type Match struct {
	Path       MatchedPath
	States     []LatticeState // chosen state per decoded observation
	Sequence   []DecodedState // direct and pass-through states in travel order
	Skipped    []int          // observations left out of the lattice
	Confidence float64
}

type layer struct {
	obs    int
	states []LatticeState
}

// LatticeDecoder finds the most likely candidate sequence with the Viterbi algorithm
type LatticeDecoder struct {
	network    *roadnet.Network
	cfg        Config
	candidates *CandidateGenerator
	score      scorer
}

func NewLatticeDecoder(network *roadnet.Network, cfg Config) *LatticeDecoder {
	return &LatticeDecoder{
		network:    network,
		cfg:        cfg,
		candidates: NewCandidateGenerator(network, cfg.MaxLatticeWidth),
		score:      newScorer(cfg),
	}
}

// Decode runs the Viterbi algorithm over obs. Cancellation is checked between observations.
func (d *LatticeDecoder) Decode(ctx context.Context, obs []Observation) (*Match, error) {
	if len(obs) == 0 {
		return nil, ErrEmptyTrajectory
	}

	var layers []layer
	var skipped []int
	for i, o := range obs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cands := d.layerCandidates(o)
		if len(cands) == 0 {
			if d.cfg.NoCandidate == PolicyFail {
				return nil, fmt.Errorf("observation %d: %w", i, ErrNoCandidate)
			}
			skipped = append(skipped, i)
			continue
		}

		if len(layers) == 0 {
			states := make([]LatticeState, len(cands))
			for j, c := range cands {
				states[j] = LatticeState{
					Obs:       i,
					Candidate: c,
					Score:     d.score.emission(c.Distance),
					Prev:      -1,
				}
			}
			layers = append(layers, layer{obs: i, states: states})
			continue
		}

		prev := layers[len(layers)-1]
		next := d.advance(prev, obs[prev.obs], i, o, cands, d.cfg.AvoidGoingBack)
		if len(next.states) == 0 && d.cfg.AvoidGoingBack {
			// turning back is allowed only when nothing else reaches the observation
			next = d.advance(prev, obs[prev.obs], i, o, cands, false)
		}
		if len(next.states) == 0 {
			if d.cfg.NoCandidate == PolicyFail {
				return nil, fmt.Errorf("observations %d to %d: %w", prev.obs, i, ErrNoFeasiblePath)
			}
			skipped = append(skipped, i)
			continue
		}
		layers = append(layers, next)
	}

	if len(layers) == 0 {
		return nil, ErrNoMatch
	}
	return d.backtrack(layers, skipped), nil
}

// layerCandidates generates the candidates of one observation and prunes unlikely ones
func (d *LatticeDecoder) layerCandidates(o Observation) []Candidate {
	cands := d.candidates.Generate(o, d.cfg.MaxDist)
	kept := cands[:0]
	for _, c := range cands {
		if d.score.emissionNorm(c.Distance) >= d.cfg.MinProbNorm {
			kept = append(kept, c)
		}
	}
	return kept
}

// advance builds the layer of observation i from the previous layer. Candidates that
// no predecessor can reach are left out. With avoidBack set, transitions that turn back
// are not considered.
func (d *LatticeDecoder) advance(prev layer, prevObs Observation, i int, o Observation, cands []Candidate, avoidBack bool) layer {
	gcDist := geom.Haversine(prevObs.Lat, prevObs.Lon, o.Lat, o.Lon)
	cutoff := d.cfg.searchCutoff(gcDist)
	trees := make(map[roadnet.NodeID]*roadnet.SearchTree)

	next := layer{obs: i}
	for _, c := range cands {
		best := math.Inf(-1)
		bestPrev := -1
		var bestRoute []*roadnet.Edge

		for pi, ps := range prev.states {
			routeDist, route, ok := d.route(ps.Candidate, c, cutoff, trees, avoidBack)
			if !ok {
				continue
			}
			score := ps.Score + d.score.transition(routeDist, gcDist)
			for _, e := range route {
				score += d.score.passThrough(deviation(e, prevObs, o))
			}
			if score > best {
				best = score
				bestPrev = pi
				bestRoute = route
			}
		}

		if bestPrev < 0 {
			continue
		}
		next.states = append(next.states, LatticeState{
			Obs:       i,
			Candidate: c,
			Score:     best + d.score.emission(c.Distance),
			Prev:      bestPrev,
			route:     bestRoute,
		})
	}
	return next
}

// route returns the network distance from candidate a to candidate b and the edges
// strictly between them. The node-to-node part of the route is bounded by cutoff.
// A step back along the same edge of at most obs_noise meters counts as standing still.
func (d *LatticeDecoder) route(a, b Candidate, cutoff float64, trees map[roadnet.NodeID]*roadnet.SearchTree, avoidBack bool) (float64, []*roadnet.Edge, bool) {
	e1, e2 := a.Edge, b.Edge
	if e1.ID == e2.ID {
		forward := (b.Offset - a.Offset) * e1.Length
		if forward >= 0 {
			return forward, nil, true
		}
		if -forward <= d.cfg.ObsNoise {
			return 0, nil, true
		}
	}
	if avoidBack && (e1.ID == e2.ID || e2.ID == e1.ID.Reverse()) {
		return 0, nil, false
	}

	head := (1 - a.Offset) * e1.Length
	tail := b.Offset * e2.Length
	if e1.To() == e2.From() {
		return head + tail, nil, true
	}

	tree, ok := trees[e1.To()]
	if !ok {
		tree = d.network.ShortestPaths(e1.To(), cutoff)
		trees[e1.To()] = tree
	}
	between, ok := tree.Distance(e2.From())
	if !ok {
		return 0, nil, false
	}
	path, _ := tree.Path(e2.From())
	if avoidBack && (path[0].ID == e1.ID.Reverse() || path[len(path)-1].ID == e2.ID.Reverse()) {
		return 0, nil, false
	}
	return head + between + tail, path, true
}

// deviation is how far the start of a pass-through edge lies from the straight line between two observations
func deviation(e *roadnet.Edge, from, to Observation) float64 {
	origin := e.Geometry[0]
	return geom.PointToSegmentDistance(origin[0], origin[1], from.Lon, from.Lat, to.Lon, to.Lat)
}

// backtrack recovers the best state sequence from the final layer
func (d *LatticeDecoder) backtrack(layers []layer, skipped []int) *Match {
	last := layers[len(layers)-1]
	bestIdx := 0
	scores := make([]float64, len(last.states))
	for i, s := range last.states {
		scores[i] = s.Score
		if s.Score > last.states[bestIdx].Score {
			bestIdx = i
		}
	}

	states := make([]LatticeState, len(layers))
	idx := bestIdx
	for li := len(layers) - 1; li >= 0; li-- {
		states[li] = layers[li].states[idx]
		idx = states[li].Prev
	}

	var seq []DecodedState
	for li, s := range states {
		if li > 0 {
			for k, e := range s.route {
				seq = append(seq, DecodedState{Edge: e, Obs: states[li-1].Obs, ObsNE: k + 1})
			}
		}
		seq = append(seq, DecodedState{Edge: s.Candidate.Edge, Obs: s.Obs, Offset: s.Candidate.Offset})
	}

	return &Match{
		Path:       buildPath(seq, d.cfg.ObsNoise),
		States:     states,
		Sequence:   seq,
		Skipped:    skipped,
		Confidence: calculateConfidence(scores, bestIdx),
	}
}

// buildPath concatenates the endpoints of every decoded edge, dropping consecutive repeats.
// The last node is dropped when the final observation sits within tol meters of the last
// edge's start, and the first node when the first observation sits within tol of the first
// edge's end, as long as two nodes remain.
func buildPath(seq []DecodedState, tol float64) MatchedPath {
	var path MatchedPath
	push := func(id roadnet.NodeID) {
		if len(path) == 0 || path[len(path)-1] != id {
			path = append(path, id)
		}
	}
	var prev *roadnet.Edge
	for _, s := range seq {
		if prev != nil && s.Edge.ID == prev.ID {
			continue
		}
		push(s.Edge.From())
		push(s.Edge.To())
		prev = s.Edge
	}

	last := seq[len(seq)-1]
	if len(path) > 2 && path[len(path)-1] == last.Edge.To() && last.Offset*last.Edge.Length <= tol {
		path = path[:len(path)-1]
	}
	first := seq[0]
	if len(path) > 2 && path[0] == first.Edge.From() && (1-first.Offset)*first.Edge.Length <= tol {
		path = path[1:]
	}
	return path
}
