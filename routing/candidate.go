package routing

import (
	"math"
	"time"

	"kuanb/gosm-matcher/roadnet"
)

// Observation represents a GPS observation point. Time is zero when the fix carries no timestamp.
type Observation struct {
	Lon  float64
	Lat  float64
	Time time.Time
}

func (o Observation) HasTime() bool {
	return !o.Time.IsZero()
}

// Candidate represents a potential road placement for one observation
type Candidate struct {
	Edge     *roadnet.Edge
	Distance float64 // distance from GPS point to the edge in meters
	Offset   float64 // fraction along the edge, 0 = From, 1 = To
}

// CandidateGenerator finds the closest edges around an observation, at most width of them
type CandidateGenerator struct {
	network *roadnet.Network
	width   int
}

func NewCandidateGenerator(network *roadnet.Network, width int) *CandidateGenerator {
	return &CandidateGenerator{network: network, width: width}
}

// nodeTolerance is how close two placements must be, in meters, to count as the same spot
const nodeTolerance = 1e-6

// Generate returns candidates within maxDist of obs, closest first. An empty result is not an error.
//
// A placement clamped onto the end of u→v is the same physical spot as the start of any
// v→w, so when such an outgoing placement exists (w != u) the end-clamped one is dropped.
func (g *CandidateGenerator) Generate(obs Observation, maxDist float64) []Candidate {
	hits := g.network.EdgesNear(obs.Lon, obs.Lat, maxDist)

	starts := make(map[roadnet.NodeID][]roadnet.Hit)
	for _, h := range hits {
		if h.Offset == 0 {
			starts[h.Edge.From()] = append(starts[h.Edge.From()], h)
		}
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		if h.Offset == 1 && continuesFrom(h, starts[h.Edge.To()]) {
			continue
		}
		candidates = append(candidates, Candidate{
			Edge:     h.Edge,
			Distance: h.Distance,
			Offset:   h.Offset,
		})
		if g.width > 0 && len(candidates) == g.width {
			break
		}
	}
	return candidates
}

func continuesFrom(end roadnet.Hit, starts []roadnet.Hit) bool {
	for _, s := range starts {
		if s.Edge.To() != end.Edge.From() && math.Abs(s.Distance-end.Distance) <= nodeTolerance {
			return true
		}
	}
	return false
}
