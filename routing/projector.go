package routing

import (
	"fmt"
	"math"
	"time"

	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/roadnet"

	"gonum.org/v1/gonum/interp"
)

// SegmentRecord is one calibrated row of a projected trajectory
type SegmentRecord struct {
	Road      roadnet.EdgeID
	Obs       int
	ObsNE     int
	Timestamp time.Time
	Lon       float64
	Lat       float64
	Length    float64 // edge length in meters
	RoadProp  float64 // estimated fraction of the edge covered, in [0, 1]
}

// SegmentProjector turns a decoded state sequence into timestamped per-edge records
type SegmentProjector struct {
	network *roadnet.Network
}

func NewSegmentProjector(network *roadnet.Network) *SegmentProjector {
	return &SegmentProjector{network: network}
}

// Project calibrates seq against the timestamped observations it was decoded from.
// It is all-or-nothing: when the direct states do not correspond one to one with obs it
// returns ErrProjectionMismatch and no records.
func (p *SegmentProjector) Project(seq []DecodedState, obs []Observation) ([]SegmentRecord, error) {
	if len(obs) == 0 {
		return nil, ErrEmptyTrajectory
	}
	for i, o := range obs {
		if !o.HasTime() {
			return nil, fmt.Errorf("observation %d: %w", i, ErrMissingTimestamps)
		}
	}

	var xs, ys []float64
	for i, s := range seq {
		if s.Direct() {
			xs = append(xs, float64(i))
			if s.Obs < len(obs) {
				ys = append(ys, geom.Seconds(obs[s.Obs].Time))
			}
		}
	}
	if len(xs) != len(obs) || len(ys) != len(obs) {
		return nil, fmt.Errorf("%w: %d direct states for %d observations", ErrProjectionMismatch, len(xs), len(obs))
	}

	predict, err := interpolator(xs, ys)
	if err != nil {
		return nil, err
	}

	records := make([]SegmentRecord, len(seq))
	for i, s := range seq {
		origin, ok := p.network.Node(s.Edge.From())
		if !ok {
			return nil, fmt.Errorf("%w: %d", roadnet.ErrUnknownNode, s.Edge.From())
		}

		rec := SegmentRecord{
			Road:   s.Edge.ID,
			Obs:    s.Obs,
			ObsNE:  s.ObsNE,
			Length: s.Edge.Length,
		}
		if s.Direct() {
			o := obs[s.Obs]
			rec.Timestamp = o.Time
			rec.Lon, rec.Lat = o.Lon, o.Lat
		} else {
			rec.Timestamp = geom.UnixSeconds(predict(float64(i)))
			rec.Lon, rec.Lat = origin.Lon, origin.Lat
		}
		rec.RoadProp = RoadProp(rec.Lat, rec.Lon, origin.Lat, origin.Lon, s.Edge.Length)
		records[i] = rec
	}
	return records, nil
}

// interpolator fits timestamps ys at lattice positions xs. Positions outside the known
// range take the nearest known timestamp.
func interpolator(xs, ys []float64) (func(float64) float64, error) {
	if len(xs) == 1 {
		v := ys[0]
		return func(float64) float64 { return v }, nil
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fit timestamps: %w", err)
	}
	return pl.Predict, nil
}

// RoadProp estimates how far along an edge a point lies as the distance from the edge's
// origin over its length, clamped to [0, 1]. Degenerate edges yield 0.
func RoadProp(lat, lon, originLat, originLon, length float64) float64 {
	if length <= 0 {
		return 0
	}
	prop := geom.Haversine(lat, lon, originLat, originLon) / length
	if math.IsNaN(prop) || prop < 0 {
		return 0
	}
	if prop > 1 {
		return 1
	}
	return prop
}

// NodeTime is the time a trajectory entered a node
type NodeTime struct {
	Node roadnet.NodeID
	Time time.Time
}

// NodeTimes lists the nodes a projected trajectory passed with their entry times: the
// origin of each new edge, followed by the destination of the last edge.
func NodeTimes(records []SegmentRecord) []NodeTime {
	if len(records) == 0 {
		return nil
	}
	var out []NodeTime
	var prev roadnet.EdgeID
	for i, r := range records {
		if i > 0 && r.Road == prev {
			continue
		}
		out = append(out, NodeTime{Node: r.Road.From, Time: r.Timestamp})
		prev = r.Road
	}
	last := records[len(records)-1]
	return append(out, NodeTime{Node: last.Road.To, Time: last.Timestamp})
}
