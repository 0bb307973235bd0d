package batch

import (
	"context"
	"time"

	"kuanb/gosm-matcher/roadnet"
	"kuanb/gosm-matcher/routing"
)

// Trajectory is one trip to be matched
type Trajectory struct {
	ID           string
	Driver       string
	Observations []routing.Observation
}

// TripRow is a projected record tagged with its trip number and position in the trip
type TripRow struct {
	Trip int
	Seq  int
	routing.SegmentRecord
}

// TripInfo summarises one matched trip
type TripInfo struct {
	Trip     int
	Source   string // trajectory id in the input
	Start    time.Time
	End      time.Time
	LengthKm float64 // summed length of the distinct edges driven
	Driver   string
}

// Partition is a bounded chunk of results flushed to a Sink together
type Partition struct {
	RunID    string
	Index    int
	Trips    []TripRow
	TripInfo []TripInfo
	Roads    []roadnet.EdgeInfo
}

// Sink persists partitions
type Sink interface {
	WritePartition(ctx context.Context, p *Partition) error
}

// Summarize builds the TripInfo of one projected trip
func Summarize(trip int, traj Trajectory, records []routing.SegmentRecord) TripInfo {
	info := TripInfo{Trip: trip, Source: traj.ID, Driver: traj.Driver}
	seen := make(map[roadnet.EdgeID]struct{}, len(records))
	meters := 0.0
	for i, r := range records {
		if i == 0 || r.Timestamp.Before(info.Start) {
			info.Start = r.Timestamp
		}
		if i == 0 || r.Timestamp.After(info.End) {
			info.End = r.Timestamp
		}
		if _, ok := seen[r.Road]; ok {
			continue
		}
		seen[r.Road] = struct{}{}
		meters += r.Length
	}
	info.LengthKm = meters / 1000
	return info
}
