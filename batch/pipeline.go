package batch

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"kuanb/gosm-matcher/metrics"
	"kuanb/gosm-matcher/roadnet"
	"kuanb/gosm-matcher/routing"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Matcher is the part of routing.Matcher the pipeline needs
type Matcher interface {
	MatchSegments(ctx context.Context, obs []routing.Observation) (*routing.Match, []routing.SegmentRecord, error)
}

type Options struct {
	Workers       int // concurrent trajectories
	PartitionSize int // trips per flushed partition
	ChunkSize     int // trajectories read ahead and matched together, Workers*16 when zero
}

// Stats counts what happened to the trajectories of one run
type Stats struct {
	Read       int
	Matched    int
	Unmatched  int
	Mismatched int
	Partitions int
}

// Pipeline matches many trajectories and writes the projected trips in partitions.
// Trip numbers follow input order regardless of how many workers run.
type Pipeline struct {
	matcher Matcher
	sink    Sink
	roads   []roadnet.EdgeInfo
	opts    Options
	runID   string

	stats    Stats
	part     *Partition
	nextTrip int
}

func NewPipeline(matcher Matcher, sink Sink, roads []roadnet.EdgeInfo, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PartitionSize <= 0 {
		opts.PartitionSize = 10000
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = opts.Workers * 16
	}
	p := &Pipeline{
		matcher: matcher,
		sink:    sink,
		roads:   roads,
		opts:    opts,
		runID:   uuid.NewString(),
	}
	p.part = p.newPartition(0)
	return p
}

func (p *Pipeline) RunID() string { return p.runID }

func (p *Pipeline) newPartition(index int) *Partition {
	return &Partition{RunID: p.runID, Index: index, Roads: p.roads}
}

// Run drains src, matching trajectories in parallel chunks and flushing every
// PartitionSize matched trips plus once at the end.
func (p *Pipeline) Run(ctx context.Context, src Source) (Stats, error) {
	chunk := make([]Trajectory, 0, p.opts.ChunkSize)
	for {
		traj, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return p.stats, err
		}
		p.stats.Read++
		chunk = append(chunk, traj)
		if len(chunk) == p.opts.ChunkSize {
			if err := p.process(ctx, chunk); err != nil {
				return p.stats, err
			}
			chunk = chunk[:0]
		}
	}
	if err := p.process(ctx, chunk); err != nil {
		return p.stats, err
	}
	if len(p.part.TripInfo) > 0 || p.stats.Partitions == 0 {
		if err := p.flush(ctx); err != nil {
			return p.stats, err
		}
	}
	log.Printf("Run %s: read %d, matched %d, unmatched %d, mismatched %d, partitions %d",
		p.runID, p.stats.Read, p.stats.Matched, p.stats.Unmatched, p.stats.Mismatched, p.stats.Partitions)
	return p.stats, nil
}

func (p *Pipeline) process(ctx context.Context, chunk []Trajectory) error {
	results := make([][]routing.SegmentRecord, len(chunk))
	outcomes := make([]string, len(chunk))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i := range chunk {
		i := i
		g.Go(func() error {
			start := time.Now()
			match, records, err := p.matcher.MatchSegments(gctx, chunk[i].Observations)
			outcome := metrics.Classify(err)
			skipped := 0
			if match != nil {
				skipped = len(match.Skipped)
			}
			metrics.ObserveMatch(outcome, time.Since(start), len(chunk[i].Observations), skipped)

			switch outcome {
			case metrics.ResultCanceled, metrics.ResultError:
				return err
			}
			results[i], outcomes[i] = records, outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, traj := range chunk {
		switch outcomes[i] {
		case metrics.ResultMismatch:
			p.stats.Mismatched++
			continue
		case metrics.ResultUnmatched:
			p.stats.Unmatched++
			continue
		}
		p.add(traj, results[i])
		if len(p.part.TripInfo) >= p.opts.PartitionSize {
			if err := p.flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) add(traj Trajectory, records []routing.SegmentRecord) {
	trip := p.nextTrip
	p.nextTrip++
	p.stats.Matched++
	for seq, r := range records {
		p.part.Trips = append(p.part.Trips, TripRow{Trip: trip, Seq: seq, SegmentRecord: r})
	}
	p.part.TripInfo = append(p.part.TripInfo, Summarize(trip, traj, records))
}

func (p *Pipeline) flush(ctx context.Context) error {
	part := p.part
	if err := p.sink.WritePartition(ctx, part); err != nil {
		return err
	}
	metrics.PartitionWritten()
	log.Printf("Flushed partition %d: %d trips, %d rows", part.Index, len(part.TripInfo), len(part.Trips))
	p.stats.Partitions++
	p.part = p.newPartition(part.Index + 1)
	return nil
}
