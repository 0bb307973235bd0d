package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kuanb/gosm-matcher/batch"
	"kuanb/gosm-matcher/roadnet"
	"kuanb/gosm-matcher/routing"
)

func testPartition(index int) *batch.Partition {
	t0 := time.Unix(1000, 0).UTC()
	rows := []batch.TripRow{
		{Trip: index, Seq: 0, SegmentRecord: routing.SegmentRecord{
			Road: roadnet.EdgeID{From: 1, To: 2}, Obs: 0, Timestamp: t0,
			Lon: 104.0559, Lat: 30.6531, Length: 450, RoadProp: 0.03,
		}},
		{Trip: index, Seq: 1, SegmentRecord: routing.SegmentRecord{
			Road: roadnet.EdgeID{From: 2, To: 3}, Obs: 1, Timestamp: t0.Add(300 * time.Second),
			Lon: 104.0522, Lat: 30.6674, Length: 970, RoadProp: 0.01,
		}},
	}
	return &batch.Partition{
		RunID: "run-1",
		Index: index,
		Trips: rows,
		TripInfo: []batch.TripInfo{{
			Trip: index, Source: "trip-a", Start: t0, End: t0.Add(300 * time.Second),
			LengthKm: 1.42, Driver: "driver-1",
		}},
		Roads: []roadnet.EdgeInfo{
			{Name: "1-2", From: 1, To: 2, Length: 450, RoadClass: "primary"},
			{Name: "2-3", From: 2, To: 3, Length: 970, RoadClass: "primary"},
		},
	}
}

func TestWritePartitions(t *testing.T) {
	sink, err := OpenSQLite(filepath.Join(t.TempDir(), "matched.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := sink.WritePartition(ctx, testPartition(i)); err != nil {
			t.Fatalf("partition %d: %v", i, err)
		}
	}

	trips, infos, roads, err := sink.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// road rows are shared between partitions
	if trips != 4 || infos != 2 || roads != 2 {
		t.Fatalf("counts = %d trips, %d trip_info, %d roads", trips, infos, roads)
	}

	var road, ts string
	var prop float64
	err = sink.db.QueryRowContext(ctx,
		`SELECT road, timestamp, road_prop FROM trips WHERE trip = 1 AND seq_i = 1`).Scan(&road, &ts, &prop)
	if err != nil {
		t.Fatal(err)
	}
	if road != "2-3" || ts != "1970-01-01T00:21:40Z" || prop != 0.01 {
		t.Fatalf("row = %s %s %f", road, ts, prop)
	}
}

func TestWritePartitionRollsBack(t *testing.T) {
	sink, err := OpenSQLite(filepath.Join(t.TempDir(), "matched.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	ctx := context.Background()
	if err := sink.WritePartition(ctx, testPartition(0)); err != nil {
		t.Fatal(err)
	}
	// the same trips again violate the primary key, so nothing of the partition is kept
	if err := sink.WritePartition(ctx, testPartition(0)); err == nil {
		t.Fatal("expected a primary key violation")
	}
	trips, infos, _, err := sink.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if trips != 2 || infos != 1 {
		t.Fatalf("counts after rollback = %d trips, %d trip_info", trips, infos)
	}
}
