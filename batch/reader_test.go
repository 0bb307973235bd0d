package batch

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kuanb/gosm-matcher/geom"
)

const sampleCSV = `driver_id,trip_id,timestamp,lon,lat
d1,t1,1010,104.0522,30.6674
d1,t1,1000,104.0559,30.6531
d2,t2,2000,104.0500,30.6760
`

func TestReaderGroupsTrips(t *testing.T) {
	r := NewReader(strings.NewReader(sampleCSV))

	first, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != "t1" || first.Driver != "d1" || len(first.Observations) != 2 {
		t.Fatalf("first = %+v", first)
	}
	// observations come back in time order
	if geom.Seconds(first.Observations[0].Time) != 1000 || first.Observations[0].Lon != 104.0559 {
		t.Fatalf("first observation = %+v", first.Observations[0])
	}

	second, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != "t2" || len(second.Observations) != 1 {
		t.Fatalf("second = %+v", second)
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestReaderWithoutHeader(t *testing.T) {
	r := NewReader(strings.NewReader("d1,t1,1000,104.0559,30.6531\n"))
	traj, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if len(traj.Observations) != 1 {
		t.Fatalf("got %d observations", len(traj.Observations))
	}
}

func TestReaderBadRow(t *testing.T) {
	r := NewReader(strings.NewReader("d1,t1,1000,104.0559,30.6531\nd1,t1,1010,east,30.6\n"))
	if _, err := r.Next(); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("err = %v", err)
	}
}

func TestReaderBadRowStartingATrip(t *testing.T) {
	r := NewReader(strings.NewReader("driver_id,trip_id,timestamp,lon,lat\nd1,t1,1000,104.0559,30.6531\nd1,t2,1010,east,30.6\n"))
	if _, err := r.Next(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Next(); err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("err = %v, want line 3", err)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	if err := os.WriteFile(a, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("d3,t3,3000,104.05,30.66\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(a, b)
	defer src.Close()
	var ids []string
	for {
		traj, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, traj.ID)
	}
	if strings.Join(ids, ",") != "t1,t2,t3" {
		t.Fatalf("trips = %v", ids)
	}

	if _, err := NewFileSource(filepath.Join(dir, "missing.csv")).Next(); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
