package geom

import (
	"math"
	"testing"
)

func TestGCJ02RoundTrip(t *testing.T) {
	g := GCJ02{}
	points := [][2]float64{
		{30.6531, 104.0559},
		{39.9087, 116.3975},
		{22.5431, 114.0579},
	}
	for _, p := range points {
		lat, lon := g.ToLocal(p[0], p[1])
		if math.Abs(lat-p[0]) < 1e-4 && math.Abs(lon-p[1]) < 1e-4 {
			t.Fatalf("ToLocal(%v) did not shift the point", p)
		}
		// the offset is a few hundred meters at most
		if d := Haversine(lat, lon, p[0], p[1]); d > 1000 {
			t.Fatalf("ToLocal(%v) moved the point %f m", p, d)
		}
		backLat, backLon := g.ToExternal(lat, lon)
		if math.Abs(backLat-p[0]) > 1e-7 || math.Abs(backLon-p[1]) > 1e-7 {
			t.Fatalf("round trip of %v gave %f,%f", p, backLat, backLon)
		}
	}
}

func TestGCJ02OutsideChina(t *testing.T) {
	g := GCJ02{}
	lat, lon := g.ToLocal(48.8566, 2.3522)
	if lat != 48.8566 || lon != 2.3522 {
		t.Fatalf("Paris moved to %f,%f", lat, lon)
	}
}

func TestTransformFor(t *testing.T) {
	for _, datum := range []string{"", "wgs84"} {
		tr, err := TransformFor(datum)
		if err != nil {
			t.Fatalf("TransformFor(%q): %v", datum, err)
		}
		if _, ok := tr.(Identity); !ok {
			t.Fatalf("TransformFor(%q) = %T", datum, tr)
		}
	}
	if tr, err := TransformFor("gcj02"); err != nil {
		t.Fatal(err)
	} else if _, ok := tr.(GCJ02); !ok {
		t.Fatalf("TransformFor(gcj02) = %T", tr)
	}
	if _, err := TransformFor("bd09"); err == nil {
		t.Fatal("expected an error for an unknown datum")
	}
}
