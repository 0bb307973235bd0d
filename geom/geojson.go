package geom

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// TrackPoint is one GPS fix read from a GeoJSON document. Time is zero when absent.
type TrackPoint struct {
	Lon  float64
	Lat  float64
	Time time.Time
}

// TrackFromFeatureCollection extracts an ordered track from a FeatureCollection.
// LineString and MultiPoint features take per-coordinate times from a "times" (or "coordTimes")
// property; Point features take a single "time" property.
func TrackFromFeatureCollection(fc *geojson.FeatureCollection) ([]TrackPoint, error) {
	var track []TrackPoint
	for i, f := range fc.Features {
		var pts []orb.Point
		switch g := f.Geometry.(type) {
		case orb.Point:
			pts = []orb.Point{g}
		case orb.MultiPoint:
			pts = g
		case orb.LineString:
			pts = g
		default:
			continue
		}

		times, err := featureTimes(f, len(pts))
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		for j, p := range pts {
			tp := TrackPoint{Lon: p[0], Lat: p[1]}
			if times != nil {
				tp.Time = times[j]
			}
			track = append(track, tp)
		}
	}
	return track, nil
}

func featureTimes(f *geojson.Feature, n int) ([]time.Time, error) {
	if v, ok := f.Properties["time"]; ok && n == 1 {
		t, err := parseTime(v)
		if err != nil {
			return nil, err
		}
		return []time.Time{t}, nil
	}

	raw, ok := f.Properties["times"]
	if !ok {
		raw, ok = f.Properties["coordTimes"]
	}
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("times must be an array")
	}
	if len(list) != n {
		return nil, fmt.Errorf("got %d times for %d coordinates", len(list), n)
	}
	out := make([]time.Time, n)
	for i, v := range list {
		t, err := parseTime(v)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// parseTime accepts unix seconds or RFC3339 strings
func parseTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case float64:
		return UnixSeconds(t), nil
	case string:
		return time.Parse(time.RFC3339, t)
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %v", v)
	}
}

// UnixSeconds converts fractional unix seconds to a UTC time
func UnixSeconds(sec float64) time.Time {
	whole := int64(sec)
	return time.Unix(whole, int64((sec-float64(whole))*1e9)).UTC()
}

// Seconds converts a time to fractional unix seconds
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
