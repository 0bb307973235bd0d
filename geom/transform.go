package geom

import (
	"fmt"
	"math"
)

// Transform converts between the datum observations and graph nodes are expressed in
// (local) and the datum returned to callers (external).
type Transform interface {
	ToLocal(lat, lon float64) (float64, float64)
	ToExternal(lat, lon float64) (float64, float64)
}

// Identity is a Transform that leaves coordinates untouched
type Identity struct{}

func (Identity) ToLocal(lat, lon float64) (float64, float64)    { return lat, lon }
func (Identity) ToExternal(lat, lon float64) (float64, float64) { return lat, lon }

// GCJ02 maps WGS84 (external) to the GCJ-02 datum (local) used by trajectories recorded in mainland China
type GCJ02 struct{}

const (
	gcjSemiMajor = 6378245.0
	gcjEE        = 0.00669342162296594323
)

func (GCJ02) ToLocal(lat, lon float64) (float64, float64) {
	if outOfChina(lat, lon) {
		return lat, lon
	}
	dLat, dLon := gcjDelta(lat, lon)
	return lat + dLat, lon + dLon
}

// ToExternal inverts ToLocal by fixed-point iteration
func (g GCJ02) ToExternal(lat, lon float64) (float64, float64) {
	if outOfChina(lat, lon) {
		return lat, lon
	}
	wLat, wLon := lat, lon
	for i := 0; i < 30; i++ {
		gLat, gLon := g.ToLocal(wLat, wLon)
		dLat, dLon := gLat-lat, gLon-lon
		wLat -= dLat
		wLon -= dLon
		if math.Abs(dLat) < 1e-10 && math.Abs(dLon) < 1e-10 {
			break
		}
	}
	return wLat, wLon
}

// TransformFor resolves a datum name from configuration
func TransformFor(datum string) (Transform, error) {
	switch datum {
	case "", "wgs84":
		return Identity{}, nil
	case "gcj02":
		return GCJ02{}, nil
	default:
		return nil, fmt.Errorf("unknown datum %q", datum)
	}
}

func outOfChina(lat, lon float64) bool {
	return lon < 72.004 || lon > 137.8347 || lat < 0.8293 || lat > 55.8271
}

func gcjDelta(lat, lon float64) (float64, float64) {
	x, y := lon-105.0, lat-35.0
	dLat := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	dLat += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	dLat += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	dLat += (160.0*math.Sin(y/12.0*math.Pi) + 320*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0

	dLon := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	dLon += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	dLon += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	dLon += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0

	radLat := lat / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - gcjEE*magic*magic
	sqrtMagic := math.Sqrt(magic)
	dLat = (dLat * 180.0) / ((gcjSemiMajor * (1 - gcjEE)) / (magic * sqrtMagic) * math.Pi)
	dLon = (dLon * 180.0) / (gcjSemiMajor / sqrtMagic * math.Cos(radLat) * math.Pi)
	return dLat, dLon
}
