package geom

import (
	"math"

	"github.com/golang/geo/s2"
)

const EarthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance in meters between two lat/lon points
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// GreatCircleDistance is Haversine with lon/lat argument order
func GreatCircleDistance(lon1, lat1, lon2, lat2 float64) float64 {
	return Haversine(lat1, lon1, lat2, lon2)
}

// Midpoint returns the point halfway along the great circle between two points
func Midpoint(lat1, lon1, lat2, lon2 float64) (lat, lon float64) {
	a := s2.PointFromLatLng(s2.LatLngFromDegrees(lat1, lon1))
	b := s2.PointFromLatLng(s2.LatLngFromDegrees(lat2, lon2))
	mid := s2.LatLngFromPoint(s2.Interpolate(0.5, a, b))
	return mid.Lat.Degrees(), mid.Lng.Degrees()
}

// Projection is the closest point on a segment to a query point
type Projection struct {
	Distance float64 // meters from the query point to the closest point
	T        float64 // position of the closest point along the segment, clamped to [0, 1]
	Length   float64 // segment length in meters
}

// ProjectOnSegment projects p onto the line segment ab.
// Uses equirectangular projection around a (accurate for short distances)
func ProjectOnSegment(pLon, pLat, aLon, aLat, bLon, bLat float64) Projection {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }

	cosLat := math.Cos(toRad(aLat))
	ax := toRad(aLon) * cosLat * EarthRadiusMeters
	ay := toRad(aLat) * EarthRadiusMeters
	bx := toRad(bLon) * cosLat * EarthRadiusMeters
	by := toRad(bLat) * EarthRadiusMeters
	px := toRad(pLon) * cosLat * EarthRadiusMeters
	py := toRad(pLat) * EarthRadiusMeters

	dx := bx - ax
	dy := by - ay
	if dx == 0 && dy == 0 {
		// a and b are the same point
		return Projection{Distance: math.Hypot(px-ax, py-ay)}
	}
	t := ((px-ax)*dx + (py-ay)*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	projx := ax + t*dx
	projy := ay + t*dy
	return Projection{
		Distance: math.Hypot(px-projx, py-projy),
		T:        t,
		Length:   math.Hypot(dx, dy),
	}
}

// PointToSegmentDistance returns the shortest distance in meters from point p to the line segment ab
func PointToSegmentDistance(pLon, pLat, aLon, aLat, bLon, bLat float64) float64 {
	return ProjectOnSegment(pLon, pLat, aLon, aLat, bLon, bLat).Distance
}

// MetersToDegrees converts a distance around lat into lon/lat degree deltas
func MetersToDegrees(lat, meters float64) (dLon, dLat float64) {
	latRad := lat * math.Pi / 180.0
	metersPerDegreeLat := EarthRadiusMeters * math.Pi / 180.0
	metersPerDegreeLon := metersPerDegreeLat * math.Cos(latRad)
	return meters / metersPerDegreeLon, meters / metersPerDegreeLat
}
