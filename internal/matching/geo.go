package matching

import "math"

const earthRadiusMiles = 3958.8

// HaversineMiles returns the great-circle distance between two points given
// in degrees. Callers must check Location.Valid first.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c
}

// DistanceMiles is HaversineMiles over two locations.
func DistanceMiles(a, b *Location) float64 {
	return HaversineMiles(a.Lat, a.Lng, b.Lat, b.Lng)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

const (
	// milesPerDegreeLat is the approximate length of one degree of latitude.
	milesPerDegreeLat = 69.0
	boundingBoxPad    = 1.1
)

// BoundingBox returns a lat/lng rectangle enclosing every point within
// radiusMiles of center. Stores use it as a coarse pre-filter ahead of the
// exact Haversine check. Longitude bounds widen to the full range near the
// poles and across the antimeridian.
func BoundingBox(center *Location, radiusMiles float64) (minLat, maxLat, minLng, maxLng float64) {
	radiusMiles *= boundingBoxPad
	dLat := radiusMiles / milesPerDegreeLat
	minLat = math.Max(-90, center.Lat-dLat)
	maxLat = math.Min(90, center.Lat+dLat)

	minLng, maxLng = -180, 180
	cosLat := math.Cos(toRadians(center.Lat))
	if cosLat < 1e-6 {
		return
	}
	dLng := radiusMiles / (milesPerDegreeLat * cosLat)
	if center.Lng-dLng < -180 || center.Lng+dLng > 180 {
		return
	}
	return minLat, maxLat, center.Lng - dLng, center.Lng + dLng
}
