// Package geo computes great-circle distances between referral locations.
package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

// EarthRadiusMiles is the mean Earth radius.
const EarthRadiusMiles = 3958.8

// Point returns an XY point (x = longitude, y = latitude) with SRID 4326.
func Point(lat, lon float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326)
}

// HaversineMiles returns the great-circle distance between a and b in
// miles. Points carry longitude in X and latitude in Y.
func HaversineMiles(a, b *geom.Point) float64 {
	const rad = math.Pi / 180
	lat1, lat2 := a.Y()*rad, b.Y()*rad
	dLat := lat2 - lat1
	dLon := (b.X() - a.X()) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

// DistancesMiles returns the distance from origin to every (lats[i],
// lons[i]). A nil latitude or longitude yields NaN.
func DistancesMiles(origin *geom.Point, lats, lons []*float64) []float64 {
	out := make([]float64, len(lats))
	for i := range lats {
		if lats[i] == nil || i >= len(lons) || lons[i] == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = HaversineMiles(origin, Point(*lats[i], *lons[i]))
	}
	return out
}
