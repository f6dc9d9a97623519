// Package geo provides great-circle distance and the spatial grid used by
// the allocator's declustering policy. Coordinates are WGS84 lat/lon.
package geo

import "math"

const earthRadiusMiles = 3958.8

// HaversineMiles returns the great-circle distance in miles between two
// lat/lon points.
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
