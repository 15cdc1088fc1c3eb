package geo

import (
	"math"

	"github.com/yemeli/swiftride/pkg/models"
)

const (
	earthRadiusKm = 6371.0

	// City traffic average used when the driver reports no usable speed
	fallbackSpeedKmh  = 25.0
	minUsableSpeedKmh = 3.0
)

// Distance returns the great-circle distance in kilometers between two
// points
func Distance(a, b models.GeoPoint) float64 {
	return haversineDistance(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}

// haversineDistance returns the great-circle distance in kilometers
// between two points given as (lat, lon) degree pairs
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// estimateETAMinutes converts a distance into an arrival estimate.
// Speeds below the usable floor (stationary drivers, GPS jitter) fall
// back to the city average.
func estimateETAMinutes(distanceKm, speedKmh float64) float64 {
	if speedKmh < minUsableSpeedKmh {
		speedKmh = fallbackSpeedKmh
	}
	return (distanceKm / speedKmh) * 60.0
}
