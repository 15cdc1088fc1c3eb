package rides

import (
	"math"

	"github.com/yemeli/swiftride/pkg/models"
)

// Fare constants in XAF. Duration is estimated from distance at a flat
// city pace rather than a routing engine.
const (
	baseFare      = 500.0
	perKmRate     = 200.0
	perMinuteRate = 10.0
	minutesPerKm  = 3.0
)

// EstimateDurationMin derives a trip duration estimate from distance
func EstimateDurationMin(distanceKm float64) int {
	return int(math.Ceil(distanceKm * minutesPerKm))
}

// CalculateFare computes the fare breakdown for a trip. Pure and
// deterministic: same distance and duration always price the same.
func CalculateFare(distanceKm float64, durationMin int) models.Fare {
	distanceFare := distanceKm * perKmRate
	timeFare := float64(durationMin) * perMinuteRate
	return models.Fare{
		Base:         baseFare,
		DistanceFare: distanceFare,
		TimeFare:     timeFare,
		Total:        baseFare + distanceFare + timeFare,
		Currency:     models.DefaultCurrency,
	}
}

// EstimateFare prices a trip of the given distance, deriving duration
func EstimateFare(distanceKm float64) (models.Fare, int) {
	duration := EstimateDurationMin(distanceKm)
	return CalculateFare(distanceKm, duration), duration
}
