package rides

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// DriverCandidate is a driver considered for a dispatch, with the
// signals the scorer weighs
type DriverCandidate struct {
	DriverID       uuid.UUID `json:"driver_id"`
	DistanceKm     float64   `json:"distance_km"`
	Rating         float64   `json:"rating"`
	AcceptanceRate float64   `json:"acceptance_rate"`
	IdleMinutes    float64   `json:"idle_minutes"`
	Score          float64   `json:"score"`
}

// CandidateProvider supplies raw candidates around a pickup point
type CandidateProvider interface {
	GetNearbyDriverCandidates(ctx context.Context, lat, lng float64, radiusKm float64, limit int) ([]*DriverCandidate, error)
}

// MatchingConfig tunes candidate scoring. Weights should sum to 1 but
// the scorer does not enforce it.
type MatchingConfig struct {
	RadiusKm      float64
	MaxCandidates int
	MaxDrivers    int

	DistanceWeight   float64
	RatingWeight     float64
	AcceptanceWeight float64
	IdleWeight       float64

	// Normalization caps: candidates at or past these are scored 0 on
	// distance and 1 on idle time respectively
	MaxDistanceKm  float64
	MaxIdleMinutes float64
}

// DefaultMatchingConfig returns the production tuning
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		RadiusKm:         10,
		MaxCandidates:    50,
		MaxDrivers:       10,
		DistanceWeight:   0.5,
		RatingWeight:     0.2,
		AcceptanceWeight: 0.2,
		IdleWeight:       0.1,
		MaxDistanceKm:    20.0,
		MaxIdleMinutes:   60.0,
	}
}

// Matcher ranks nearby drivers for an offer broadcast. Closer drivers
// score higher, softened by rating, acceptance history and how long
// the driver has been idle.
type Matcher struct {
	cfg      MatchingConfig
	provider CandidateProvider
}

// NewMatcher creates a matcher over the given candidate source
func NewMatcher(cfg MatchingConfig, provider CandidateProvider) *Matcher {
	return &Matcher{cfg: cfg, provider: provider}
}

// FindBestDrivers returns up to MaxDrivers candidates around the
// pickup, best score first. An empty result means no driver qualifies.
func (m *Matcher) FindBestDrivers(ctx context.Context, lat, lng float64) ([]*DriverCandidate, error) {
	candidates, err := m.provider.GetNearbyDriverCandidates(ctx, lat, lng, m.cfg.RadiusKm, m.cfg.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("fetch driver candidates: %w", err)
	}

	for _, c := range candidates {
		c.Score = m.scoreCandidate(c, m.cfg.MaxDistanceKm, m.cfg.MaxIdleMinutes)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})

	if len(candidates) > m.cfg.MaxDrivers {
		candidates = candidates[:m.cfg.MaxDrivers]
	}
	return candidates, nil
}

// scoreCandidate maps each signal into [0,1] and combines them with the
// configured weights
func (m *Matcher) scoreCandidate(c *DriverCandidate, maxDistanceKm, maxIdleMinutes float64) float64 {
	distScore := 1.0 - clamp01(c.DistanceKm/maxDistanceKm)
	ratingScore := clamp01((c.Rating - 1.0) / 4.0)
	acceptScore := clamp01(c.AcceptanceRate)
	idleScore := clamp01(c.IdleMinutes / maxIdleMinutes)

	return m.cfg.DistanceWeight*distScore +
		m.cfg.RatingWeight*ratingScore +
		m.cfg.AcceptanceWeight*acceptScore +
		m.cfg.IdleWeight*idleScore
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
