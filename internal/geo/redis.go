package geo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yemeli/swiftride/pkg/common"
	"github.com/yemeli/swiftride/pkg/models"
	redisClient "github.com/yemeli/swiftride/pkg/redis"
)

const (
	geoSetKey        = "drivers:geo"
	driverMetaPrefix = "drivers:meta:"
	driverMetaTTL    = 10 * time.Minute

	// Geo queries over-fetch so that unavailable drivers filtered out
	// afterwards do not shrink the result below limit
	overfetchFactor = 4
)

// RedisIndex is the production Index backed by a Redis geo set plus a
// per-driver metadata hash. Positions expire with the metadata, so a
// driver that stops reporting drops out of matching on its own.
type RedisIndex struct {
	redis *redisClient.Client
}

// NewRedisIndex creates an index on the given Redis client
func NewRedisIndex(rc *redisClient.Client) *RedisIndex {
	return &RedisIndex{redis: rc}
}

func metaKey(driverID uuid.UUID) string {
	return driverMetaPrefix + driverID.String()
}

func (r *RedisIndex) UpsertPosition(ctx context.Context, driverID uuid.UUID, point models.GeoPoint, speedKmh float64) error {
	if !point.Valid() {
		return common.NewBadRequestError("coordinates out of range", nil).WithCode("INVALID_LOCATION")
	}

	pipe := r.redis.TxPipeline()
	pipe.GeoAdd(ctx, geoSetKey, &redis.GeoLocation{
		Name:      driverID.String(),
		Longitude: point.Lon(),
		Latitude:  point.Lat(),
	})
	pipe.HSet(ctx, metaKey(driverID), map[string]interface{}{
		"speed_kmh":  speedKmh,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.HSetNX(ctx, metaKey(driverID), "available", "0")
	pipe.HSetNX(ctx, metaKey(driverID), "active", "1")
	pipe.Expire(ctx, metaKey(driverID), driverMetaTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert driver position: %w", err)
	}
	return nil
}

func (r *RedisIndex) SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error {
	return r.setFlag(ctx, driverID, "available", available)
}

func (r *RedisIndex) SetActive(ctx context.Context, driverID uuid.UUID, active bool) error {
	return r.setFlag(ctx, driverID, "active", active)
}

func (r *RedisIndex) setFlag(ctx context.Context, driverID uuid.UUID, field string, value bool) error {
	exists, err := r.redis.Exists(ctx, metaKey(driverID))
	if err != nil {
		return fmt.Errorf("check driver metadata: %w", err)
	}
	if !exists {
		return common.NewNotFoundError("driver has not reported a location").WithCode("DRIVER_NOT_FOUND")
	}

	v := "0"
	if value {
		v = "1"
	}
	if err := r.redis.HSet(ctx, metaKey(driverID), field, v).Err(); err != nil {
		return fmt.Errorf("set driver %s: %w", field, err)
	}
	return nil
}

func (r *RedisIndex) Position(ctx context.Context, driverID uuid.UUID) (*DriverPosition, error) {
	locs, err := r.redis.GeoPos(ctx, geoSetKey, driverID.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("geo pos: %w", err)
	}
	if len(locs) == 0 || locs[0] == nil {
		return nil, common.NewNotFoundError("driver has not reported a location").WithCode("DRIVER_NOT_FOUND")
	}

	meta, err := r.redis.HGetAll(ctx, metaKey(driverID)).Result()
	if err != nil {
		return nil, fmt.Errorf("driver metadata: %w", err)
	}
	if len(meta) == 0 {
		return nil, common.NewNotFoundError("driver location expired").WithCode("DRIVER_NOT_FOUND")
	}

	pos := &DriverPosition{
		DriverID:  driverID,
		Point:     models.GeoPoint{locs[0].Longitude, locs[0].Latitude},
		Available: meta["available"] == "1",
		Active:    meta["active"] == "1",
	}
	if s, err := strconv.ParseFloat(meta["speed_kmh"], 64); err == nil {
		pos.SpeedKmh = s
	}
	if t, err := time.Parse(time.RFC3339Nano, meta["updated_at"]); err == nil {
		pos.UpdatedAt = t
	}
	return pos, nil
}

func (r *RedisIndex) Nearby(ctx context.Context, point models.GeoPoint, radiusMeters float64, limit int) ([]Candidate, error) {
	if !point.Valid() {
		return nil, common.NewBadRequestError("coordinates out of range", nil).WithCode("INVALID_LOCATION")
	}
	if limit <= 0 {
		return []Candidate{}, nil
	}

	locs, err := r.redis.GeoSearchLocation(ctx, geoSetKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  point.Lon(),
			Latitude:   point.Lat(),
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit * overfetchFactor,
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}

	candidates := make([]Candidate, 0, limit)
	for _, loc := range locs {
		driverID, err := uuid.Parse(loc.Name)
		if err != nil {
			continue
		}

		meta, err := r.redis.HMGet(ctx, metaKey(driverID), "available", "active").Result()
		if err != nil {
			return nil, fmt.Errorf("driver metadata: %w", err)
		}
		// Expired metadata means a stale geo entry; skip and let the
		// next position report re-add the driver.
		if meta[0] != "1" || meta[1] != "1" {
			continue
		}

		candidates = append(candidates, Candidate{DriverID: driverID, DistanceKm: loc.Dist / 1000})
		if len(candidates) == limit {
			break
		}
	}
	return candidates, nil
}

func (r *RedisIndex) Remove(ctx context.Context, driverID uuid.UUID) error {
	pipe := r.redis.TxPipeline()
	pipe.ZRem(ctx, geoSetKey, driverID.String())
	pipe.Del(ctx, metaKey(driverID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove driver: %w", err)
	}
	return nil
}
