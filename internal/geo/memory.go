package geo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yemeli/swiftride/pkg/common"
	"github.com/yemeli/swiftride/pkg/models"
)

// MemoryIndex is an in-process Index for tests and single-node
// deployments. Queries scan all entries, which is fine at the fleet
// sizes a single node serves.
type MemoryIndex struct {
	mu      sync.RWMutex
	drivers map[uuid.UUID]*memoryEntry
	nextSeq uint64
}

type memoryEntry struct {
	pos DriverPosition
	seq uint64 // first-seen order, used as the distance tiebreak
}

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{drivers: make(map[uuid.UUID]*memoryEntry)}
}

func (m *MemoryIndex) UpsertPosition(_ context.Context, driverID uuid.UUID, point models.GeoPoint, speedKmh float64) error {
	if !point.Valid() {
		return common.NewBadRequestError("coordinates out of range", nil).WithCode("INVALID_LOCATION")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.drivers[driverID]
	if !ok {
		m.nextSeq++
		entry = &memoryEntry{
			pos: DriverPosition{DriverID: driverID, Available: false, Active: true},
			seq: m.nextSeq,
		}
		m.drivers[driverID] = entry
	}
	entry.pos.Point = point
	entry.pos.SpeedKmh = speedKmh
	entry.pos.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryIndex) SetAvailability(_ context.Context, driverID uuid.UUID, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.drivers[driverID]
	if !ok {
		return common.NewNotFoundError("driver has not reported a location").WithCode("DRIVER_NOT_FOUND")
	}
	entry.pos.Available = available
	return nil
}

func (m *MemoryIndex) SetActive(_ context.Context, driverID uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.drivers[driverID]
	if !ok {
		return common.NewNotFoundError("driver has not reported a location").WithCode("DRIVER_NOT_FOUND")
	}
	entry.pos.Active = active
	return nil
}

func (m *MemoryIndex) Position(_ context.Context, driverID uuid.UUID) (*DriverPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.drivers[driverID]
	if !ok {
		return nil, common.NewNotFoundError("driver has not reported a location").WithCode("DRIVER_NOT_FOUND")
	}
	pos := entry.pos
	return &pos, nil
}

func (m *MemoryIndex) Nearby(_ context.Context, point models.GeoPoint, radiusMeters float64, limit int) ([]Candidate, error) {
	if !point.Valid() {
		return nil, common.NewBadRequestError("coordinates out of range", nil).WithCode("INVALID_LOCATION")
	}
	if limit <= 0 {
		return []Candidate{}, nil
	}

	type scored struct {
		Candidate
		seq uint64
	}

	m.mu.RLock()
	matches := make([]scored, 0, len(m.drivers))
	for _, entry := range m.drivers {
		if !entry.pos.Available || !entry.pos.Active {
			continue
		}
		d := haversineDistance(point.Lat(), point.Lon(), entry.pos.Point.Lat(), entry.pos.Point.Lon())
		if d*1000 > radiusMeters {
			continue
		}
		matches = append(matches, scored{
			Candidate: Candidate{DriverID: entry.pos.DriverID, DistanceKm: d},
			seq:       entry.seq,
		})
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceKm != matches[j].DistanceKm {
			return matches[i].DistanceKm < matches[j].DistanceKm
		}
		return matches[i].seq < matches[j].seq
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Candidate, len(matches))
	for i, s := range matches {
		out[i] = s.Candidate
	}
	return out, nil
}

func (m *MemoryIndex) Remove(_ context.Context, driverID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, driverID)
	return nil
}
