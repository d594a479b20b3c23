package testfixtures

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/reservation-engine/internal/persistence"
)

// MemoryStore is an in-memory implementation of the persistence repositories
// plus the building timezone directory, for tests that exercise the engine
// without SQLite.
type MemoryStore struct {
	mu           sync.Mutex
	reservations map[string]persistence.Reservation
	buildings    map[string]persistence.Building
	resources    map[string]persistence.Resource

	// FailSaves holds reservation ids whose save or update should fail,
	// mapped to the error to return.
	FailSaves map[string]error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reservations: make(map[string]persistence.Reservation),
		buildings:    make(map[string]persistence.Building),
		resources:    make(map[string]persistence.Resource),
		FailSaves:    make(map[string]error),
	}
}

// Seed inserts reservations directly, bypassing duplicate checks.
func (m *MemoryStore) Seed(reservations ...persistence.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range reservations {
		m.reservations[r.ID] = cloneStored(r)
	}
}

// SeedBuildings inserts building catalog entries.
func (m *MemoryStore) SeedBuildings(buildings ...persistence.Building) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range buildings {
		m.buildings[b.ID] = b
	}
}

// SeedResources inserts resource catalog entries.
func (m *MemoryStore) SeedResources(resources ...persistence.Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range resources {
		m.resources[r.ID] = r
	}
}

// GetReservation implements persistence.ReservationRepository.
func (m *MemoryStore) GetReservation(_ context.Context, id string) (persistence.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return cloneStored(r), nil
}

// SaveReservation implements persistence.ReservationRepository.
func (m *MemoryStore) SaveReservation(_ context.Context, r persistence.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailSaves[r.ID]; err != nil {
		return err
	}
	if _, exists := m.reservations[r.ID]; exists {
		return persistence.ErrDuplicate
	}
	m.reservations[r.ID] = cloneStored(r)
	return nil
}

// UpdateReservation implements persistence.ReservationRepository.
func (m *MemoryStore) UpdateReservation(_ context.Context, r persistence.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailSaves[r.ID]; err != nil {
		return err
	}
	if _, exists := m.reservations[r.ID]; !exists {
		return persistence.ErrNotFound
	}
	m.reservations[r.ID] = cloneStored(r)
	return nil
}

// ListByParentID implements persistence.ReservationRepository.
func (m *MemoryStore) ListByParentID(_ context.Context, parentID string) ([]persistence.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []persistence.Reservation
	for _, r := range m.reservations {
		if r.ParentID == parentID {
			out = append(out, cloneStored(r))
		}
	}
	sortStored(out)
	return out, nil
}

// ListByCorrelationID implements persistence.ReservationRepository.
func (m *MemoryStore) ListByCorrelationID(_ context.Context, correlationID string) ([]persistence.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []persistence.Reservation
	for _, r := range m.reservations {
		if r.CorrelationID == correlationID {
			out = append(out, cloneStored(r))
		}
	}
	sortStored(out)
	return out, nil
}

// ListOverlapping implements persistence.ReservationRepository.
func (m *MemoryStore) ListOverlapping(_ context.Context, filter persistence.OverlapFilter) ([]persistence.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []persistence.Reservation
	for _, r := range m.reservations {
		if filter.Kind != "" && r.Kind != filter.Kind {
			continue
		}
		if filter.Date != "" {
			day := r.StartDate.Format(time.DateOnly)
			endDay := r.EndDate.Format(time.DateOnly)
			if filter.Date < day || filter.Date > endDay {
				continue
			}
		}
		if len(filter.Statuses) > 0 && !containsString(filter.Statuses, r.Status) {
			continue
		}
		if containsString(filter.ExceptIDs, r.ID) {
			continue
		}
		out = append(out, cloneStored(r))
	}
	sortStored(out)
	return out, nil
}

// GetBuilding implements persistence.BuildingRepository.
func (m *MemoryStore) GetBuilding(_ context.Context, id string) (persistence.Building, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buildings[id]
	if !ok {
		return persistence.Building{}, persistence.ErrNotFound
	}
	return b, nil
}

// ListResources implements persistence.ResourceRepository.
func (m *MemoryStore) ListResources(_ context.Context, kind string) ([]persistence.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []persistence.Resource
	for _, r := range m.resources {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TimezoneID implements the building timezone directory.
func (m *MemoryStore) TimezoneID(ctx context.Context, buildingID string) (string, error) {
	b, err := m.GetBuilding(ctx, buildingID)
	if err != nil {
		return "", err
	}
	return b.TimezoneID, nil
}

// Reservation returns the stored record for assertions, or false when absent.
func (m *MemoryStore) Reservation(id string) (persistence.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return persistence.Reservation{}, false
	}
	return cloneStored(r), true
}

// Count returns how many reservation records are stored.
func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations)
}

func cloneStored(r persistence.Reservation) persistence.Reservation {
	clone := r
	clone.Attendees = append([]string(nil), r.Attendees...)
	clone.Allocations = append([]persistence.Allocation(nil), r.Allocations...)
	return clone
}

func sortStored(out []persistence.Reservation) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
