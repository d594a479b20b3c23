package sqlite

import (
	"context"

	"github.com/example/reservation-engine/internal/persistence"
)

// GetBuilding resolves one building catalog entry.
func (s *Store) GetBuilding(ctx context.Context, id string) (persistence.Building, error) {
	var b persistence.Building
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, timezone_id FROM buildings WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.TimezoneID)
	if err != nil {
		return persistence.Building{}, mapError(err)
	}
	return b, nil
}

// TimezoneID resolves the zone of a building, implementing the timezone
// converter's building directory.
func (s *Store) TimezoneID(ctx context.Context, buildingID string) (string, error) {
	building, err := s.GetBuilding(ctx, buildingID)
	if err != nil {
		return "", err
	}
	return building.TimezoneID, nil
}

// SaveBuilding inserts or replaces a building catalog entry.
func (s *Store) SaveBuilding(ctx context.Context, building persistence.Building) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO buildings (id, name, timezone_id) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, timezone_id = excluded.timezone_id`,
		building.ID, building.Name, building.TimezoneID)
	return mapError(err)
}

// ListResources returns the bookable catalog entries of one kind, ordered by
// building then name.
func (s *Store) ListResources(ctx context.Context, kind string) ([]persistence.Resource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, building_id, floor_id, name, capacity, unit_cost
		 FROM resources WHERE kind = ? ORDER BY building_id, name`, kind)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	resources := make([]persistence.Resource, 0)
	for rows.Next() {
		var r persistence.Resource
		if err := rows.Scan(&r.ID, &r.Kind, &r.BuildingID, &r.FloorID, &r.Name,
			&r.Capacity, &r.UnitCost); err != nil {
			return nil, mapError(err)
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

// SaveResource inserts or replaces a resource catalog entry.
func (s *Store) SaveResource(ctx context.Context, resource persistence.Resource) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resources (id, kind, building_id, floor_id, name, capacity, unit_cost)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind, building_id = excluded.building_id,
			floor_id = excluded.floor_id, name = excluded.name,
			capacity = excluded.capacity, unit_cost = excluded.unit_cost`,
		resource.ID, resource.Kind, resource.BuildingID, resource.FloorID,
		resource.Name, resource.Capacity, resource.UnitCost)
	return mapError(err)
}
