package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/reservation-engine/internal/persistence"
)

const reservationColumns = `id, kind, owner_id, title, parent_id, correlation_id, rule_text,
	start_date, end_date, start_time, end_time, timezone_id, status, cost, attendees,
	created_at, updated_at`

// GetReservation loads one reservation with its allocations.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)

	reservation, err := scanReservation(row)
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}

	allocations, err := s.loadAllocations(ctx, []string{id})
	if err != nil {
		return persistence.Reservation{}, err
	}
	reservation.Allocations = allocations[id]
	return reservation, nil
}

// SaveReservation inserts a new reservation and its allocations atomically.
func (s *Store) SaveReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" {
		return fmt.Errorf("%w: reservation id is empty", persistence.ErrConstraintViolation)
	}

	return s.withTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO reservations (`+strings.ReplaceAll(reservationColumns, "\n\t", " ")+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			reservation.ID,
			reservation.Kind,
			reservation.OwnerID,
			reservation.Title,
			reservation.ParentID,
			reservation.CorrelationID,
			reservation.RuleText,
			formatDate(reservation.StartDate),
			formatDate(reservation.EndDate),
			formatTime(reservation.StartTime),
			formatTime(reservation.EndTime),
			reservation.TimezoneID,
			reservation.Status,
			reservation.Cost,
			strings.Join(reservation.Attendees, ","),
			reservation.CreatedAt.UTC().Format(time.RFC3339),
			reservation.UpdatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return mapError(err)
		}
		return insertAllocations(tx, reservation.ID, reservation.Allocations)
	})
}

// UpdateReservation rewrites a reservation row and replaces its allocations.
func (s *Store) UpdateReservation(ctx context.Context, reservation persistence.Reservation) error {
	return s.withTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(
			`UPDATE reservations SET kind = ?, owner_id = ?, title = ?, parent_id = ?,
				correlation_id = ?, rule_text = ?, start_date = ?, end_date = ?,
				start_time = ?, end_time = ?, timezone_id = ?, status = ?, cost = ?,
				attendees = ?, updated_at = ?
			 WHERE id = ?`,
			reservation.Kind,
			reservation.OwnerID,
			reservation.Title,
			reservation.ParentID,
			reservation.CorrelationID,
			reservation.RuleText,
			formatDate(reservation.StartDate),
			formatDate(reservation.EndDate),
			formatTime(reservation.StartTime),
			formatTime(reservation.EndTime),
			reservation.TimezoneID,
			reservation.Status,
			reservation.Cost,
			strings.Join(reservation.Attendees, ","),
			reservation.UpdatedAt.UTC().Format(time.RFC3339),
			reservation.ID,
		)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		if _, err := tx.Exec(`DELETE FROM allocations WHERE reservation_id = ?`, reservation.ID); err != nil {
			return mapError(err)
		}
		return insertAllocations(tx, reservation.ID, reservation.Allocations)
	})
}

// ListByParentID returns every occurrence linked under a series anchor,
// ordered by start date.
func (s *Store) ListByParentID(ctx context.Context, parentID string) ([]persistence.Reservation, error) {
	return s.listReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE parent_id = ? ORDER BY start_date, id`,
		parentID)
}

// ListByCorrelationID returns every occurrence linked to an external calendar
// series, ordered by start date.
func (s *Store) ListByCorrelationID(ctx context.Context, correlationID string) ([]persistence.Reservation, error) {
	return s.listReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE correlation_id = ? ORDER BY start_date, id`,
		correlationID)
}

// ListOverlapping returns reservations of the given kind active on a
// calendar day, excluding the ids the caller asked to skip.
func (s *Store) ListOverlapping(ctx context.Context, filter persistence.OverlapFilter) ([]persistence.Reservation, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + reservationColumns + ` FROM reservations WHERE start_date <= ? AND end_date >= ?`)
	args := []any{filter.Date, filter.Date}

	if filter.Kind != "" {
		query.WriteString(` AND kind = ?`)
		args = append(args, filter.Kind)
	}
	if len(filter.Statuses) > 0 {
		query.WriteString(` AND status IN (` + placeholders(len(filter.Statuses)) + `)`)
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if len(filter.ExceptIDs) > 0 {
		query.WriteString(` AND id NOT IN (` + placeholders(len(filter.ExceptIDs)) + `)`)
		for _, id := range filter.ExceptIDs {
			args = append(args, id)
		}
	}
	query.WriteString(` ORDER BY start_date, id`)

	return s.listReservations(ctx, query.String(), args...)
}

func (s *Store) listReservations(ctx context.Context, query string, args ...any) ([]persistence.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	reservations := make([]persistence.Reservation, 0)
	ids := make([]string, 0)
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, mapError(err)
		}
		reservations = append(reservations, reservation)
		ids = append(ids, reservation.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	if len(reservations) == 0 {
		return nil, nil
	}

	allocations, err := s.loadAllocations(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range reservations {
		reservations[i].Allocations = allocations[reservations[i].ID]
	}
	return reservations, nil
}

func (s *Store) loadAllocations(ctx context.Context, reservationIDs []string) (map[string][]persistence.Allocation, error) {
	if len(reservationIDs) == 0 {
		return nil, nil
	}

	args := make([]any, len(reservationIDs))
	for i, id := range reservationIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reservation_id, kind, building_id, floor_id, room_id, resource_id, quantity,
			start_date, end_date, start_time, end_time, timezone_id, status, unit_cost
		 FROM allocations WHERE reservation_id IN (`+placeholders(len(reservationIDs))+`) ORDER BY id`,
		args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make(map[string][]persistence.Allocation)
	for rows.Next() {
		var a persistence.Allocation
		var startDate, endDate, startTime, endTime string
		if err := rows.Scan(&a.ID, &a.ReservationID, &a.Kind, &a.BuildingID, &a.FloorID,
			&a.RoomID, &a.ResourceID, &a.Quantity,
			&startDate, &endDate, &startTime, &endTime,
			&a.TimezoneID, &a.Status, &a.UnitCost); err != nil {
			return nil, mapError(err)
		}
		if a.StartDate, err = parseDate(startDate); err != nil {
			return nil, err
		}
		if a.EndDate, err = parseDate(endDate); err != nil {
			return nil, err
		}
		if a.StartTime, err = parseTime(startTime); err != nil {
			return nil, err
		}
		if a.EndTime, err = parseTime(endTime); err != nil {
			return nil, err
		}
		out[a.ReservationID] = append(out[a.ReservationID], a)
	}
	return out, rows.Err()
}

func insertAllocations(tx *sql.Tx, reservationID string, allocations []persistence.Allocation) error {
	for _, a := range allocations {
		_, err := tx.Exec(
			`INSERT INTO allocations (id, reservation_id, kind, building_id, floor_id, room_id,
				resource_id, quantity, start_date, end_date, start_time, end_time,
				timezone_id, status, unit_cost)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID,
			reservationID,
			a.Kind,
			a.BuildingID,
			a.FloorID,
			a.RoomID,
			a.ResourceID,
			a.Quantity,
			formatDate(a.StartDate),
			formatDate(a.EndDate),
			formatTime(a.StartTime),
			formatTime(a.EndTime),
			a.TimezoneID,
			a.Status,
			a.UnitCost,
		)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var r persistence.Reservation
	var startDate, endDate, startTime, endTime, attendees, createdAt, updatedAt string

	err := row.Scan(&r.ID, &r.Kind, &r.OwnerID, &r.Title, &r.ParentID, &r.CorrelationID,
		&r.RuleText, &startDate, &endDate, &startTime, &endTime, &r.TimezoneID,
		&r.Status, &r.Cost, &attendees, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Reservation{}, err
	}

	if r.StartDate, err = parseDate(startDate); err != nil {
		return persistence.Reservation{}, err
	}
	if r.EndDate, err = parseDate(endDate); err != nil {
		return persistence.Reservation{}, err
	}
	if r.StartTime, err = parseTime(startTime); err != nil {
		return persistence.Reservation{}, err
	}
	if r.EndTime, err = parseTime(endTime); err != nil {
		return persistence.Reservation{}, err
	}
	if attendees != "" {
		r.Attendees = strings.Split(attendees, ",")
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: bad created_at %q: %w", createdAt, err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: bad updated_at %q: %w", updatedAt, err)
	}
	return r, nil
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: bad date %q: %w", value, err)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.TimeOnly)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.TimeOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: bad time %q: %w", value, err)
	}
	// Clock values live on the sentinel date axis.
	return time.Date(1970, time.January, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
