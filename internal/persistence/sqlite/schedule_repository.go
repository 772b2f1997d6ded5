package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

const reservationSelect = `
	SELECT rs.id, d.date, r.room_name, rs.time_block, rs.owner, rs.created_at
	FROM room_schedule rs
	JOIN dates d ON d.id = rs.date_id
	JOIN rooms r ON r.id = rs.room_id`

// ScheduleRepository reads and writes reservation rows in room_schedule.
type ScheduleRepository struct {
	pool *ConnectionPool
}

// NewScheduleRepository creates a ScheduleRepository on pool.
func NewScheduleRepository(pool *ConnectionPool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// FindReservations returns the joined reservations matching filter ordered by
// date, room, time block and creation time.
func (r *ScheduleRepository) FindReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.ReservationView, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Date != "" {
		clauses = append(clauses, "d.date = ?")
		args = append(args, filter.Date)
	}
	if filter.From != "" {
		clauses = append(clauses, "d.date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		clauses = append(clauses, "d.date <= ?")
		args = append(args, filter.To)
	}
	if len(filter.Rooms) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Rooms)), ",")
		clauses = append(clauses, fmt.Sprintf("r.room_name IN (%s)", placeholders))
		for _, room := range filter.Rooms {
			args = append(args, room)
		}
	}
	if filter.TimeBlock != "" {
		clauses = append(clauses, "rs.time_block = ?")
		args = append(args, filter.TimeBlock)
	}

	query := reservationSelect
	if len(clauses) > 0 {
		query += "\n\tWHERE " + strings.Join(clauses, " AND ")
	}
	query += "\n\tORDER BY d.date ASC, r.room_name ASC, rs.time_block ASC, rs.created_at ASC, rs.id ASC"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	views := make([]persistence.ReservationView, 0)
	for rows.Next() {
		view, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return views, nil
}

// InsertSchedule writes a reservation row. Rows sharing a slot are accepted.
func (r *ScheduleRepository) InsertSchedule(ctx context.Context, row persistence.ScheduleRow) error {
	if row.ID == "" || row.DateID == "" || row.RoomID == "" || strings.TrimSpace(row.TimeBlock) == "" {
		return persistence.ErrConstraintViolation
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	var owner sql.NullString
	if row.Owner != nil {
		owner = sql.NullString{String: *row.Owner, Valid: true}
	}

	_, err := r.pool.DB().ExecContext(ctx,
		`INSERT INTO room_schedule (id, date_id, room_id, time_block, owner, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		row.ID, row.DateID, row.RoomID, row.TimeBlock, owner, formatTime(row.CreatedAt),
	)
	return mapError(err)
}

// DeleteSchedule removes a reservation row.
func (r *ScheduleRepository) DeleteSchedule(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM room_schedule WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(scanner rowScanner) (persistence.ReservationView, error) {
	var (
		view      persistence.ReservationView
		owner     sql.NullString
		createdAt string
	)
	if err := scanner.Scan(&view.ID, &view.Date, &view.RoomName, &view.TimeBlock, &owner, &createdAt); err != nil {
		return persistence.ReservationView{}, mapError(err)
	}
	if owner.Valid {
		value := owner.String
		view.Owner = &value
	}

	var err error
	if view.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.ReservationView{}, err
	}
	return view, nil
}
