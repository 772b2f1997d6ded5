package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// RoomRepository reads and registers rows of the rooms table.
type RoomRepository struct {
	pool *ConnectionPool
}

// NewRoomRepository creates a RoomRepository on pool.
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

// FindRoom returns the room with the given name.
func (r *RoomRepository) FindRoom(ctx context.Context, name string) (persistence.RoomRow, error) {
	if strings.TrimSpace(name) == "" {
		return persistence.RoomRow{}, persistence.ErrNotFound
	}

	var (
		row       persistence.RoomRow
		createdAt string
	)
	err := r.pool.DB().QueryRowContext(ctx,
		`SELECT id, room_name, created_at FROM rooms WHERE room_name = ?`, name,
	).Scan(&row.ID, &row.RoomName, &createdAt)
	if err != nil {
		return persistence.RoomRow{}, mapError(err)
	}

	if row.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.RoomRow{}, err
	}
	return row, nil
}

// InsertRoom registers a room. A second row with the same name yields
// persistence.ErrDuplicate.
func (r *RoomRepository) InsertRoom(ctx context.Context, row persistence.RoomRow) error {
	if row.ID == "" || strings.TrimSpace(row.RoomName) == "" {
		return persistence.ErrConstraintViolation
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	_, err := r.pool.DB().ExecContext(ctx,
		`INSERT INTO rooms (id, room_name, created_at) VALUES (?, ?, ?)`,
		row.ID, row.RoomName, formatTime(row.CreatedAt),
	)
	return mapError(err)
}

// DateRepository reads and registers rows of the dates table.
type DateRepository struct {
	pool *ConnectionPool
}

// NewDateRepository creates a DateRepository on pool.
func NewDateRepository(pool *ConnectionPool) *DateRepository {
	return &DateRepository{pool: pool}
}

// FindDate returns the date row labelled date.
func (r *DateRepository) FindDate(ctx context.Context, date string) (persistence.DateRow, error) {
	if strings.TrimSpace(date) == "" {
		return persistence.DateRow{}, persistence.ErrNotFound
	}

	var (
		row       persistence.DateRow
		createdAt string
	)
	err := r.pool.DB().QueryRowContext(ctx,
		`SELECT id, date, created_at FROM dates WHERE date = ?`, date,
	).Scan(&row.ID, &row.Date, &createdAt)
	if err != nil {
		return persistence.DateRow{}, mapError(err)
	}

	if row.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.DateRow{}, err
	}
	return row, nil
}

// InsertDate registers a date.
func (r *DateRepository) InsertDate(ctx context.Context, row persistence.DateRow) error {
	if row.ID == "" || strings.TrimSpace(row.Date) == "" {
		return persistence.ErrConstraintViolation
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	_, err := r.pool.DB().ExecContext(ctx,
		`INSERT INTO dates (id, date, created_at) VALUES (?, ?, ?)`,
		row.ID, row.Date, formatTime(row.CreatedAt),
	)
	return mapError(err)
}
