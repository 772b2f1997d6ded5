package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// MaintenanceRepository removes rows left behind by partial writes.
type MaintenanceRepository struct {
	pool *ConnectionPool
}

// NewMaintenanceRepository creates a MaintenanceRepository on pool.
func NewMaintenanceRepository(pool *ConnectionPool) *MaintenanceRepository {
	return &MaintenanceRepository{pool: pool}
}

// PurgeOrphans deletes dates and rooms created before cutoff that no
// reservation references.
func (r *MaintenanceRepository) PurgeOrphans(ctx context.Context, cutoff time.Time) (persistence.PurgeResult, error) {
	var result persistence.PurgeResult

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		dates, err := purgeTable(ctx, tx, "dates", "date_id", cutoff)
		if err != nil {
			return err
		}
		rooms, err := purgeTable(ctx, tx, "rooms", "room_id", cutoff)
		if err != nil {
			return err
		}
		result = persistence.PurgeResult{Dates: dates, Rooms: rooms}
		return nil
	})
	if err != nil {
		return persistence.PurgeResult{}, err
	}
	return result, nil
}

// purgeTable compares created_at in Go: the column holds RFC 3339 text with a
// variable-width fraction, which does not sort lexically.
func purgeTable(ctx context.Context, tx *sql.Tx, table, column string, cutoff time.Time) (int, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, created_at FROM %s WHERE id NOT IN (SELECT %s FROM room_schedule)`, table, column))
	if err != nil {
		return 0, mapError(err)
	}

	var stale []string
	for rows.Next() {
		var id, createdAt string
		if err := rows.Scan(&id, &createdAt); err != nil {
			_ = rows.Close()
			return 0, mapError(err)
		}
		created, err := parseTime(createdAt)
		if err != nil {
			_ = rows.Close()
			return 0, err
		}
		if created.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, mapError(err)
	}
	if err := rows.Err(); err != nil {
		return 0, mapError(err)
	}

	deleteQuery := fmt.Sprintf(
		`DELETE FROM %s WHERE id = ? AND id NOT IN (SELECT %s FROM room_schedule)`, table, column)
	removed := 0
	for _, id := range stale {
		res, err := tx.ExecContext(ctx, deleteQuery, id)
		if err != nil {
			return removed, mapError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, fmt.Errorf("sqlite: rows affected: %w", err)
		}
		removed += int(n)
	}
	return removed, nil
}
