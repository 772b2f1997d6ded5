package persistence

import (
	"context"
	"time"
)

// ReservationFilter narrows reservation queries. Empty fields are ignored.
type ReservationFilter struct {
	Date      string
	From      string
	To        string
	Rooms     []string
	TimeBlock string
}

// ReservationRepository reads and writes the dates, rooms and room_schedule tables.
type ReservationRepository interface {
	FindReservations(ctx context.Context, filter ReservationFilter) ([]ReservationView, error)
	FindDate(ctx context.Context, date string) (DateRow, error)
	InsertDate(ctx context.Context, row DateRow) error
	FindRoom(ctx context.Context, name string) (RoomRow, error)
	InsertRoom(ctx context.Context, row RoomRow) error
	InsertSchedule(ctx context.Context, row ScheduleRow) error
	DeleteSchedule(ctx context.Context, id string) error
}

// IdentityRepository stores apartment credentials.
type IdentityRepository interface {
	FindIdentities(ctx context.Context, apartment string) ([]IdentityRow, error)
	CreateIdentity(ctx context.Context, row IdentityRow) error
}

// MaintenanceRepository removes rows left behind by cancellations and partial writes.
// Only dates and rooms created before cutoff are purged, so rows a toggle has
// just registered survive until its reservation references them.
type MaintenanceRepository interface {
	PurgeOrphans(ctx context.Context, cutoff time.Time) (PurgeResult, error)
}

// Store bundles every repository a backend provides.
type Store interface {
	ReservationRepository
	IdentityRepository
	MaintenanceRepository
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
