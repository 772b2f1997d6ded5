package persistence

import "time"

// DateRow is a calendar date registered on its first booking.
type DateRow struct {
	ID        string
	Date      string
	CreatedAt time.Time
}

// RoomRow is a bookable room registered on its first booking.
type RoomRow struct {
	ID        string
	RoomName  string
	CreatedAt time.Time
}

// ScheduleRow is a reservation row as written to room_schedule.
type ScheduleRow struct {
	ID        string
	DateID    string
	RoomID    string
	TimeBlock string
	Owner     *string
	CreatedAt time.Time
}

// ReservationView is a room_schedule row joined with its date and room labels.
type ReservationView struct {
	ID        string
	Date      string
	RoomName  string
	TimeBlock string
	Owner     *string
	CreatedAt time.Time
}

// IdentityRow is an apartment login with its hashed PIN.
type IdentityRow struct {
	Apartment string
	PINHash   string
	CreatedAt time.Time
}

// PurgeResult reports how many orphaned rows a maintenance pass removed.
type PurgeResult struct {
	Dates int
	Rooms int
}
