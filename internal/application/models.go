package application

import "time"

// DateLayout is the textual form of calendar dates throughout the service.
const DateLayout = "2006-01-02"

// Slot identifies a bookable unit: one room, one date, one time block.
type Slot struct {
	Date      string
	Room      string
	TimeBlock string
}

// Selection is the caller's current pick in the calendar before it is
// submitted as a Slot.
type Selection struct {
	Date      string
	Room      string
	TimeBlock string
}

// Slot converts the selection into explicit toggle parameters.
func (s Selection) Slot() Slot {
	return Slot{Date: s.Date, Room: s.Room, TimeBlock: s.TimeBlock}
}

// Reservation is a room_schedule row joined with its date and room labels.
// Owner is empty when the stored owner is NULL.
type Reservation struct {
	ID        string
	Date      string
	Room      string
	TimeBlock string
	Owner     string
	CreatedAt time.Time
}

// Slot returns the slot the reservation occupies.
func (r Reservation) Slot() Slot {
	return Slot{Date: r.Date, Room: r.Room, TimeBlock: r.TimeBlock}
}

// DateEntry is a registered calendar date.
type DateEntry struct {
	ID        string
	Date      string
	CreatedAt time.Time
}

// RoomEntry is a registered room.
type RoomEntry struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// NewReservation is the row written when a slot is booked.
type NewReservation struct {
	ID        string
	DateID    string
	RoomID    string
	TimeBlock string
	Owner     string
	CreatedAt time.Time
}

// ReservationQuery narrows a reservation read. Zero fields do not filter.
type ReservationQuery struct {
	Date      string
	From      string
	To        string
	Rooms     []string
	TimeBlock string
}

// Identity is an authenticated resident, named by apartment.
type Identity struct {
	Apartment string
	CreatedAt time.Time
}

// IdentityCredentials pairs an identity with its stored PIN hash.
type IdentityCredentials struct {
	Identity
	PINHash string
}

// Outcome names the result of a toggle.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeRejected  Outcome = "rejected"
)

// Notifier is flipped after a toggle changes stored state so views can refresh.
type Notifier interface {
	Flip()
}

// ToggleParams describes a book-or-cancel request.
type ToggleParams struct {
	Slot     Slot
	Owner    string
	Notifier Notifier
}

// ToggleResult reports what a toggle did. Reservation is the created or
// cancelled row, or the conflicting row when the outcome is rejected.
type ToggleResult struct {
	Outcome     Outcome
	Reservation Reservation
}

// LoginAndToggleParams carries the login modal submission.
type LoginAndToggleParams struct {
	Apartment string
	PIN       string
	Slot      Slot
	Notifier  Notifier
}

// Window is an inclusive range of dates in DateLayout form.
type Window struct {
	Start string
	End   string
}

// DayBucket holds the reservations of one calendar day.
type DayBucket struct {
	Date         string
	Weekday      time.Weekday
	Reservations []Reservation
}

// Grid is a four-week calendar starting on the configured week start.
type Grid struct {
	Window    Window
	WeekStart time.Weekday
	Days      []DayBucket
}

// GridDays is the number of days rendered by BuildGrid.
const GridDays = 28
