package testfixtures

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
)

var (
	reservationCounter uint64
	labelCounter       uint64
)

var referenceTime = time.Date(2024, time.November, 20, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// It falls on a Wednesday.
func ReferenceTime() time.Time {
	return referenceTime
}

// FastPINParams keeps argon2 cheap in tests. Never use it outside tests.
var FastPINParams = application.PINHashParams{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  8,
	KeyLength:   16,
}

// ------------------------- Reservation fixtures -------------------------

// ReservationFixture is a deterministic reservation that can be seeded into a
// store or compared against application results.
type ReservationFixture struct {
	ID        string
	Date      string
	Room      string
	TimeBlock string
	// Owner is nil for rows written without an owner.
	Owner     *string
	CreatedAt time.Time
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a reservation for room1, 08-12 on the
// reference date, owned by apartment A101, unless overridden.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	owner := "A101"
	fixture := ReservationFixture{
		ID:        fmt.Sprintf("reservation-%03d", idx),
		Date:      referenceTime.Format(application.DateLayout),
		Room:      "room1",
		TimeBlock: "08-12",
		Owner:     &owner,
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the reservation identifier.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) { f.ID = id }
}

// WithSlot places the reservation on a specific date, room and time block.
func WithSlot(date, room, timeBlock string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Date = date
		f.Room = room
		f.TimeBlock = timeBlock
	}
}

// WithOwner sets the owning apartment.
func WithOwner(owner string) ReservationOption {
	return func(f *ReservationFixture) { f.Owner = &owner }
}

// WithoutOwner stores the reservation with a NULL owner.
func WithoutOwner() ReservationOption {
	return func(f *ReservationFixture) { f.Owner = nil }
}

// Slot returns the application slot of the fixture.
func (f ReservationFixture) Slot() application.Slot {
	return application.Slot{Date: f.Date, Room: f.Room, TimeBlock: f.TimeBlock}
}

// Reservation converts the fixture into the application model.
func (f ReservationFixture) Reservation() application.Reservation {
	reservation := application.Reservation{
		ID:        f.ID,
		Date:      f.Date,
		Room:      f.Room,
		TimeBlock: f.TimeBlock,
		CreatedAt: f.CreatedAt,
	}
	if f.Owner != nil {
		reservation.Owner = *f.Owner
	}
	return reservation
}

// SeedReservations writes fixtures through repo, registering dates and rooms
// on first use the same way the booking toggle does.
func SeedReservations(ctx context.Context, tb testing.TB, repo persistence.ReservationRepository, fixtures ...ReservationFixture) {
	tb.Helper()

	for _, fixture := range fixtures {
		dateID := seedDate(ctx, tb, repo, fixture.Date, fixture.CreatedAt)
		roomID := seedRoom(ctx, tb, repo, fixture.Room, fixture.CreatedAt)

		row := persistence.ScheduleRow{
			ID:        fixture.ID,
			DateID:    dateID,
			RoomID:    roomID,
			TimeBlock: fixture.TimeBlock,
			Owner:     fixture.Owner,
			CreatedAt: fixture.CreatedAt,
		}
		if err := repo.InsertSchedule(ctx, row); err != nil {
			tb.Fatalf("failed to seed reservation %s: %v", fixture.ID, err)
		}
	}
}

func seedDate(ctx context.Context, tb testing.TB, repo persistence.ReservationRepository, date string, createdAt time.Time) string {
	tb.Helper()

	existing, err := repo.FindDate(ctx, date)
	if err == nil {
		return existing.ID
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		tb.Fatalf("failed to look up date %s: %v", date, err)
	}

	id := fmt.Sprintf("date-%03d", atomic.AddUint64(&labelCounter, 1))
	if err := repo.InsertDate(ctx, persistence.DateRow{ID: id, Date: date, CreatedAt: createdAt}); err != nil {
		tb.Fatalf("failed to seed date %s: %v", date, err)
	}
	return id
}

func seedRoom(ctx context.Context, tb testing.TB, repo persistence.ReservationRepository, name string, createdAt time.Time) string {
	tb.Helper()

	existing, err := repo.FindRoom(ctx, name)
	if err == nil {
		return existing.ID
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		tb.Fatalf("failed to look up room %s: %v", name, err)
	}

	id := fmt.Sprintf("room-%03d", atomic.AddUint64(&labelCounter, 1))
	if err := repo.InsertRoom(ctx, persistence.RoomRow{ID: id, RoomName: name, CreatedAt: createdAt}); err != nil {
		tb.Fatalf("failed to seed room %s: %v", name, err)
	}
	return id
}

// -------------------------- Identity fixtures ---------------------------

// IdentityFixture is an apartment login with its clear-text PIN kept for tests.
type IdentityFixture struct {
	Apartment string
	PIN       string
	PINHash   string
	CreatedAt time.Time
}

// NewIdentityFixture hashes pin with FastPINParams.
func NewIdentityFixture(tb testing.TB, apartment, pin string) IdentityFixture {
	tb.Helper()

	hash, err := application.HashPINWithParams(pin, FastPINParams)
	if err != nil {
		tb.Fatalf("failed to hash pin: %v", err)
	}
	return IdentityFixture{Apartment: apartment, PIN: pin, PINHash: hash, CreatedAt: referenceTime}
}

// Row converts the fixture into its persistence form.
func (f IdentityFixture) Row() persistence.IdentityRow {
	return persistence.IdentityRow{Apartment: f.Apartment, PINHash: f.PINHash, CreatedAt: f.CreatedAt}
}

// Credentials converts the fixture into the application form.
func (f IdentityFixture) Credentials() application.IdentityCredentials {
	return application.IdentityCredentials{
		Identity: application.Identity{Apartment: f.Apartment, CreatedAt: f.CreatedAt},
		PINHash:  f.PINHash,
	}
}

// SeedIdentities writes identity fixtures through repo.
func SeedIdentities(ctx context.Context, tb testing.TB, repo persistence.IdentityRepository, fixtures ...IdentityFixture) {
	tb.Helper()

	for _, fixture := range fixtures {
		if err := repo.CreateIdentity(ctx, fixture.Row()); err != nil {
			tb.Fatalf("failed to seed identity %s: %v", fixture.Apartment, err)
		}
	}
}
