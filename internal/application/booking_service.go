package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ReservationReader reads joined reservation rows.
type ReservationReader interface {
	FindReservations(ctx context.Context, query ReservationQuery) ([]Reservation, error)
}

// ReservationStore captures the persistence operations needed by the toggle.
// Lookups return ErrNotFound when nothing matches, inserts return
// ErrAlreadyExists on a unique key collision, and InsertReservation returns
// ErrMissingReference when its date or room row is gone.
type ReservationStore interface {
	ReservationReader
	FindDate(ctx context.Context, date string) (DateEntry, error)
	InsertDate(ctx context.Context, entry DateEntry) error
	FindRoom(ctx context.Context, name string) (RoomEntry, error)
	InsertRoom(ctx context.Context, entry RoomEntry) error
	InsertReservation(ctx context.Context, reservation NewReservation) error
	DeleteReservation(ctx context.Context, id string) error
}

// BookingService books a free slot or cancels the caller's own reservation.
// It takes no locks: two callers toggling the same free slot at the same
// moment can both create a row.
type BookingService struct {
	store       ReservationStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a booking service with the provided dependencies.
func NewBookingService(store ReservationStore, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(store, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(store ReservationStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{store: store, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// Toggle creates a reservation when the slot is free, cancels it when the
// first matching row belongs to params.Owner, and otherwise reports a
// rejection without touching the store.
func (s *BookingService) Toggle(ctx context.Context, params ToggleParams) (result ToggleResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	slot := normalizeSlot(params.Slot)
	owner := strings.TrimSpace(params.Owner)

	logger := s.loggerWith(ctx, "Toggle",
		"date", slot.Date,
		"room", slot.Room,
		"time_block", slot.TimeBlock,
		"owner", owner,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "toggle failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"outcome", string(result.Outcome),
			"reservation_id", result.Reservation.ID,
		).InfoContext(ctx, "toggle completed")
	}()

	if vErr := validateToggle(slot, owner); vErr.HasErrors() {
		err = vErr
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	var existing []Reservation
	existing, err = s.store.FindReservations(ctx, ReservationQuery{
		Date:      slot.Date,
		Rooms:     []string{slot.Room},
		TimeBlock: slot.TimeBlock,
	})
	if err != nil {
		err = &LookupError{Op: "find_reservations", Err: err}
		return
	}

	switch {
	case len(existing) == 0:
		result.Outcome = OutcomeCreated
		result.Reservation, err = s.create(ctx, slot, owner)
	case existing[0].Owner != owner:
		result = ToggleResult{Outcome: OutcomeRejected, Reservation: existing[0]}
		return
	default:
		result.Outcome = OutcomeCancelled
		result.Reservation = existing[0]
		if derr := s.store.DeleteReservation(ctx, existing[0].ID); derr != nil {
			err = &PersistenceError{Step: "delete_reservation", Err: derr}
		}
	}
	if err != nil {
		result = ToggleResult{}
		return
	}

	if params.Notifier != nil {
		params.Notifier.Flip()
	}
	return
}

// create registers the date and room, then inserts the reservation. When the
// date or room vanishes before the insert (the orphan janitor removed it) both
// are ensured again and the insert is retried once.
func (s *BookingService) create(ctx context.Context, slot Slot, owner string) (Reservation, error) {
	row := NewReservation{TimeBlock: slot.TimeBlock, Owner: owner}

	var (
		date DateEntry
		room RoomEntry
	)
	for attempt := 0; ; attempt++ {
		var err error
		date, err = s.ensureDate(ctx, slot.Date)
		if err != nil {
			return Reservation{}, &PersistenceError{Step: "ensure_date", Err: err}
		}
		room, err = s.ensureRoom(ctx, slot.Room)
		if err != nil {
			return Reservation{}, &PersistenceError{Step: "ensure_room", Err: err}
		}

		if attempt == 0 {
			row.ID, row.CreatedAt = s.idGenerator(), s.now()
		}
		row.DateID, row.RoomID = date.ID, room.ID
		err = s.store.InsertReservation(ctx, row)
		if err == nil {
			break
		}
		if attempt == 0 && errors.Is(err, ErrMissingReference) {
			s.loggerWith(ctx, "Toggle", "date", slot.Date, "room", slot.Room).
				WarnContext(ctx, "date or room removed before insert, retrying", "error", err)
			continue
		}
		return Reservation{}, &PersistenceError{Step: "insert_reservation", Err: err}
	}

	return Reservation{
		ID:        row.ID,
		Date:      date.Date,
		Room:      room.Name,
		TimeBlock: row.TimeBlock,
		Owner:     row.Owner,
		CreatedAt: row.CreatedAt,
	}, nil
}

// ensureDate finds the date row or creates it. A concurrent insert of the
// same label is resolved by reading the winner back.
func (s *BookingService) ensureDate(ctx context.Context, date string) (DateEntry, error) {
	entry, err := s.store.FindDate(ctx, date)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return DateEntry{}, err
	}

	entry = DateEntry{ID: s.idGenerator(), Date: date, CreatedAt: s.now()}
	if err := s.store.InsertDate(ctx, entry); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return s.store.FindDate(ctx, date)
		}
		return DateEntry{}, err
	}
	return entry, nil
}

func (s *BookingService) ensureRoom(ctx context.Context, name string) (RoomEntry, error) {
	entry, err := s.store.FindRoom(ctx, name)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return RoomEntry{}, err
	}

	entry = RoomEntry{ID: s.idGenerator(), Name: name, CreatedAt: s.now()}
	if err := s.store.InsertRoom(ctx, entry); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return s.store.FindRoom(ctx, name)
		}
		return RoomEntry{}, err
	}
	return entry, nil
}

func normalizeSlot(slot Slot) Slot {
	return Slot{
		Date:      strings.TrimSpace(slot.Date),
		Room:      strings.TrimSpace(slot.Room),
		TimeBlock: strings.TrimSpace(slot.TimeBlock),
	}
}

func validateToggle(slot Slot, owner string) *ValidationError {
	vErr := &ValidationError{}
	if slot.Date == "" {
		vErr.add("date", "date is required")
	} else if _, err := time.Parse(DateLayout, slot.Date); err != nil {
		vErr.add("date", "date must use the YYYY-MM-DD format")
	}
	if slot.Room == "" {
		vErr.add("room", "room is required")
	}
	if slot.TimeBlock == "" {
		vErr.add("time_block", "time block is required")
	}
	if owner == "" {
		vErr.add("owner", "owner is required")
	}
	return vErr
}
