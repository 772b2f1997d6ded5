package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// Storage is a process-local persistence.Store. It keeps the same table
// semantics as the SQL backends, including the absence of a unique key on
// the reservation slot.
type Storage struct {
	mu         sync.RWMutex
	dates      map[string]persistence.DateRow
	rooms      map[string]persistence.RoomRow
	schedules  map[string]persistence.ScheduleRow
	identities map[string]persistence.IdentityRow
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		dates:      make(map[string]persistence.DateRow),
		rooms:      make(map[string]persistence.RoomRow),
		schedules:  make(map[string]persistence.ScheduleRow),
		identities: make(map[string]persistence.IdentityRow),
	}
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error { return nil }

// Migrate is a no-op; the tables exist from construction.
func (s *Storage) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (s *Storage) Close() error { return nil }

// --- ReservationRepository ---

// FindReservations joins schedule rows with their date and room labels.
func (s *Storage) FindReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.ReservationView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make(map[string]struct{}, len(filter.Rooms))
	for _, name := range filter.Rooms {
		rooms[name] = struct{}{}
	}

	views := make([]persistence.ReservationView, 0)
	for _, row := range s.schedules {
		view, ok := s.viewLocked(row)
		if !ok {
			continue
		}
		if filter.Date != "" && view.Date != filter.Date {
			continue
		}
		if filter.From != "" && view.Date < filter.From {
			continue
		}
		if filter.To != "" && view.Date > filter.To {
			continue
		}
		if len(rooms) > 0 {
			if _, ok := rooms[view.RoomName]; !ok {
				continue
			}
		}
		if filter.TimeBlock != "" && view.TimeBlock != filter.TimeBlock {
			continue
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.RoomName != b.RoomName {
			return a.RoomName < b.RoomName
		}
		if a.TimeBlock != b.TimeBlock {
			return a.TimeBlock < b.TimeBlock
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return views, nil
}

// FindDate looks a date row up by its label.
func (s *Storage) FindDate(ctx context.Context, date string) (persistence.DateRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.dates {
		if row.Date == date {
			return row, nil
		}
	}
	return persistence.DateRow{}, persistence.ErrNotFound
}

// InsertDate stores a new date row; the label is unique.
func (s *Storage) InsertDate(ctx context.Context, row persistence.DateRow) error {
	if row.ID == "" || strings.TrimSpace(row.Date) == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dates[row.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.dates {
		if existing.Date == row.Date {
			return persistence.ErrDuplicate
		}
	}
	s.dates[row.ID] = row
	return nil
}

// FindRoom looks a room row up by its name.
func (s *Storage) FindRoom(ctx context.Context, name string) (persistence.RoomRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.rooms {
		if row.RoomName == name {
			return row, nil
		}
	}
	return persistence.RoomRow{}, persistence.ErrNotFound
}

// InsertRoom stores a new room row; the name is unique.
func (s *Storage) InsertRoom(ctx context.Context, row persistence.RoomRow) error {
	if row.ID == "" || strings.TrimSpace(row.RoomName) == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[row.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.rooms {
		if existing.RoomName == row.RoomName {
			return persistence.ErrDuplicate
		}
	}
	s.rooms[row.ID] = row
	return nil
}

// InsertSchedule stores a reservation row. Several rows may share a slot.
func (s *Storage) InsertSchedule(ctx context.Context, row persistence.ScheduleRow) error {
	if row.ID == "" || strings.TrimSpace(row.TimeBlock) == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[row.ID]; ok {
		return persistence.ErrDuplicate
	}
	if _, ok := s.dates[row.DateID]; !ok {
		return fmt.Errorf("memory: date %s does not exist: %w", row.DateID, persistence.ErrConstraintViolation)
	}
	if _, ok := s.rooms[row.RoomID]; !ok {
		return fmt.Errorf("memory: room %s does not exist: %w", row.RoomID, persistence.ErrConstraintViolation)
	}

	s.schedules[row.ID] = cloneSchedule(row)
	return nil
}

// DeleteSchedule removes a reservation row by ID.
func (s *Storage) DeleteSchedule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.schedules, id)
	return nil
}

// --- IdentityRepository ---

// FindIdentities returns the identities registered for an apartment.
func (s *Storage) FindIdentities(ctx context.Context, apartment string) ([]persistence.IdentityRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.identities[apartment]
	if !ok {
		return nil, nil
	}
	return []persistence.IdentityRow{row}, nil
}

// CreateIdentity registers an apartment login.
func (s *Storage) CreateIdentity(ctx context.Context, row persistence.IdentityRow) error {
	if strings.TrimSpace(row.Apartment) == "" || row.PINHash == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[row.Apartment]; ok {
		return persistence.ErrDuplicate
	}
	s.identities[row.Apartment] = row
	return nil
}

// --- MaintenanceRepository ---

// PurgeOrphans deletes date and room rows created before cutoff that no
// reservation references.
func (s *Storage) PurgeOrphans(ctx context.Context, cutoff time.Time) (persistence.PurgeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usedDates := make(map[string]struct{}, len(s.schedules))
	usedRooms := make(map[string]struct{}, len(s.schedules))
	for _, row := range s.schedules {
		usedDates[row.DateID] = struct{}{}
		usedRooms[row.RoomID] = struct{}{}
	}

	var result persistence.PurgeResult
	for id, row := range s.dates {
		if _, ok := usedDates[id]; !ok && row.CreatedAt.Before(cutoff) {
			delete(s.dates, id)
			result.Dates++
		}
	}
	for id, row := range s.rooms {
		if _, ok := usedRooms[id]; !ok && row.CreatedAt.Before(cutoff) {
			delete(s.rooms, id)
			result.Rooms++
		}
	}
	return result, nil
}

// Counts reports the number of rows per table.
func (s *Storage) Counts() (dates, rooms, schedules int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dates), len(s.rooms), len(s.schedules)
}

func (s *Storage) viewLocked(row persistence.ScheduleRow) (persistence.ReservationView, bool) {
	date, ok := s.dates[row.DateID]
	if !ok {
		return persistence.ReservationView{}, false
	}
	room, ok := s.rooms[row.RoomID]
	if !ok {
		return persistence.ReservationView{}, false
	}
	return persistence.ReservationView{
		ID:        row.ID,
		Date:      date.Date,
		RoomName:  room.RoomName,
		TimeBlock: row.TimeBlock,
		Owner:     cloneString(row.Owner),
		CreatedAt: row.CreatedAt,
	}, true
}

func cloneSchedule(row persistence.ScheduleRow) persistence.ScheduleRow {
	row.Owner = cloneString(row.Owner)
	return row
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

var _ persistence.Store = (*Storage)(nil)
