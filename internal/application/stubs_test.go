package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// reservationStoreStub is an in-memory ReservationStore that records calls
// and can be told to fail at any step.
type reservationStoreStub struct {
	mu    sync.Mutex
	dates map[string]DateEntry
	rooms map[string]RoomEntry
	rows  []NewReservation
	calls []string

	findErr       error
	findDateErr   error
	insertDateErr error
	findRoomErr   error
	insertRoomErr error
	insertErr     error
	deleteErr     error

	// afterFind runs after FindReservations has computed its result and
	// released the lock.
	afterFind func()
	// afterInsertRoom runs after a successful InsertRoom, outside the lock.
	afterInsertRoom func()
}

func newReservationStoreStub() *reservationStoreStub {
	return &reservationStoreStub{
		dates: make(map[string]DateEntry),
		rooms: make(map[string]RoomEntry),
	}
}

func (s *reservationStoreStub) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *reservationStoreStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *reservationStoreStub) rowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *reservationStoreStub) FindReservations(ctx context.Context, query ReservationQuery) ([]Reservation, error) {
	s.mu.Lock()
	s.record("FindReservations")
	if s.findErr != nil {
		s.mu.Unlock()
		return nil, s.findErr
	}

	rooms := make(map[string]bool, len(query.Rooms))
	for _, room := range query.Rooms {
		rooms[room] = true
	}

	var out []Reservation
	for _, row := range s.rows {
		res := s.joinLocked(row)
		if query.Date != "" && res.Date != query.Date {
			continue
		}
		if query.From != "" && res.Date < query.From {
			continue
		}
		if query.To != "" && res.Date > query.To {
			continue
		}
		if len(rooms) > 0 && !rooms[res.Room] {
			continue
		}
		if query.TimeBlock != "" && res.TimeBlock != query.TimeBlock {
			continue
		}
		out = append(out, res)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	s.mu.Unlock()

	if s.afterFind != nil {
		s.afterFind()
	}
	return out, nil
}

func (s *reservationStoreStub) joinLocked(row NewReservation) Reservation {
	res := Reservation{ID: row.ID, TimeBlock: row.TimeBlock, Owner: row.Owner, CreatedAt: row.CreatedAt}
	for _, d := range s.dates {
		if d.ID == row.DateID {
			res.Date = d.Date
		}
	}
	for _, r := range s.rooms {
		if r.ID == row.RoomID {
			res.Room = r.Name
		}
	}
	return res
}

func (s *reservationStoreStub) FindDate(ctx context.Context, date string) (DateEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindDate")
	if s.findDateErr != nil {
		return DateEntry{}, s.findDateErr
	}
	entry, ok := s.dates[date]
	if !ok {
		return DateEntry{}, ErrNotFound
	}
	return entry, nil
}

func (s *reservationStoreStub) InsertDate(ctx context.Context, entry DateEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("InsertDate")
	if s.insertDateErr != nil {
		return s.insertDateErr
	}
	if _, ok := s.dates[entry.Date]; ok {
		return ErrAlreadyExists
	}
	s.dates[entry.Date] = entry
	return nil
}

func (s *reservationStoreStub) FindRoom(ctx context.Context, name string) (RoomEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindRoom")
	if s.findRoomErr != nil {
		return RoomEntry{}, s.findRoomErr
	}
	entry, ok := s.rooms[name]
	if !ok {
		return RoomEntry{}, ErrNotFound
	}
	return entry, nil
}

func (s *reservationStoreStub) InsertRoom(ctx context.Context, entry RoomEntry) error {
	s.mu.Lock()
	s.record("InsertRoom")
	if s.insertRoomErr != nil {
		s.mu.Unlock()
		return s.insertRoomErr
	}
	if _, ok := s.rooms[entry.Name]; ok {
		s.mu.Unlock()
		return ErrAlreadyExists
	}
	s.rooms[entry.Name] = entry
	s.mu.Unlock()

	if s.afterInsertRoom != nil {
		s.afterInsertRoom()
	}
	return nil
}

// InsertReservation rejects rows whose date or room is not registered, the way
// the foreign keys of a real backend do.
func (s *reservationStoreStub) InsertReservation(ctx context.Context, reservation NewReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("InsertReservation")
	if s.insertErr != nil {
		return s.insertErr
	}
	if !s.hasDateLocked(reservation.DateID) || !s.hasRoomLocked(reservation.RoomID) {
		return ErrMissingReference
	}
	s.rows = append(s.rows, reservation)
	return nil
}

func (s *reservationStoreStub) hasDateLocked(id string) bool {
	for _, d := range s.dates {
		if d.ID == id {
			return true
		}
	}
	return false
}

func (s *reservationStoreStub) hasRoomLocked(id string) bool {
	for _, r := range s.rooms {
		if r.ID == id {
			return true
		}
	}
	return false
}

// purgeUnreferenced drops every date and room no reservation points at.
func (s *reservationStoreStub) purgeUnreferenced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	dates := make(map[string]bool)
	rooms := make(map[string]bool)
	for _, row := range s.rows {
		dates[row.DateID] = true
		rooms[row.RoomID] = true
	}
	for key, d := range s.dates {
		if !dates[d.ID] {
			delete(s.dates, key)
		}
	}
	for key, r := range s.rooms {
		if !rooms[r.ID] {
			delete(s.rooms, key)
		}
	}
}

func (s *reservationStoreStub) DeleteReservation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("DeleteReservation")
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i, row := range s.rows {
		if row.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// seed stores a reservation directly, registering its date and room.
func (s *reservationStoreStub) seed(id string, slot Slot, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	date, ok := s.dates[slot.Date]
	if !ok {
		date = DateEntry{ID: "date-" + slot.Date, Date: slot.Date}
		s.dates[slot.Date] = date
	}
	room, ok := s.rooms[slot.Room]
	if !ok {
		room = RoomEntry{ID: "room-" + slot.Room, Name: slot.Room}
		s.rooms[slot.Room] = room
	}
	s.rows = append(s.rows, NewReservation{ID: id, DateID: date.ID, RoomID: room.ID, TimeBlock: slot.TimeBlock, Owner: owner})
}

type flipCounter struct {
	mu    sync.Mutex
	flips int
}

func (f *flipCounter) Flip() {
	f.mu.Lock()
	f.flips++
	f.mu.Unlock()
}

func (f *flipCounter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flips
}

func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedNow() func() time.Time {
	return func() time.Time { return time.Date(2024, 11, 20, 9, 0, 0, 0, time.UTC) }
}
