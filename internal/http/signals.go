package http

import (
	"sync"
	"time"

	"github.com/example/room-booking/internal/application"
)

// DefaultSignalIdle is how long an untouched session signal is kept.
const DefaultSignalIdle = 24 * time.Hour

// SignalRegistry holds one change signal per browser session. Signals are
// never shared between sessions.
type SignalRegistry struct {
	mu        sync.Mutex
	entries   map[string]*signalEntry
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type signalEntry struct {
	signal   *application.ChangeSignal
	lastSeen time.Time
	watchers int
}

// NewSignalRegistry returns a registry that drops signals untouched for idle.
// A non-positive idle uses DefaultSignalIdle.
func NewSignalRegistry(idle time.Duration, now func() time.Time) *SignalRegistry {
	if idle <= 0 {
		idle = DefaultSignalIdle
	}
	if now == nil {
		now = time.Now
	}
	return &SignalRegistry{
		entries: make(map[string]*signalEntry),
		idle:    idle,
		now:     now,
	}
}

// For returns the signal of a session, creating it on first use.
func (s *SignalRegistry) For(sessionID string) *application.ChangeSignal {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	entry, ok := s.entries[sessionID]
	if !ok {
		entry = &signalEntry{signal: application.NewChangeSignal()}
		s.entries[sessionID] = entry
	}
	entry.lastSeen = now
	return entry.signal
}

// Watch returns the session signal and marks it in use until release is called.
// Watched signals are never swept.
func (s *SignalRegistry) Watch(sessionID string) (*application.ChangeSignal, func()) {
	signal := s.For(sessionID)

	s.mu.Lock()
	entry := s.entries[sessionID]
	entry.watchers++
	s.mu.Unlock()

	var once sync.Once
	return signal, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			entry.watchers--
			entry.lastSeen = s.now()
		})
	}
}

// Len reports the number of live session signals.
func (s *SignalRegistry) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *SignalRegistry) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.idle/4 {
		return
	}
	s.lastSweep = now
	for id, entry := range s.entries {
		if entry.watchers == 0 && now.Sub(entry.lastSeen) > s.idle {
			delete(s.entries, id)
		}
	}
}
