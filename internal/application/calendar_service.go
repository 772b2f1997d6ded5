package application

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// CalendarSettings fixes the rooms and window shown by the calendar.
type CalendarSettings struct {
	Rooms     []string
	WeekStart time.Weekday
	// Window pins the calendar to fixed dates. A zero Window follows the
	// reference date: four weeks from the start of its week.
	Window   Window
	Location *time.Location
}

// CalendarService reads reservations for the calendar view.
type CalendarService struct {
	reader   ReservationReader
	settings CalendarSettings
	now      func() time.Time
	logger   *slog.Logger
}

// NewCalendarService constructs a calendar service with the provided dependencies.
func NewCalendarService(reader ReservationReader, settings CalendarSettings, now func() time.Time) *CalendarService {
	return NewCalendarServiceWithLogger(reader, settings, now, nil)
}

// NewCalendarServiceWithLogger constructs a calendar service with a specified logger.
func NewCalendarServiceWithLogger(reader ReservationReader, settings CalendarSettings, now func() time.Time, logger *slog.Logger) *CalendarService {
	if now == nil {
		now = time.Now
	}
	if settings.Location == nil {
		settings.Location = time.Local
	}
	return &CalendarService{reader: reader, settings: settings, now: now, logger: defaultLogger(logger)}
}

func (s *CalendarService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CalendarService", operation, attrs...)
}

// Settings returns the configured calendar settings.
func (s *CalendarService) Settings() CalendarSettings {
	return s.settings
}

// Today returns the current date in the configured location.
func (s *CalendarService) Today() time.Time {
	return s.now().In(s.settings.Location)
}

// LoadWindow reads every reservation dated within window for rooms with a
// single store call. The returned sequence yields the reservations on its
// first iteration only; later iterations yield nothing.
func (s *CalendarService) LoadWindow(ctx context.Context, window Window, rooms []string) (seq iter.Seq[Reservation], err error) {
	if s == nil {
		err = fmt.Errorf("CalendarService is nil")
		return
	}

	logger := s.loggerWith(ctx, "LoadWindow",
		"window_start", window.Start,
		"window_end", window.End,
		"rooms", strings.Join(rooms, ","),
	)

	var count int
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to load calendar window", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "calendar window loaded", "reservations", count)
	}()

	if vErr := validateWindow(window, rooms); vErr.HasErrors() {
		err = vErr
		return
	}
	if s.reader == nil {
		err = fmt.Errorf("reservation reader not configured")
		return
	}

	var reservations []Reservation
	reservations, err = s.reader.FindReservations(ctx, ReservationQuery{
		From:  window.Start,
		To:    window.End,
		Rooms: rooms,
	})
	if err != nil {
		err = &LookupError{Op: "load_window", Err: err}
		return
	}

	count = len(reservations)
	seq = yieldOnce(reservations)
	return
}

// Month loads the configured rooms and groups them into a grid around reference.
func (s *CalendarService) Month(ctx context.Context, reference time.Time) (Grid, error) {
	if s == nil {
		return Grid{}, fmt.Errorf("CalendarService is nil")
	}

	reference = reference.In(s.settings.Location)
	window := s.WindowFor(reference)

	seq, err := s.LoadWindow(ctx, window, s.settings.Rooms)
	if err != nil {
		return Grid{}, err
	}
	return BuildGrid(reference, s.settings.WeekStart, seq), nil
}

// WindowFor returns the fixed window when configured, otherwise the four
// weeks starting at the week containing reference.
func (s *CalendarService) WindowFor(reference time.Time) Window {
	if s.settings.Window.Start != "" && s.settings.Window.End != "" {
		return s.settings.Window
	}
	start := StartOfWeek(reference, s.settings.WeekStart)
	return Window{
		Start: start.Format(DateLayout),
		End:   start.AddDate(0, 0, GridDays-1).Format(DateLayout),
	}
}

func validateWindow(window Window, rooms []string) *ValidationError {
	vErr := &ValidationError{}

	start, startErr := time.Parse(DateLayout, strings.TrimSpace(window.Start))
	if startErr != nil {
		vErr.add("window_start", "window start must use the YYYY-MM-DD format")
	}
	end, endErr := time.Parse(DateLayout, strings.TrimSpace(window.End))
	if endErr != nil {
		vErr.add("window_end", "window end must use the YYYY-MM-DD format")
	}
	if startErr == nil && endErr == nil && end.Before(start) {
		vErr.add("window_end", "window end must not be before window start")
	}

	if len(rooms) == 0 {
		vErr.add("rooms", "at least one room is required")
	}
	for _, room := range rooms {
		if strings.TrimSpace(room) == "" {
			vErr.add("rooms", "room names must not be blank")
			break
		}
	}
	return vErr
}

func yieldOnce(reservations []Reservation) iter.Seq[Reservation] {
	var consumed atomic.Bool
	return func(yield func(Reservation) bool) {
		if consumed.Swap(true) {
			return
		}
		for _, reservation := range reservations {
			if !yield(reservation) {
				return
			}
		}
	}
}
