package application

import (
	"iter"
	"time"
)

// StartOfWeek returns midnight of the first day of the week containing t,
// in t's location.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

// BuildGrid lays out GridDays days starting at the week containing reference
// and files every reservation from seq under the day whose date string it
// matches exactly. Reservations outside the grid are dropped.
func BuildGrid(reference time.Time, weekStart time.Weekday, seq iter.Seq[Reservation]) Grid {
	start := StartOfWeek(reference, weekStart)

	days := make([]DayBucket, GridDays)
	index := make(map[string]int, GridDays)
	for i := range days {
		day := start.AddDate(0, 0, i)
		days[i] = DayBucket{
			Date:         day.Format(DateLayout),
			Weekday:      day.Weekday(),
			Reservations: []Reservation{},
		}
		index[days[i].Date] = i
	}

	if seq != nil {
		for reservation := range seq {
			if i, ok := index[reservation.Date]; ok {
				days[i].Reservations = append(days[i].Reservations, reservation)
			}
		}
	}

	return Grid{
		Window:    Window{Start: days[0].Date, End: days[GridDays-1].Date},
		WeekStart: weekStart,
		Days:      days,
	}
}
