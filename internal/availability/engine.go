package availability

import (
	"iter"
	"sort"
	"time"
)

// BusyInterval is a time range marked unavailable, typically sourced from a
// calendar free/busy query. Intervals may overlap and arrive unsorted.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// FreeSlot is a working-hour time range not covered by any busy interval.
type FreeSlot struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the slot.
func (s FreeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// WorkingHours bounds the part of each day that is considered schedulable.
type WorkingHours struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

// DefaultWorkingHours returns the standard 09:00-17:00 working day.
func DefaultWorkingHours() WorkingHours {
	return WorkingHours{StartHour: 9, EndHour: 17}
}

// Window is the date range over which free slots are computed.
type Window struct {
	Start time.Time
	End   time.Time
}

// Schedule computes free slots for a window of days from a set of busy
// intervals. It never fails: an inverted window produces an empty sequence
// and sets the Invalid flag instead of returning an error.
//
// A busy interval is matched to a day by the date of its start only.
// Intervals spanning midnight are not split across days; this is a documented
// approximation of observed calendar behavior.
type Schedule struct {
	window  Window
	busy    []BusyInterval
	hours   WorkingHours
	invalid bool
}

// New builds a Schedule for the given window, busy set, and working hours.
// The busy slice is copied; callers may reuse or mutate their slice afterwards.
func New(window Window, busy []BusyInterval, hours WorkingHours) *Schedule {
	s := &Schedule{
		window: window,
		hours:  hours,
	}

	if window.Start.After(window.End) {
		s.invalid = true
		return s
	}

	s.busy = make([]BusyInterval, 0, len(busy))
	for _, b := range busy {
		// Zero or negative length intervals contribute nothing
		if !b.Start.Before(b.End) {
			continue
		}
		s.busy = append(s.busy, b)
	}

	return s
}

// Invalid reports whether the window was inverted (start after end).
// An invalid schedule yields an empty slot sequence.
func (s *Schedule) Invalid() bool {
	return s.invalid
}

// Slots returns a lazy sequence of free slots, one working-day pass at a time.
// The sequence is finite, deterministic, and restartable: ranging over it a
// second time replays identical output.
func (s *Schedule) Slots() iter.Seq[FreeSlot] {
	return func(yield func(FreeSlot) bool) {
		if s.invalid {
			return
		}

		loc := s.window.Start.Location()
		first := startOfDay(s.window.Start)
		last := startOfDay(s.window.End)

		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			if !s.emitDay(day, loc, yield) {
				return
			}
		}
	}
}

// FreeSlots collects the full slot sequence into a slice.
func (s *Schedule) FreeSlots() []FreeSlot {
	var slots []FreeSlot
	for slot := range s.Slots() {
		slots = append(slots, slot)
	}
	return slots
}

// emitDay runs one sweep over a single calendar day. It clips the day to the
// working-hour bound, walks the day's busy intervals in start order with a
// monotonic cursor, and yields the gaps. Returns false if the consumer stopped.
func (s *Schedule) emitDay(day time.Time, loc *time.Location, yield func(FreeSlot) bool) bool {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(),
		s.hours.StartHour, s.hours.StartMinute, 0, 0, loc)
	dayEnd := time.Date(day.Year(), day.Month(), day.Day(),
		s.hours.EndHour, s.hours.EndMinute, 0, 0, loc)

	if !dayStart.Before(dayEnd) {
		return true
	}

	busy := s.busyForDay(day)

	cursor := dayStart
	for _, b := range busy {
		// Fully outside working hours: ignored
		if !b.End.After(dayStart) || !b.Start.Before(dayEnd) {
			continue
		}

		start := b.Start
		if start.Before(dayStart) {
			start = dayStart
		}
		end := b.End
		if end.After(dayEnd) {
			end = dayEnd
		}

		if cursor.Before(start) {
			if !yield(FreeSlot{Start: cursor, End: start}) {
				return false
			}
		}
		// Monotonic cursor tolerates overlapping intervals without
		// emitting negative-length slots
		if end.After(cursor) {
			cursor = end
		}
	}

	if cursor.Before(dayEnd) {
		if !yield(FreeSlot{Start: cursor, End: dayEnd}) {
			return false
		}
	}

	return true
}

// busyForDay selects intervals whose start date matches the given day and
// returns them sorted by start ascending.
func (s *Schedule) busyForDay(day time.Time) []BusyInterval {
	var out []BusyInterval
	for _, b := range s.busy {
		if sameDate(b.Start, day) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
