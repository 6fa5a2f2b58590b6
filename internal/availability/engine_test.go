package availability

import (
	"testing"
	"time"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

// at returns a time on the base day at the given hour and minute.
func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func singleDayWindow() Window {
	return Window{Start: day, End: day.Add(23 * time.Hour)}
}

func TestNoBusyIntervalsYieldsFullWorkingDay(t *testing.T) {
	s := New(singleDayWindow(), nil, DefaultWorkingHours())

	slots := s.FreeSlots()
	if len(slots) != 1 {
		t.Fatalf("Expected 1 slot, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(9, 0)) || !slots[0].End.Equal(at(17, 0)) {
		t.Errorf("Expected slot 09:00-17:00, got %v-%v", slots[0].Start, slots[0].End)
	}
}

func TestGapsBetweenBusyIntervals(t *testing.T) {
	busy := []BusyInterval{
		{Start: at(10, 0), End: at(11, 0)},
		{Start: at(14, 0), End: at(15, 30)},
	}
	s := New(singleDayWindow(), busy, DefaultWorkingHours())

	slots := s.FreeSlots()
	expected := []FreeSlot{
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(11, 0), End: at(14, 0)},
		{Start: at(15, 30), End: at(17, 0)},
	}

	if len(slots) != len(expected) {
		t.Fatalf("Expected %d slots, got %d: %v", len(expected), len(slots), slots)
	}
	for i, want := range expected {
		if !slots[i].Start.Equal(want.Start) || !slots[i].End.Equal(want.End) {
			t.Errorf("Slot %d: expected %v-%v, got %v-%v",
				i, want.Start, want.End, slots[i].Start, slots[i].End)
		}
	}
}

func TestOverlappingIntervalsCollapse(t *testing.T) {
	// busy 09:00-10:00 and 09:30-11:00 with working hours 09:00-17:00
	// must produce exactly one slot 11:00-17:00
	busy := []BusyInterval{
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(9, 30), End: at(11, 0)},
	}
	s := New(singleDayWindow(), busy, DefaultWorkingHours())

	slots := s.FreeSlots()
	if len(slots) != 1 {
		t.Fatalf("Expected exactly 1 slot, got %d: %v", len(slots), slots)
	}
	if !slots[0].Start.Equal(at(11, 0)) || !slots[0].End.Equal(at(17, 0)) {
		t.Errorf("Expected slot 11:00-17:00, got %v-%v", slots[0].Start, slots[0].End)
	}
}

func TestBusyIntervalCoveringWholeWorkingWindow(t *testing.T) {
	busy := []BusyInterval{{Start: at(9, 0), End: at(17, 0)}}
	s := New(singleDayWindow(), busy, DefaultWorkingHours())

	if slots := s.FreeSlots(); len(slots) != 0 {
		t.Errorf("Expected zero slots for fully busy day, got %v", slots)
	}
}

func TestBusyIntervalOutsideWorkingHoursIgnored(t *testing.T) {
	busy := []BusyInterval{
		{Start: at(6, 0), End: at(8, 0)},
		{Start: at(18, 0), End: at(20, 0)},
	}
	s := New(singleDayWindow(), busy, DefaultWorkingHours())

	slots := s.FreeSlots()
	if len(slots) != 1 {
		t.Fatalf("Expected 1 slot, got %d: %v", len(slots), slots)
	}
	if !slots[0].Start.Equal(at(9, 0)) || !slots[0].End.Equal(at(17, 0)) {
		t.Errorf("Expected full working window, got %v-%v", slots[0].Start, slots[0].End)
	}
}

func TestBusyIntervalStraddlingWorkingBoundsIsClipped(t *testing.T) {
	busy := []BusyInterval{
		{Start: at(7, 0), End: at(10, 0)},
		{Start: at(16, 0), End: at(19, 0)},
	}
	s := New(singleDayWindow(), busy, DefaultWorkingHours())

	slots := s.FreeSlots()
	if len(slots) != 1 {
		t.Fatalf("Expected 1 slot, got %d: %v", len(slots), slots)
	}
	if !slots[0].Start.Equal(at(10, 0)) || !slots[0].End.Equal(at(16, 0)) {
		t.Errorf("Expected slot 10:00-16:00, got %v-%v", slots[0].Start, slots[0].End)
	}
}

func TestInvertedWindow(t *testing.T) {
	s := New(Window{Start: day.AddDate(0, 0, 5), End: day}, nil, DefaultWorkingHours())

	if !s.Invalid() {
		t.Error("Expected Invalid flag for inverted window")
	}
	if slots := s.FreeSlots(); len(slots) != 0 {
		t.Errorf("Expected empty sequence for inverted window, got %v", slots)
	}
}

func TestMultiDayWindow(t *testing.T) {
	window := Window{Start: day, End: day.AddDate(0, 0, 2)}
	busy := []BusyInterval{
		// Day two fully booked
		{Start: day.AddDate(0, 0, 1).Add(9 * time.Hour), End: day.AddDate(0, 0, 1).Add(17 * time.Hour)},
	}
	s := New(window, busy, DefaultWorkingHours())

	slots := s.FreeSlots()
	if len(slots) != 2 {
		t.Fatalf("Expected 2 slots (day 1 and day 3), got %d: %v", len(slots), slots)
	}
	if slots[0].Start.Day() != 10 || slots[1].Start.Day() != 12 {
		t.Errorf("Expected slots on days 10 and 12, got days %d and %d",
			slots[0].Start.Day(), slots[1].Start.Day())
	}
}

func TestMidnightSpanningIntervalMatchedByStartDate(t *testing.T) {
	// An interval starting 22:00 on day one and ending 10:00 on day two is
	// matched to day one only; day two's morning stays free.
	window := Window{Start: day, End: day.AddDate(0, 0, 1)}
	busy := []BusyInterval{
		{Start: at(22, 0), End: day.AddDate(0, 0, 1).Add(10 * time.Hour)},
	}
	s := New(window, busy, DefaultWorkingHours())

	slots := s.FreeSlots()
	if len(slots) != 2 {
		t.Fatalf("Expected 2 slots, got %d: %v", len(slots), slots)
	}
	// Day one: interval is outside its working hours, so the full window is free
	if !slots[0].Start.Equal(at(9, 0)) || !slots[0].End.Equal(at(17, 0)) {
		t.Errorf("Day one: expected 09:00-17:00, got %v-%v", slots[0].Start, slots[0].End)
	}
	// Day two: the spanning interval is not re-matched, morning remains free
	wantStart := day.AddDate(0, 0, 1).Add(9 * time.Hour)
	if !slots[1].Start.Equal(wantStart) {
		t.Errorf("Day two: expected start %v, got %v", wantStart, slots[1].Start)
	}
}

func TestIdempotentAndRestartable(t *testing.T) {
	busy := []BusyInterval{
		{Start: at(12, 0), End: at(13, 0)},
		{Start: at(10, 0), End: at(10, 30)},
	}
	s := New(singleDayWindow(), busy, DefaultWorkingHours())

	first := s.FreeSlots()
	second := s.FreeSlots()

	if len(first) != len(second) {
		t.Fatalf("Expected identical output across runs, got %d vs %d slots", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Errorf("Slot %d differs between runs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestLazySequenceEarlyStop(t *testing.T) {
	window := Window{Start: day, End: day.AddDate(0, 0, 30)}
	s := New(window, nil, DefaultWorkingHours())

	count := 0
	for range s.Slots() {
		count++
		if count == 3 {
			break
		}
	}
	if count != 3 {
		t.Errorf("Expected early stop after 3 slots, got %d", count)
	}
}

// TestPartitionProperty verifies that for each day the returned free slots and
// the clipped busy intervals exactly partition the working-hour window:
// no gaps, no overlaps, no negative-length spans.
func TestPartitionProperty(t *testing.T) {
	cases := []struct {
		name string
		busy []BusyInterval
	}{
		{"empty", nil},
		{"single", []BusyInterval{{Start: at(11, 0), End: at(12, 0)}}},
		{"unsorted with overlaps", []BusyInterval{
			{Start: at(14, 0), End: at(16, 0)},
			{Start: at(9, 30), End: at(10, 30)},
			{Start: at(10, 0), End: at(11, 15)},
			{Start: at(15, 0), End: at(15, 30)},
		}},
		{"touching edges", []BusyInterval{
			{Start: at(9, 0), End: at(10, 0)},
			{Start: at(16, 0), End: at(17, 0)},
		}},
		{"clipped to bounds", []BusyInterval{
			{Start: at(8, 0), End: at(9, 45)},
			{Start: at(16, 30), End: at(18, 0)},
		}},
	}

	hours := DefaultWorkingHours()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(singleDayWindow(), tc.busy, hours)
			slots := s.FreeSlots()

			for _, slot := range slots {
				if !slot.Start.Before(slot.End) {
					t.Errorf("Negative or zero length slot: %v", slot)
				}
				for _, b := range tc.busy {
					if slot.Start.Before(b.End) && b.Start.Before(slot.End) {
						t.Errorf("Slot %v overlaps busy interval %v", slot, b)
					}
				}
			}

			// Covered time (free + clipped busy, deduplicated by the sweep)
			// must equal the working window length.
			var free time.Duration
			for _, slot := range slots {
				free += slot.Duration()
			}
			busyCovered := coveredWithin(tc.busy, at(9, 0), at(17, 0))
			if total := free + busyCovered; total != 8*time.Hour {
				t.Errorf("Free (%v) + busy (%v) = %v, want %v working window",
					free, busyCovered, total, 8*time.Hour)
			}
		})
	}
}

// coveredWithin returns the total time covered by the union of the intervals
// clipped to [lo, hi], computed independently of the engine.
func coveredWithin(busy []BusyInterval, lo, hi time.Time) time.Duration {
	var total time.Duration
	for cur := lo; cur.Before(hi); cur = cur.Add(time.Minute) {
		next := cur.Add(time.Minute)
		for _, b := range busy {
			if b.Start.Before(next) && cur.Before(b.End) {
				total += time.Minute
				break
			}
		}
	}
	return total
}
