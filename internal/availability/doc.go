// Package availability computes free time slots from busy calendar intervals.
//
// The engine is pure: it takes a date window, a set of possibly-overlapping
// busy intervals, and a per-day working-hour bound, and yields the gaps as a
// lazy, restartable sequence of free slots, one calendar day at a time.
// It has no dependencies and never returns an error; an inverted window
// degrades to an empty sequence with a visible Invalid flag.
package availability
