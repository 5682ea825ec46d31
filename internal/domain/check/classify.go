package check

import (
	"strings"
	"time"
)

// MaxMonthHops bounds calendar navigation so a malformed or far-future
// target date cannot loop forever.
const MaxMonthHops = 24

// CellState is the raw rendered state of one day cell, as reported by the
// page. A day with a link is bookable; the cell class marks last tickets.
type CellState struct {
	Found   bool
	HasLink bool
	Class   string
}

// Classify maps a cell state to a verdict. A cell that cannot be located is
// Indeterminate, never Unavailable.
func Classify(state CellState) (Verdict, bool) {
	if !state.Found {
		return VerdictIndeterminate, false
	}
	if !state.HasLink {
		return VerdictUnavailable, false
	}
	class := strings.ToLower(state.Class)
	last := strings.Contains(class, "last") || strings.Contains(class, "ultimo")
	return VerdictAvailable, last
}

// Aggregate folds per-date verdicts into the run verdict: any available date
// wins; otherwise any unreadable date makes the whole run Indeterminate.
func Aggregate(dates []DateAvailability) Verdict {
	if len(dates) == 0 {
		return VerdictIndeterminate
	}
	verdict := VerdictUnavailable
	for _, d := range dates {
		switch d.Verdict {
		case VerdictAvailable:
			return VerdictAvailable
		case VerdictIndeterminate:
			verdict = VerdictIndeterminate
		}
	}
	return verdict
}

// SameMonth reports whether all dates share one calendar month.
func SameMonth(dates []time.Time) bool {
	if len(dates) == 0 {
		return true
	}
	for _, d := range dates[1:] {
		if d.Year() != dates[0].Year() || d.Month() != dates[0].Month() {
			return false
		}
	}
	return true
}

// CompareMonth orders (year, month) pairs: -1 when a is before b.
func CompareMonth(a, b time.Time) int {
	ay, am := a.Year(), int(a.Month())
	by, bm := b.Year(), int(b.Month())
	switch {
	case ay < by || (ay == by && am < bm):
		return -1
	case ay == by && am == bm:
		return 0
	default:
		return 1
	}
}
