package domain

import (
	"fmt"
	"log"
	"time"
)

// Precision describes how exact a provider-reported release date is.
// The string values match what music catalog APIs report.
type Precision string

const (
	PrecisionDay   Precision = "day"
	PrecisionMonth Precision = "month"
	PrecisionYear  Precision = "year"
)

// DefaultWindow is the trailing duration within which an item is eligible.
const DefaultWindow = 7 * 24 * time.Hour

// referenceZone is the fixed timezone used for "now" and for localizing
// naive provider dates. The choice is arbitrary; applying it uniformly is
// what keeps comparisons well-defined.
const referenceZone = "Pacific/Kiritimati"

// RecencyFilter decides whether a publication instant falls inside the
// trailing window. All comparisons happen in one fixed reference timezone.
type RecencyFilter struct {
	window time.Duration
	loc    *time.Location
}

// NewRecencyFilter creates a filter with the given window. A zero window
// means DefaultWindow. Falls back to UTC if the reference zone cannot be
// loaded; uniformity is preserved either way.
func NewRecencyFilter(window time.Duration) *RecencyFilter {
	if window <= 0 {
		window = DefaultWindow
	}
	loc, err := time.LoadLocation(referenceZone)
	if err != nil {
		log.Printf("warning: cannot load timezone %s, using UTC: %v", referenceZone, err)
		loc = time.UTC
	}
	return &RecencyFilter{window: window, loc: loc}
}

// Window returns the configured trailing window.
func (f *RecencyFilter) Window() time.Duration {
	return f.window
}

// Location returns the reference timezone.
func (f *RecencyFilter) Location() *time.Location {
	return f.loc
}

// Now returns the current instant in the reference timezone. Callers
// sample it once per poll cycle so every item sees the same cutoff.
func (f *RecencyFilter) Now() time.Time {
	return time.Now().In(f.loc)
}

// IsRecent reports whether published lies in [now-window, now). A future
// instant is rejected: clock skew and pre-announced scheduled releases
// must not count as new.
func (f *RecencyFilter) IsRecent(published, now time.Time) bool {
	diff := now.Sub(published)
	return diff >= 0 && diff < f.window
}

// Normalize parses a low-precision release date into an instant in the
// reference timezone: day precision becomes midnight of that day, month
// precision the first of the month, year precision the first of the year.
// Lower precision therefore biases toward exclusion once the window has
// nearly elapsed.
func (f *RecencyFilter) Normalize(raw string, p Precision) (time.Time, error) {
	var layout string
	switch p {
	case PrecisionDay:
		layout = "2006-01-02"
	case PrecisionMonth:
		layout = "2006-01"
	case PrecisionYear:
		layout = "2006"
	default:
		return time.Time{}, fmt.Errorf("unknown date precision %q", p)
	}
	t, err := time.ParseInLocation(layout, raw, f.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse release date %q: %w", raw, err)
	}
	return t, nil
}
