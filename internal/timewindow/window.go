// Package timewindow derives a bounty's lifecycle from its deadline and the wall clock.
package timewindow

import (
	"fmt"
	"strings"
	"time"

	"github.com/terra-clan/bounty-board/internal/models"
)

// DateLayout is the bare calendar date form of a deadline
const DateLayout = "2006-01-02"

// Timestamp forms accepted for deadlines. Layouts without an offset are read
// in the window's location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Clock abstracts wall-clock time
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

// Now returns f()
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now
var SystemClock Clock = ClockFunc(time.Now)

// Window computes deadline status against a clock
type Window struct {
	clock Clock
	loc   *time.Location
}

// New creates a Window. loc is the calendar bare dates are expressed in;
// nil means UTC.
func New(clock Clock, loc *time.Location) *Window {
	if clock == nil {
		clock = SystemClock
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Window{clock: clock, loc: loc}
}

// Now returns the current time of the window's clock
func (w *Window) Now() time.Time {
	return w.clock.Now()
}

// IsDateOnly reports whether raw is a bare calendar date with no time component
func IsDateOnly(raw string) bool {
	raw = strings.TrimSpace(raw)
	if len(raw) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, raw)
	return err == nil
}

// Deadline returns the last instant at which a bounty is still active.
// A bare date is normalized to 23:59:59.999 of that day. ok is false when raw
// is empty or cannot be parsed.
func (w *Window) Deadline(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if IsDateOnly(raw) {
		d, err := time.ParseInLocation(DateLayout, raw, w.loc)
		if err != nil {
			return time.Time{}, false
		}
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(999*time.Millisecond), w.loc), true
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, w.loc); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// IsEnded reports whether the deadline has passed. Missing or malformed
// deadlines never end. The result is recomputed on every call.
func (w *Window) IsEnded(raw string) bool {
	deadline, ok := w.Deadline(raw)
	if !ok {
		return false
	}
	return w.clock.Now().After(deadline)
}

// Status maps IsEnded onto the two lifecycle states
func (w *Window) Status(raw string) models.BountyStatus {
	if w.IsEnded(raw) {
		return models.StatusEnded
	}
	return models.StatusActive
}

// Validate checks that raw is an accepted deadline form. Used when a bounty is
// created; reads stay fail-open.
func (w *Window) Validate(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("end_date is required")
	}
	if _, ok := w.Deadline(raw); !ok {
		return fmt.Errorf("end_date %q is neither a date (YYYY-MM-DD) nor a timestamp", raw)
	}
	return nil
}
