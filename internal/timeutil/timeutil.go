// Package timeutil holds the date and time formatting shared by the
// attendance core: dateId keys, 12-hour display times, and shift
// duration arithmetic.
package timeutil

import (
	"fmt"
	"time"
)

const (
	// DateIDLayout keys one attendance record per employee per
	// calendar day, e.g. "2026-01-22".
	DateIDLayout = "2006-01-02"

	// DisplayTimeLayout is the stored check-in/check-out time format,
	// e.g. "09:30 AM".
	DisplayTimeLayout = "03:04 PM"

	// MonthLayout selects a history month, e.g. "2026-01".
	MonthLayout = "2006-01"
)

// DurationError is returned by Duration for inputs that do not parse
// as display times. It crosses the boundary as a value, not a panic.
const DurationError = "Error"

// DateID returns the calendar-day key for t.
func DateID(t time.Time) string {
	return t.Format(DateIDLayout)
}

// DisplayTime returns t in the stored display format.
func DisplayTime(t time.Time) string {
	return t.Format(DisplayTimeLayout)
}

// Duration computes the elapsed time between two display times as
// "<H>h <MM>m". Both are interpreted on the same nominal day; a
// negative difference rolls forward 24 hours to handle overnight
// shifts. Malformed input yields DurationError. Zero elapsed time
// formats as "0h 00m".
func Duration(checkInDisplay, checkOutDisplay string) string {
	in, err := time.Parse(DisplayTimeLayout, checkInDisplay)
	if err != nil {
		return DurationError
	}
	out, err := time.Parse(DisplayTimeLayout, checkOutDisplay)
	if err != nil {
		return DurationError
	}

	diff := out.Sub(in)
	if diff < 0 {
		diff += 24 * time.Hour
	}

	hours := int(diff / time.Hour)
	minutes := int(diff/time.Minute) % 60
	return fmt.Sprintf("%dh %02dm", hours, minutes)
}
