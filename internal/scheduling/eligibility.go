package scheduling

import (
	"errors"
	"fmt"
	"time"
)

// JoinGrace is how long before the start and after the end of an appointment
// its video call may be joined.
const JoinGrace = 10 * time.Minute

// AppointmentInstant returns the wall-clock start of an appointment scheduled
// on date (in date's location) at clock.
func AppointmentInstant(date time.Time, clock string) (time.Time, error) {
	c, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, date.Location()), nil
}

// JoinWindow returns the inclusive bounds during which the call may be joined.
func JoinWindow(date time.Time, clock string, durationMinutes int) (opens, closes time.Time, err error) {
	start, err := AppointmentInstant(date, clock)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	opens = start.Add(-JoinGrace)
	closes = start.Add(time.Duration(durationMinutes)*time.Minute + JoinGrace)
	return opens, closes, nil
}

// CanJoin reports whether the video call of an appointment may be entered at
// now. Only confirmed or in-progress appointments are joinable. The result is
// time dependent and must be recomputed for every request.
func CanJoin(status Status, date time.Time, clock string, durationMinutes int, now time.Time) (bool, error) {
	opens, closes, err := JoinWindow(date, clock, durationMinutes)
	if err != nil {
		return false, err
	}
	if status != StatusConfirmed && status != StatusInProgress {
		return false, nil
	}
	return !now.Before(opens) && !now.After(closes), nil
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for dates not in DateLayout.
var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// ParseDate parses a calendar date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// InLocation moves a stored calendar date into loc without shifting the day.
// Stored dates carry no meaningful time of day.
func InLocation(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
