package scheduling

import (
	"errors"
	"fmt"
)

// SlotStep is the granularity of bookable start times.
const SlotStep = 10

var (
	// ErrInvalidClock is returned for time-of-day values that are not "HH:MM".
	ErrInvalidClock = errors.New("invalid time of day, expected HH:MM")
	// ErrInvalidWindow is returned when an availability window does not satisfy start < end.
	ErrInvalidWindow = errors.New("availability start time must be before end time")
)

// Clock is a time of day expressed in minutes since midnight.
type Clock int

// ParseClock parses a zero-padded 24-hour "HH:MM" value.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock(h*60 + m), nil
}

// Hour returns the hour component.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Window is a pharmacist's daily availability.
type Window struct {
	Start string `json:"startTime" bson:"startTime"`
	End   string `json:"endTime" bson:"endTime"`
}

// DefaultWindow applies when a pharmacist never configured availability.
var DefaultWindow = Window{Start: "09:00", End: "17:00"}

// ResolveWindow returns w, or DefaultWindow when w is nil.
func ResolveWindow(w *Window) Window {
	if w == nil {
		return DefaultWindow
	}
	return *w
}

// Validate checks the window before it is saved.
func (w Window) Validate() error {
	start, err := ParseClock(w.Start)
	if err != nil {
		return err
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return err
	}
	if start >= end {
		return ErrInvalidWindow
	}
	return nil
}

// GenerateSlots lists start times from start (inclusive) to end (exclusive) in
// SlotStep increments. A degenerate window yields an empty, non-nil slice.
func GenerateSlots(start, end string) ([]string, error) {
	from, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseClock(end)
	if err != nil {
		return nil, err
	}

	slots := []string{}
	for c := from; c < to; c += SlotStep {
		slots = append(slots, c.String())
	}
	return slots, nil
}

// SlotsFor generates the slots of w, substituting DefaultWindow for nil.
func SlotsFor(w *Window) ([]string, error) {
	resolved := ResolveWindow(w)
	return GenerateSlots(resolved.Start, resolved.End)
}

// IsSlot reports whether clock is one of the bookable start times of w.
func IsSlot(w *Window, clock string) (bool, error) {
	if _, err := ParseClock(clock); err != nil {
		return false, err
	}
	slots, err := SlotsFor(w)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s == clock {
			return true, nil
		}
	}
	return false, nil
}
