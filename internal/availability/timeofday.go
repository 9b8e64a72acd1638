package availability

import (
	"fmt"
	"time"

	"calbook/internal/models"
)

// TimeOfDay is a minute-resolution wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses 24-hour "HH:MM". A malformed value is a
// configuration bug and is reported loudly rather than swallowed.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parsed, err := time.Parse(models.ClockFormat, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

func (t TimeOfDay) MinutesFromMidnight() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On anchors the wall-clock time to a calendar date in the given location.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, loc)
}
