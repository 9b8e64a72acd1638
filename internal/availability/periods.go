package availability

import (
	"fmt"
	"time"

	"calbook/internal/models"
)

// WorkingPeriod is one bookable window on a specific date, already
// resolved from weekly rules or a date override.
type WorkingPeriod struct {
	Start TimeOfDay
	End   TimeOfDay
}

// ResolveWorkingPeriods maps a schedule onto a calendar date.
//
// An override for the date wins outright: a blocked date yields no
// periods, and a non-blocked override's window replaces the day's weekly
// rules entirely (never merged, and no weekly rule is required to exist).
// Without an override, every weekly rule matching the weekday becomes one
// period. No matching rule is a legitimate empty result, not an error.
func ResolveWorkingPeriods(schedule *models.AvailabilitySchedule, date time.Time) ([]WorkingPeriod, error) {
	dateStr := date.Format(models.DateFormat)

	for _, o := range schedule.Overrides {
		if o.Date != dateStr {
			continue
		}
		if o.IsBlocked {
			return nil, nil
		}
		p, err := newWorkingPeriod(o.StartTime, o.EndTime)
		if err != nil {
			return nil, fmt.Errorf("date override for %s: %w", dateStr, err)
		}
		return []WorkingPeriod{p}, nil
	}

	day := int(date.Weekday())
	var periods []WorkingPeriod
	for _, r := range schedule.Rules {
		if r.DayOfWeek != day {
			continue
		}
		p, err := newWorkingPeriod(r.StartTime, r.EndTime)
		if err != nil {
			return nil, fmt.Errorf("availability rule %d: %w", r.ID, err)
		}
		periods = append(periods, p)
	}
	return periods, nil
}

func newWorkingPeriod(start, end string) (WorkingPeriod, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return WorkingPeriod{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return WorkingPeriod{}, err
	}
	if s.MinutesFromMidnight() >= e.MinutesFromMidnight() {
		return WorkingPeriod{}, fmt.Errorf("start %s is not before end %s", s, e)
	}
	return WorkingPeriod{Start: s, End: e}, nil
}
