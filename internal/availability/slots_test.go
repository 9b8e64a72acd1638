package availability

import (
	"testing"
	"time"

	"calbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPeriod(t *testing.T, start, end string) WorkingPeriod {
	t.Helper()
	p, err := newWorkingPeriod(start, end)
	require.NoError(t, err)
	return p
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, 9, tod.Hour)
	assert.Equal(t, 5, tod.Minute)
	assert.Equal(t, "09:05", tod.String())
	assert.Equal(t, 545, tod.MinutesFromMidnight())

	for _, bad := range []string{"", "9:00am", "25:00", "12:61", "noon"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, "expected error for %q", bad)
	}
}

func TestGenerateRawSlotsCount(t *testing.T) {
	loc := time.UTC
	date := time.Date(2030, 6, 3, 0, 0, 0, 0, loc) // a Monday

	tests := []struct {
		name     string
		start    string
		end      string
		duration int
		want     int
	}{
		{"exact fit", "09:00", "17:00", 60, 8},
		{"floor of partial", "09:00", "10:50", 30, 3},
		{"single slot", "09:00", "09:30", 30, 1},
		{"period shorter than duration", "09:00", "09:20", 30, 0},
		{"odd duration", "09:00", "17:00", 45, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			periods := []WorkingPeriod{mustPeriod(t, tt.start, tt.end)}
			slots, err := GenerateRawSlots(date, loc, tt.duration, periods)
			require.NoError(t, err)
			assert.Len(t, slots, tt.want)

			end := periods[0].End.On(date, loc)
			for _, s := range slots {
				assert.False(t, s.End.After(end), "slot %s exceeds period end", s.Label)
				assert.Equal(t, s.Start.Format(models.ClockFormat), s.Label)
				assert.Equal(t, time.Duration(tt.duration)*time.Minute, s.End.Sub(s.Start))
			}
		})
	}
}

func TestGenerateRawSlotsMultiplePeriods(t *testing.T) {
	loc := time.UTC
	date := time.Date(2030, 6, 3, 0, 0, 0, 0, loc)

	periods := []WorkingPeriod{
		mustPeriod(t, "09:00", "12:00"),
		mustPeriod(t, "13:00", "17:00"),
	}
	slots, err := GenerateRawSlots(date, loc, 60, periods)
	require.NoError(t, err)
	require.Len(t, slots, 7)

	// No slot spans the 12:00-13:00 gap.
	for _, s := range slots {
		assert.NotEqual(t, "12:00", s.Label)
	}
	assert.Equal(t, "09:00", slots[0].Label)
	assert.Equal(t, "13:00", slots[3].Label)
	assert.Equal(t, "16:00", slots[6].Label)
}

func TestGenerateRawSlotsInvalidDuration(t *testing.T) {
	loc := time.UTC
	date := time.Date(2030, 6, 3, 0, 0, 0, 0, loc)
	periods := []WorkingPeriod{mustPeriod(t, "09:00", "17:00")}

	_, err := GenerateRawSlots(date, loc, 0, periods)
	assert.Error(t, err)
	_, err = GenerateRawSlots(date, loc, -30, periods)
	assert.Error(t, err)
}

func TestResolveWorkingPeriodsWeeklyRules(t *testing.T) {
	schedule := &models.AvailabilitySchedule{
		Timezone: "UTC",
		Rules: []models.AvailabilityRule{
			{ID: 1, DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00"},
			{ID: 2, DayOfWeek: 1, StartTime: "14:00", EndTime: "17:00"},
			{ID: 3, DayOfWeek: 3, StartTime: "10:00", EndTime: "16:00"},
		},
	}

	monday := time.Date(2030, 6, 3, 0, 0, 0, 0, time.UTC)
	periods, err := ResolveWorkingPeriods(schedule, monday)
	require.NoError(t, err)
	require.Len(t, periods, 2, "split shift keeps both windows")
	assert.Equal(t, "09:00", periods[0].Start.String())
	assert.Equal(t, "14:00", periods[1].Start.String())

	// Tuesday has no rules and no override: empty, not an error.
	tuesday := monday.AddDate(0, 0, 1)
	periods, err = ResolveWorkingPeriods(schedule, tuesday)
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestResolveWorkingPeriodsOverrides(t *testing.T) {
	schedule := &models.AvailabilitySchedule{
		Timezone: "UTC",
		Rules: []models.AvailabilityRule{
			{ID: 1, DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00"},
			{ID: 2, DayOfWeek: 1, StartTime: "14:00", EndTime: "17:00"},
		},
		Overrides: []models.DateOverride{
			{Date: "2030-06-03", IsBlocked: true},
			{Date: "2030-06-10", IsBlocked: false, StartTime: "10:00", EndTime: "11:00"},
			{Date: "2030-06-05", IsBlocked: false, StartTime: "08:00", EndTime: "09:00"},
		},
	}

	// Blocked override wipes the day regardless of rules.
	blocked := time.Date(2030, 6, 3, 0, 0, 0, 0, time.UTC)
	periods, err := ResolveWorkingPeriods(schedule, blocked)
	require.NoError(t, err)
	assert.Empty(t, periods)

	// Non-blocked override replaces both weekly windows with its own.
	replaced := time.Date(2030, 6, 10, 0, 0, 0, 0, time.UTC)
	periods, err = ResolveWorkingPeriods(schedule, replaced)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "10:00", periods[0].Start.String())
	assert.Equal(t, "11:00", periods[0].End.String())

	// An override opens a day that has no weekly rule at all.
	opened := time.Date(2030, 6, 5, 0, 0, 0, 0, time.UTC) // Wednesday
	periods, err = ResolveWorkingPeriods(schedule, opened)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "08:00", periods[0].Start.String())
}

func TestResolveWorkingPeriodsInvalidRule(t *testing.T) {
	schedule := &models.AvailabilitySchedule{
		Rules: []models.AvailabilityRule{
			{ID: 1, DayOfWeek: 1, StartTime: "17:00", EndTime: "09:00"},
		},
	}
	monday := time.Date(2030, 6, 3, 0, 0, 0, 0, time.UTC)
	_, err := ResolveWorkingPeriods(schedule, monday)
	assert.Error(t, err, "inverted rule window is a configuration bug, not empty availability")
}
