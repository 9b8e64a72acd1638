package models

import "time"

// AvailabilitySchedule is a weekly availability template plus per-date
// exceptions. Times inside rules and overrides are local to Timezone,
// which is an IANA identifier treated as caller-supplied data.
type AvailabilitySchedule struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	Timezone  string             `json:"timezone"`
	IsDefault bool               `json:"is_default"`
	Rules     []AvailabilityRule `json:"rules"`
	Overrides []DateOverride     `json:"overrides"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// AvailabilityRule is one weekly working window. A day may carry several
// rules (split shifts). Invariant: StartTime < EndTime.
type AvailabilityRule struct {
	ID         int64  `json:"id"`
	ScheduleID int64  `json:"schedule_id"`
	DayOfWeek  int    `json:"day_of_week"` // 0 = Sunday .. 6 = Saturday
	StartTime  string `json:"start_time"`  // HH:MM
	EndTime    string `json:"end_time"`    // HH:MM
}

// DateOverride supersedes all weekly rules for one calendar date: blocked
// means zero availability, otherwise its window replaces the day entirely.
// At most one override may exist per (schedule, date).
type DateOverride struct {
	ID         int64  `json:"id"`
	ScheduleID int64  `json:"schedule_id"`
	Date       string `json:"date"` // YYYY-MM-DD in the schedule's timezone
	IsBlocked  bool   `json:"is_blocked"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
}
