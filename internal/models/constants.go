package models

// Booking lifecycle. CONFIRMED is the only state that blocks a slot;
// CANCELLED and RESCHEDULED are terminal and kept for history.
const (
	StatusConfirmed   = "CONFIRMED"
	StatusCancelled   = "CANCELLED"
	StatusRescheduled = "RESCHEDULED"
)

// Booking question field types.
const (
	QuestionText     = "TEXT"
	QuestionTextarea = "TEXTAREA"
	QuestionSelect   = "SELECT"
	QuestionRadio    = "RADIO"
	QuestionCheckbox = "CHECKBOX"
)

const (
	// DateFormat is the calendar-date wire format (schedule-local).
	DateFormat = "2006-01-02"

	// ClockFormat is the 24-hour wall-clock wire format for slots and rules.
	ClockFormat = "15:04"
)
