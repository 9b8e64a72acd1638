package database

import "errors"

var (
	// ErrNotFound covers unknown event types, schedules and bookings.
	ErrNotFound = errors.New("record not found")

	// ErrSlotUnavailable signals a reservation race lost at write time.
	ErrSlotUnavailable = errors.New("time slot is no longer available")

	// ErrLockBusy is returned when the per-event-type reservation lock
	// could not be acquired within the bounded wait. Retryable.
	ErrLockBusy = errors.New("reservation is busy, retry")

	// ErrValidation wraps user-correctable input problems.
	ErrValidation = errors.New("invalid input")

	// ErrDateTooFar rejects bookings beyond the configured horizon.
	ErrDateTooFar = errors.New("date is too far in the future")

	// ErrBookingNotActive guards the terminal states: only CONFIRMED
	// bookings can be cancelled or rescheduled.
	ErrBookingNotActive = errors.New("booking is not in a confirmed state")

	// ErrOverrideExists enforces at most one override per schedule+date.
	ErrOverrideExists = errors.New("override for this date already exists")

	// ErrSlugExists enforces globally unique event type slugs.
	ErrSlugExists = errors.New("url slug already exists")

	// ErrScheduleInUse blocks deleting a schedule still referenced by
	// event types.
	ErrScheduleInUse = errors.New("schedule is in use by event types")
)
