package domain

import (
	"context"
	"time"

	"calbook/internal/models"
)

// Ledger is the persistence surface the services depend on. The sqlite
// implementation lives in internal/database.
type Ledger interface {
	// Bookings.
	ReserveBooking(ctx context.Context, booking *models.Booking) error
	RescheduleBooking(ctx context.Context, originalID int64, replacement *models.Booking) error
	CancelBooking(ctx context.Context, id int64, reason string) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByUID(ctx context.Context, uid string) (*models.Booking, error)
	ConfirmedBookings(ctx context.Context, eventTypeID int64, from, to time.Time) ([]models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter, now time.Time) ([]models.Booking, error)
	GetBookingStats(ctx context.Context, now time.Time) (*models.BookingStats, error)
	GetDailyBookings(ctx context.Context, from, to time.Time) (map[string][]models.Booking, error)

	// Event types.
	CreateEventType(ctx context.Context, et *models.EventType) error
	UpdateEventType(ctx context.Context, et *models.EventType) error
	DeleteEventType(ctx context.Context, id int64) error
	GetEventTypeByID(ctx context.Context, id int64) (*models.EventType, error)
	GetEventTypeBySlug(ctx context.Context, slug string) (*models.EventType, error)
	ListEventTypes(ctx context.Context) ([]models.EventType, error)

	// Schedules.
	CreateSchedule(ctx context.Context, s *models.AvailabilitySchedule) error
	UpdateSchedule(ctx context.Context, s *models.AvailabilitySchedule) error
	SetDefaultSchedule(ctx context.Context, id int64) error
	DeleteSchedule(ctx context.Context, id int64) error
	GetSchedule(ctx context.Context, id int64) (*models.AvailabilitySchedule, error)
	ListSchedules(ctx context.Context) ([]models.AvailabilitySchedule, error)
	AddDateOverride(ctx context.Context, o *models.DateOverride) error
	DeleteDateOverride(ctx context.Context, scheduleID, overrideID int64) error
}

// SlotCache memoizes computed slot lists per event type and date.
// Invalidate drops every cached day of an event type at once; entries are
// advisory and the booking path never trusts them for conflict decisions.
type SlotCache interface {
	GetSlots(ctx context.Context, eventTypeID int64, date string) ([]models.SlotView, bool, error)
	SetSlots(ctx context.Context, eventTypeID int64, date string, slots []models.SlotView) error
	Invalidate(ctx context.Context, eventTypeID int64) error
}

// EventPublisher emits domain events for in-process consumers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier delivers booking lifecycle emails. Implementations must be
// safe for concurrent use; delivery failures are the caller's to retry.
type Notifier interface {
	SendBookingConfirmed(ctx context.Context, booking *models.Booking) error
	SendBookingCancelled(ctx context.Context, booking *models.Booking) error
	SendBookingRescheduled(ctx context.Context, old, replacement *models.Booking) error
}
