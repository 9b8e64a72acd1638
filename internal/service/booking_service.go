package service

import (
	"context"
	"strings"
	"time"

	"calbook/internal/availability"
	"calbook/internal/database"
	"calbook/internal/domain"
	"calbook/internal/events"
	"calbook/internal/metrics"
	"calbook/internal/models"
	"calbook/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NotifyQueue hands finished bookings to the mail worker. A nil queue
// disables notifications.
type NotifyQueue interface {
	Enqueue(task worker.NotifyTask) error
}

// BookingService owns the public booking flow: slot derivation, the
// reserve/cancel/reschedule lifecycle, and the fan-out to cache, events
// and notifications. Slot lists it hands out are advisory; the ledger's
// in-transaction check is the only authority on availability.
type BookingService struct {
	ledger         domain.Ledger
	cache          domain.SlotCache
	eventBus       domain.EventPublisher
	notifyQueue    NotifyQueue
	maxAdvanceDays int
	logger         *zerolog.Logger

	// Injected so tests can pin the clock.
	now func() time.Time
}

func NewBookingService(ledger domain.Ledger, cache domain.SlotCache, eventBus domain.EventPublisher, notifyQueue NotifyQueue, maxAdvanceDays int, logger *zerolog.Logger) *BookingService {
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = 60
	}
	return &BookingService{
		ledger:         ledger,
		cache:          cache,
		eventBus:       eventBus,
		notifyQueue:    notifyQueue,
		maxAdvanceDays: maxAdvanceDays,
		logger:         logger,
		now:            time.Now,
	}
}

// ReserveRequest is a public booking attempt. Date and Start are local
// to the event type's schedule timezone; Timezone is the booker's own,
// kept for display only.
type ReserveRequest struct {
	EventTypeSlug string
	Date          string // YYYY-MM-DD
	Start         string // HH:MM
	BookerName    string
	BookerEmail   string
	Timezone      string
	Answers       []models.BookingAnswer
}

// AvailableSlots returns every slot of the event type on the date, each
// flagged bookable or not. A date in the past yields an empty list; a
// date beyond the advance window is refused.
func (s *BookingService) AvailableSlots(ctx context.Context, slug, dateStr string) ([]models.SlotView, error) {
	et, schedule, loc, err := s.bookingContext(ctx, slug)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return []models.SlotView{}, nil
	}

	date, err := s.checkDate(dateStr, loc)
	if err != nil {
		if err == errPastDate {
			return []models.SlotView{}, nil
		}
		return nil, err
	}

	// Today's list shifts as the clock passes slot starts, so only
	// future days are served from cache.
	today := date.Format(models.DateFormat) == s.now().In(loc).Format(models.DateFormat)
	if s.cache != nil && !today {
		if views, ok, err := s.cache.GetSlots(ctx, et.ID, dateStr); err == nil && ok {
			return views, nil
		}
	}

	views, _, err := s.deriveSlots(ctx, et, schedule, loc, date, 0)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && !today {
		if err := s.cache.SetSlots(ctx, et.ID, dateStr, views); err != nil {
			s.logger.Warn().Err(err).Str("slug", slug).Msg("Failed to cache slots")
		}
	}
	return views, nil
}

// AvailableDates lists the dates inside the advance window that still
// have at least one bookable slot, starting today.
func (s *BookingService) AvailableDates(ctx context.Context, slug string, days int) ([]string, error) {
	et, schedule, loc, err := s.bookingContext(ctx, slug)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return []string{}, nil
	}
	if days <= 0 || days > s.maxAdvanceDays {
		days = s.maxAdvanceDays
	}

	start := s.now().In(loc)
	dates := make([]string, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		_, open, err := s.deriveSlots(ctx, et, schedule, loc, date, 0)
		if err != nil {
			return nil, err
		}
		if open > 0 {
			dates = append(dates, date.Format(models.DateFormat))
		}
	}
	return dates, nil
}

// AvailableDatesForMonth lists the days of one calendar month that
// still have a bookable slot. Past days and days beyond the advance
// window yield nothing.
func (s *BookingService) AvailableDatesForMonth(ctx context.Context, slug string, year int, month time.Month) ([]string, error) {
	if month < time.January || month > time.December {
		return nil, errValidation("month must be 1 through 12")
	}
	et, schedule, loc, err := s.bookingContext(ctx, slug)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return []string{}, nil
	}

	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	horizon := today.AddDate(0, 0, s.maxAdvanceDays)

	dates := []string{}
	for day := time.Date(year, month, 1, 0, 0, 0, 0, loc); day.Month() == month; day = day.AddDate(0, 0, 1) {
		if day.Before(today) || day.After(horizon) {
			continue
		}
		_, open, err := s.deriveSlots(ctx, et, schedule, loc, day, 0)
		if err != nil {
			return nil, err
		}
		if open > 0 {
			dates = append(dates, day.Format(models.DateFormat))
		}
	}
	return dates, nil
}

// Reserve books a slot. The requested time must land exactly on the
// derived grid and still be free; the final word stays with the ledger,
// which re-checks inside its transaction.
func (s *BookingService) Reserve(ctx context.Context, req ReserveRequest) (*models.Booking, error) {
	et, schedule, loc, err := s.bookingContext(ctx, req.EventTypeSlug)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, errValidation("event type has no availability schedule")
	}

	if strings.TrimSpace(req.BookerName) == "" {
		return nil, errValidation("booker name is required")
	}
	if !strings.Contains(req.BookerEmail, "@") {
		return nil, errValidation("a valid booker email is required")
	}
	answers, err := checkAnswers(et, req.Answers)
	if err != nil {
		return nil, err
	}

	date, err := s.checkDate(req.Date, loc)
	if err != nil {
		if err == errPastDate {
			return nil, errValidation("date is in the past")
		}
		return nil, err
	}

	slot, free, err := s.findSlot(ctx, et, schedule, loc, date, req.Start, 0)
	if err != nil {
		return nil, err
	}
	if !free {
		metrics.IncReservation("conflict")
		return nil, database.ErrSlotUnavailable
	}

	tz := req.Timezone
	if tz == "" {
		tz = schedule.Timezone
	}
	booking := &models.Booking{
		UID:         uuid.NewString(),
		EventTypeID: et.ID,
		BookerName:  strings.TrimSpace(req.BookerName),
		BookerEmail: strings.TrimSpace(req.BookerEmail),
		StartTime:   slot.Start.UTC(),
		EndTime:     slot.End.UTC(),
		Timezone:    tz,
		Status:      models.StatusConfirmed,
		Answers:     answers,
	}

	if err := s.ledger.ReserveBooking(ctx, booking); err != nil {
		if err == database.ErrSlotUnavailable {
			metrics.IncReservation("conflict")
		} else {
			metrics.IncReservation("error")
		}
		return nil, err
	}
	booking.EventTypeTitle = et.Title
	metrics.IncReservation("confirmed")

	s.afterChange(ctx, et.ID)
	s.publish(events.EventBookingConfirmed, booking, "", 0)
	s.enqueueNotify(worker.NotifyTask{Type: worker.TaskBookingConfirmed, Booking: booking})

	s.logger.Info().Str("uid", booking.UID).Str("slug", et.Slug).
		Time("start", booking.StartTime).Msg("Booking reserved")
	return booking, nil
}

// Cancel transitions a confirmed booking to CANCELLED and releases its
// slot.
func (s *BookingService) Cancel(ctx context.Context, id int64, reason string) error {
	if err := s.ledger.CancelBooking(ctx, id, reason); err != nil {
		return err
	}

	booking, err := s.ledger.GetBooking(ctx, id)
	if err != nil {
		return err
	}

	s.afterChange(ctx, booking.EventTypeID)
	s.publish(events.EventBookingCancelled, booking, reason, 0)
	s.enqueueNotify(worker.NotifyTask{Type: worker.TaskBookingCancelled, Booking: booking})

	s.logger.Info().Str("uid", booking.UID).Str("reason", reason).Msg("Booking cancelled")
	return nil
}

// CancelByUID is the public-side cancel, addressed by booking reference.
func (s *BookingService) CancelByUID(ctx context.Context, uid, reason string) error {
	booking, err := s.ledger.GetBookingByUID(ctx, uid)
	if err != nil {
		return err
	}
	return s.Cancel(ctx, booking.ID, reason)
}

// Reschedule moves a confirmed booking to a new slot of the same event
// type. The original survives untouched if the new slot is taken.
func (s *BookingService) Reschedule(ctx context.Context, id int64, dateStr, start string) (*models.Booking, error) {
	original, err := s.ledger.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if original.Status != models.StatusConfirmed {
		return nil, database.ErrBookingNotActive
	}

	et, err := s.ledger.GetEventTypeByID(ctx, original.EventTypeID)
	if err != nil {
		return nil, err
	}
	schedule, loc, err := s.scheduleFor(ctx, et)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, errValidation("event type has no availability schedule")
	}

	date, err := s.checkDate(dateStr, loc)
	if err != nil {
		if err == errPastDate {
			return nil, errValidation("date is in the past")
		}
		return nil, err
	}

	// The original's own slot must not block the move.
	slot, free, err := s.findSlot(ctx, et, schedule, loc, date, start, original.ID)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, database.ErrSlotUnavailable
	}

	replacement := &models.Booking{
		UID:         uuid.NewString(),
		EventTypeID: et.ID,
		BookerName:  original.BookerName,
		BookerEmail: original.BookerEmail,
		StartTime:   slot.Start.UTC(),
		EndTime:     slot.End.UTC(),
		Timezone:    original.Timezone,
		Status:      models.StatusConfirmed,
	}

	if err := s.ledger.RescheduleBooking(ctx, original.ID, replacement); err != nil {
		return nil, err
	}
	replacement.EventTypeTitle = et.Title

	s.afterChange(ctx, et.ID)
	s.publish(events.EventBookingRescheduled, replacement, "", original.ID)
	s.enqueueNotify(worker.NotifyTask{Type: worker.TaskBookingRescheduled, Booking: replacement, Previous: original})

	s.logger.Info().Str("uid", replacement.UID).Int64("from", original.ID).
		Time("start", replacement.StartTime).Msg("Booking rescheduled")
	return replacement, nil
}

// RescheduleByUID is the public-side reschedule, addressed by booking
// reference.
func (s *BookingService) RescheduleByUID(ctx context.Context, uid, dateStr, start string) (*models.Booking, error) {
	booking, err := s.ledger.GetBookingByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.Reschedule(ctx, booking.ID, dateStr, start)
}

func (s *BookingService) Booking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.ledger.GetBooking(ctx, id)
}

func (s *BookingService) BookingByUID(ctx context.Context, uid string) (*models.Booking, error) {
	return s.ledger.GetBookingByUID(ctx, uid)
}

func (s *BookingService) Bookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	return s.ledger.ListBookings(ctx, filter, s.now())
}

func (s *BookingService) Stats(ctx context.Context) (*models.BookingStats, error) {
	return s.ledger.GetBookingStats(ctx, s.now())
}

// bookingContext resolves the active event type behind a slug together
// with its effective schedule and location.
func (s *BookingService) bookingContext(ctx context.Context, slug string) (*models.EventType, *models.AvailabilitySchedule, *time.Location, error) {
	et, err := s.ledger.GetEventTypeBySlug(ctx, slug)
	if err != nil {
		return nil, nil, nil, err
	}
	if !et.IsActive {
		return nil, nil, nil, database.ErrNotFound
	}
	schedule, loc, err := s.scheduleFor(ctx, et)
	if err != nil {
		return nil, nil, nil, err
	}
	return et, schedule, loc, nil
}

// scheduleFor picks the event type's schedule, falling back to the
// default one. No schedule at all means no availability, not an error.
func (s *BookingService) scheduleFor(ctx context.Context, et *models.EventType) (*models.AvailabilitySchedule, *time.Location, error) {
	if et.ScheduleID != 0 {
		schedule, err := s.ledger.GetSchedule(ctx, et.ScheduleID)
		if err != nil {
			return nil, nil, err
		}
		loc, err := loadLocation(schedule.Timezone)
		if err != nil {
			return nil, nil, err
		}
		return schedule, loc, nil
	}

	schedules, err := s.ledger.ListSchedules(ctx)
	if err != nil {
		return nil, nil, err
	}
	for i := range schedules {
		if !schedules[i].IsDefault {
			continue
		}
		schedule, err := s.ledger.GetSchedule(ctx, schedules[i].ID)
		if err != nil {
			return nil, nil, err
		}
		loc, err := loadLocation(schedule.Timezone)
		if err != nil {
			return nil, nil, err
		}
		return schedule, loc, nil
	}
	return nil, nil, nil
}

var errPastDate = errValidation("date is in the past")

// checkDate parses a schedule-local calendar date and enforces the
// advance window.
func (s *BookingService) checkDate(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation(models.DateFormat, dateStr, loc)
	if err != nil {
		return time.Time{}, errValidation("date must be YYYY-MM-DD")
	}

	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if date.Before(today) {
		return time.Time{}, errPastDate
	}
	if date.After(today.AddDate(0, 0, s.maxAdvanceDays)) {
		return time.Time{}, database.ErrDateTooFar
	}
	return date, nil
}

// deriveSlots computes the date's slot views and how many are bookable.
// excludeID removes one booking from the conflict set for reschedules.
func (s *BookingService) deriveSlots(ctx context.Context, et *models.EventType, schedule *models.AvailabilitySchedule, loc *time.Location, date time.Time, excludeID int64) ([]models.SlotView, int, error) {
	periods, err := availability.ResolveWorkingPeriods(schedule, date)
	if err != nil {
		return nil, 0, errValidation(err.Error())
	}
	raw, err := availability.GenerateRawSlots(date, loc, et.Duration, periods)
	if err != nil {
		return nil, 0, errValidation(err.Error())
	}
	if len(raw) == 0 {
		return []models.SlotView{}, 0, nil
	}

	bookings, err := s.conflictSet(ctx, et, raw, excludeID)
	if err != nil {
		return nil, 0, err
	}

	open := availability.FilterAvailable(raw, bookings, et.BufferBefore, et.BufferAfter, s.now())
	openStarts := make(map[time.Time]bool, len(open))
	for _, slot := range open {
		openStarts[slot.Start] = true
	}

	views := make([]models.SlotView, 0, len(raw))
	count := 0
	for _, slot := range raw {
		ok := openStarts[slot.Start]
		if ok {
			count++
		}
		views = append(views, models.SlotView{Time: slot.Label, Available: ok})
	}
	return views, count, nil
}

// findSlot locates the raw slot labelled start and reports whether it is
// still bookable. A label off the grid is a validation error.
func (s *BookingService) findSlot(ctx context.Context, et *models.EventType, schedule *models.AvailabilitySchedule, loc *time.Location, date time.Time, start string, excludeID int64) (availability.Slot, bool, error) {
	periods, err := availability.ResolveWorkingPeriods(schedule, date)
	if err != nil {
		return availability.Slot{}, false, errValidation(err.Error())
	}
	raw, err := availability.GenerateRawSlots(date, loc, et.Duration, periods)
	if err != nil {
		return availability.Slot{}, false, errValidation(err.Error())
	}

	var slot availability.Slot
	found := false
	for _, cand := range raw {
		if cand.Label == start {
			slot = cand
			found = true
			break
		}
	}
	if !found {
		return availability.Slot{}, false, errValidation("requested time is not a bookable slot")
	}

	bookings, err := s.conflictSet(ctx, et, raw, excludeID)
	if err != nil {
		return availability.Slot{}, false, err
	}
	open := availability.FilterAvailable([]availability.Slot{slot}, bookings, et.BufferBefore, et.BufferAfter, s.now())
	return slot, len(open) == 1, nil
}

// conflictSet loads the confirmed bookings that can interact with the
// day's slots, widened by a buffer margin on both sides.
func (s *BookingService) conflictSet(ctx context.Context, et *models.EventType, raw []availability.Slot, excludeID int64) ([]models.Booking, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	margin := time.Duration(et.Duration+et.BufferBefore+et.BufferAfter) * time.Minute
	from := raw[0].Start.Add(-margin)
	to := raw[len(raw)-1].End.Add(margin)

	bookings, err := s.ledger.ConfirmedBookings(ctx, et.ID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	if excludeID == 0 {
		return bookings, nil
	}
	kept := bookings[:0]
	for _, b := range bookings {
		if b.ID != excludeID {
			kept = append(kept, b)
		}
	}
	return kept, nil
}

func (s *BookingService) afterChange(ctx context.Context, eventTypeID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventTypeID); err != nil {
		s.logger.Warn().Err(err).Int64("event_type_id", eventTypeID).Msg("Failed to invalidate slot cache")
	}
}

func (s *BookingService) publish(eventType string, b *models.Booking, reason string, previousID int64) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:      b.ID,
		BookingUID:     b.UID,
		EventTypeID:    b.EventTypeID,
		EventTypeTitle: b.EventTypeTitle,
		BookerName:     b.BookerName,
		BookerEmail:    b.BookerEmail,
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		Status:         b.Status,
		Reason:         reason,
		PreviousID:     previousID,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}

func (s *BookingService) enqueueNotify(task worker.NotifyTask) {
	if s.notifyQueue == nil {
		return
	}
	if err := s.notifyQueue.Enqueue(task); err != nil {
		s.logger.Warn().Err(err).Str("type", task.Type).Msg("Failed to enqueue notification")
	}
}

// checkAnswers keeps only answers addressed to the event type's own
// questions and enforces required ones.
func checkAnswers(et *models.EventType, answers []models.BookingAnswer) ([]models.BookingAnswer, error) {
	byQuestion := make(map[int64]string, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = strings.TrimSpace(a.Answer)
	}

	known := make(map[int64]bool, len(et.Questions))
	kept := make([]models.BookingAnswer, 0, len(answers))
	for _, q := range et.Questions {
		known[q.ID] = true
		answer, ok := byQuestion[q.ID]
		if q.IsRequired && (!ok || answer == "") {
			return nil, errValidation("question \"" + q.Question + "\" requires an answer")
		}
		if ok && answer != "" {
			kept = append(kept, models.BookingAnswer{QuestionID: q.ID, Answer: answer})
		}
	}
	for id := range byQuestion {
		if !known[id] {
			return nil, errValidation("answer references an unknown question")
		}
	}
	return kept, nil
}
