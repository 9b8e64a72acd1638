package service

import (
	"context"
	"strings"

	"calbook/internal/availability"
	"calbook/internal/domain"
	"calbook/internal/models"

	"github.com/rs/zerolog"
)

// ScheduleService manages availability schedules, weekly rules and date
// overrides. Any mutation can change what is bookable, so the slot cache
// of every event type using the schedule is flushed afterwards.
type ScheduleService struct {
	ledger domain.Ledger
	cache  domain.SlotCache
	logger *zerolog.Logger
}

func NewScheduleService(ledger domain.Ledger, cache domain.SlotCache, logger *zerolog.Logger) *ScheduleService {
	return &ScheduleService{ledger: ledger, cache: cache, logger: logger}
}

func (s *ScheduleService) Create(ctx context.Context, schedule *models.AvailabilitySchedule) error {
	if err := checkSchedule(schedule); err != nil {
		return err
	}
	if err := s.ledger.CreateSchedule(ctx, schedule); err != nil {
		return err
	}
	s.logger.Info().Int64("id", schedule.ID).Str("name", schedule.Name).Msg("Schedule created")
	return nil
}

func (s *ScheduleService) Update(ctx context.Context, schedule *models.AvailabilitySchedule) error {
	if err := checkSchedule(schedule); err != nil {
		return err
	}
	if err := s.ledger.UpdateSchedule(ctx, schedule); err != nil {
		return err
	}
	s.invalidateUsers(ctx, schedule.ID, schedule.IsDefault)
	return nil
}

func (s *ScheduleService) SetDefault(ctx context.Context, id int64) error {
	if err := s.ledger.SetDefaultSchedule(ctx, id); err != nil {
		return err
	}
	// The previous default's users shift too, so flush everything.
	s.invalidateUsers(ctx, 0, true)
	return nil
}

func (s *ScheduleService) Delete(ctx context.Context, id int64) error {
	return s.ledger.DeleteSchedule(ctx, id)
}

func (s *ScheduleService) Get(ctx context.Context, id int64) (*models.AvailabilitySchedule, error) {
	return s.ledger.GetSchedule(ctx, id)
}

func (s *ScheduleService) List(ctx context.Context) ([]models.AvailabilitySchedule, error) {
	return s.ledger.ListSchedules(ctx)
}

func (s *ScheduleService) AddOverride(ctx context.Context, override *models.DateOverride) error {
	if err := checkOverride(override); err != nil {
		return err
	}
	if err := s.ledger.AddDateOverride(ctx, override); err != nil {
		return err
	}
	s.invalidateUsers(ctx, override.ScheduleID, false)
	return nil
}

func (s *ScheduleService) DeleteOverride(ctx context.Context, scheduleID, overrideID int64) error {
	if err := s.ledger.DeleteDateOverride(ctx, scheduleID, overrideID); err != nil {
		return err
	}
	s.invalidateUsers(ctx, scheduleID, false)
	return nil
}

// invalidateUsers flushes the slot cache of event types affected by a
// schedule change: direct users of the schedule, plus schedule-less ones
// when the default changed. scheduleID 0 flushes everything.
func (s *ScheduleService) invalidateUsers(ctx context.Context, scheduleID int64, includeDefaultUsers bool) {
	if s.cache == nil {
		return
	}
	eventTypes, err := s.ledger.ListEventTypes(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list event types for cache invalidation")
		return
	}
	for _, et := range eventTypes {
		if scheduleID == 0 || et.ScheduleID == scheduleID || (includeDefaultUsers && et.ScheduleID == 0) {
			if err := s.cache.Invalidate(ctx, et.ID); err != nil {
				s.logger.Warn().Err(err).Int64("event_type_id", et.ID).Msg("Failed to invalidate slot cache")
			}
		}
	}
}

func checkSchedule(schedule *models.AvailabilitySchedule) error {
	if strings.TrimSpace(schedule.Name) == "" {
		return errValidation("schedule name is required")
	}
	if _, err := loadLocation(schedule.Timezone); err != nil {
		return err
	}
	for _, r := range schedule.Rules {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return errValidation("day_of_week must be 0 (Sunday) through 6 (Saturday)")
		}
		if err := checkWindow(r.StartTime, r.EndTime); err != nil {
			return err
		}
	}
	return nil
}

func checkOverride(override *models.DateOverride) error {
	if _, err := parseDate(override.Date); err != nil {
		return errValidation("override date must be YYYY-MM-DD")
	}
	if override.IsBlocked {
		return nil
	}
	return checkWindow(override.StartTime, override.EndTime)
}

func checkWindow(start, end string) error {
	s, err := availability.ParseTimeOfDay(start)
	if err != nil {
		return errValidation(err.Error())
	}
	e, err := availability.ParseTimeOfDay(end)
	if err != nil {
		return errValidation(err.Error())
	}
	if s.MinutesFromMidnight() >= e.MinutesFromMidnight() {
		return errValidation("start time must be before end time")
	}
	return nil
}
