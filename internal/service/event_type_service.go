package service

import (
	"context"
	"regexp"
	"strings"

	"calbook/internal/database"
	"calbook/internal/domain"
	"calbook/internal/models"

	"github.com/rs/zerolog"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// EventTypeService manages the host's bookable meeting templates and the
// public slug-lookup view.
type EventTypeService struct {
	ledger   domain.Ledger
	cache    domain.SlotCache
	hostName string
	logger   *zerolog.Logger
}

func NewEventTypeService(ledger domain.Ledger, cache domain.SlotCache, hostName string, logger *zerolog.Logger) *EventTypeService {
	return &EventTypeService{
		ledger:   ledger,
		cache:    cache,
		hostName: hostName,
		logger:   logger,
	}
}

func (s *EventTypeService) Create(ctx context.Context, et *models.EventType) error {
	if err := checkEventType(et); err != nil {
		return err
	}
	if err := s.ledger.CreateEventType(ctx, et); err != nil {
		return err
	}
	s.logger.Info().Int64("id", et.ID).Str("slug", et.Slug).Msg("Event type created")
	return nil
}

func (s *EventTypeService) Update(ctx context.Context, et *models.EventType) error {
	if err := checkEventType(et); err != nil {
		return err
	}
	if err := s.ledger.UpdateEventType(ctx, et); err != nil {
		return err
	}
	s.invalidate(ctx, et.ID)
	return nil
}

func (s *EventTypeService) Delete(ctx context.Context, id int64) error {
	if err := s.ledger.DeleteEventType(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *EventTypeService) Get(ctx context.Context, id int64) (*models.EventType, error) {
	return s.ledger.GetEventTypeByID(ctx, id)
}

func (s *EventTypeService) List(ctx context.Context) ([]models.EventType, error) {
	return s.ledger.ListEventTypes(ctx)
}

// PublicView is the booker-facing shape of an active event type. The
// schedule's timezone rides along so clients can localize slot labels.
func (s *EventTypeService) PublicView(ctx context.Context, slug string) (*models.PublicEventType, error) {
	et, err := s.ledger.GetEventTypeBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !et.IsActive {
		return nil, database.ErrNotFound
	}

	tz := "UTC"
	if et.ScheduleID != 0 {
		if schedule, err := s.ledger.GetSchedule(ctx, et.ScheduleID); err == nil {
			tz = schedule.Timezone
		}
	} else if schedules, err := s.ledger.ListSchedules(ctx); err == nil {
		for _, sched := range schedules {
			if sched.IsDefault {
				tz = sched.Timezone
				break
			}
		}
	}

	view := &models.PublicEventType{
		Title:       et.Title,
		Description: et.Description,
		Slug:        et.Slug,
		Duration:    et.Duration,
		Color:       et.Color,
		HostName:    s.hostName,
		Timezone:    tz,
		Questions:   make([]models.PublicQuestion, 0, len(et.Questions)),
	}
	for _, q := range et.Questions {
		view.Questions = append(view.Questions, models.PublicQuestion{
			ID:         q.ID,
			Question:   q.Question,
			Type:       q.Type,
			IsRequired: q.IsRequired,
			Options:    q.Options,
		})
	}
	return view, nil
}

func (s *EventTypeService) invalidate(ctx context.Context, eventTypeID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventTypeID); err != nil {
		s.logger.Warn().Err(err).Int64("event_type_id", eventTypeID).Msg("Failed to invalidate slot cache")
	}
}

func checkEventType(et *models.EventType) error {
	if strings.TrimSpace(et.Title) == "" {
		return errValidation("title is required")
	}
	if !slugPattern.MatchString(et.Slug) {
		return errValidation("slug must be lowercase letters, digits and hyphens")
	}
	if et.Duration <= 0 {
		return errValidation("duration must be positive")
	}
	if et.BufferBefore < 0 || et.BufferAfter < 0 {
		return errValidation("buffers must not be negative")
	}
	for _, q := range et.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return errValidation("question text is required")
		}
		switch q.Type {
		case models.QuestionText, models.QuestionTextarea:
		case models.QuestionSelect, models.QuestionRadio, models.QuestionCheckbox:
			if len(q.Options) == 0 {
				return errValidation("question \"" + q.Question + "\" needs options")
			}
		default:
			return errValidation("unknown question type " + q.Type)
		}
	}
	return nil
}
