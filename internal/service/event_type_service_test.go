package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"calbook/internal/database"
	"calbook/internal/models"
	"calbook/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventTypeFixture struct {
	svc   *EventTypeService
	db    *database.DB
	cache *repository.MemorySlotCache
}

func newEventTypeFixture(t *testing.T) *eventTypeFixture {
	t.Helper()
	logger := zerolog.New(zerolog.NewConsoleWriter())
	db, err := database.NewDB(filepath.Join(t.TempDir(), "calbook.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cache := repository.NewMemorySlotCache(time.Hour)
	return &eventTypeFixture{
		svc:   NewEventTypeService(db, cache, "River Host", &logger),
		db:    db,
		cache: cache,
	}
}

func validEventType() *models.EventType {
	return &models.EventType{
		Title:        "Intro call",
		Slug:         "intro-call",
		Duration:     30,
		BufferBefore: 5,
		BufferAfter:  5,
		IsActive:     true,
	}
}

func TestEventTypeCreateValidation(t *testing.T) {
	fx := newEventTypeFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*models.EventType)
	}{
		{"empty title", func(et *models.EventType) { et.Title = " " }},
		{"empty slug", func(et *models.EventType) { et.Slug = "" }},
		{"uppercase slug", func(et *models.EventType) { et.Slug = "Intro-Call" }},
		{"slug with spaces", func(et *models.EventType) { et.Slug = "intro call" }},
		{"leading hyphen", func(et *models.EventType) { et.Slug = "-intro" }},
		{"zero duration", func(et *models.EventType) { et.Duration = 0 }},
		{"negative buffer", func(et *models.EventType) { et.BufferBefore = -1 }},
		{"bad question type", func(et *models.EventType) {
			et.Questions = []models.BookingQuestion{{Question: "Hm", Type: "dropdown"}}
		}},
		{"select without options", func(et *models.EventType) {
			et.Questions = []models.BookingQuestion{{Question: "Size", Type: models.QuestionSelect}}
		}},
		{"empty question text", func(et *models.EventType) {
			et.Questions = []models.BookingQuestion{{Question: "", Type: models.QuestionText}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			et := validEventType()
			tt.mutate(et)
			assert.ErrorIs(t, fx.svc.Create(ctx, et), database.ErrValidation)
		})
	}
}

func TestEventTypeLifecycle(t *testing.T) {
	fx := newEventTypeFixture(t)
	ctx := context.Background()

	et := validEventType()
	et.Questions = []models.BookingQuestion{
		{Question: "Team size", Type: models.QuestionSelect, Options: []string{"1-10", "11-50", "50+"}},
	}
	require.NoError(t, fx.svc.Create(ctx, et))
	require.NotZero(t, et.ID)

	t.Run("DuplicateSlug", func(t *testing.T) {
		dup := validEventType()
		assert.ErrorIs(t, fx.svc.Create(ctx, dup), database.ErrSlugExists)
	})

	t.Run("UpdateInvalidatesCache", func(t *testing.T) {
		require.NoError(t, fx.cache.SetSlots(ctx, et.ID, "2030-06-03", []models.SlotView{{Time: "09:00", Available: true}}))

		et.Duration = 45
		require.NoError(t, fx.svc.Update(ctx, et))

		_, ok, err := fx.cache.GetSlots(ctx, et.ID, "2030-06-03")
		require.NoError(t, err)
		assert.False(t, ok)

		stored, err := fx.svc.Get(ctx, et.ID)
		require.NoError(t, err)
		assert.Equal(t, 45, stored.Duration)
	})

	t.Run("List", func(t *testing.T) {
		list, err := fx.svc.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, fx.svc.Delete(ctx, et.ID))
		_, err := fx.svc.Get(ctx, et.ID)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestEventTypePublicView(t *testing.T) {
	fx := newEventTypeFixture(t)
	ctx := context.Background()

	schedule := &models.AvailabilitySchedule{Name: "Main", Timezone: "Europe/Berlin", IsDefault: true}
	require.NoError(t, fx.db.CreateSchedule(ctx, schedule))

	et := validEventType()
	et.Description = "A short chat"
	et.Questions = []models.BookingQuestion{
		{Question: "Company", Type: models.QuestionText, IsRequired: true},
	}
	require.NoError(t, fx.svc.Create(ctx, et))

	view, err := fx.svc.PublicView(ctx, "intro-call")
	require.NoError(t, err)
	assert.Equal(t, "Intro call", view.Title)
	assert.Equal(t, "River Host", view.HostName)
	assert.Equal(t, "Europe/Berlin", view.Timezone, "no own schedule falls back to the default")
	require.Len(t, view.Questions, 1)
	assert.Equal(t, "Company", view.Questions[0].Question)
	assert.True(t, view.Questions[0].IsRequired)

	t.Run("OwnScheduleWins", func(t *testing.T) {
		own := &models.AvailabilitySchedule{Name: "Late", Timezone: "America/New_York"}
		require.NoError(t, fx.db.CreateSchedule(ctx, own))
		et.ScheduleID = own.ID
		require.NoError(t, fx.svc.Update(ctx, et))

		view, err := fx.svc.PublicView(ctx, "intro-call")
		require.NoError(t, err)
		assert.Equal(t, "America/New_York", view.Timezone)
	})

	t.Run("InactiveIsHidden", func(t *testing.T) {
		et.IsActive = false
		require.NoError(t, fx.svc.Update(ctx, et))
		_, err := fx.svc.PublicView(ctx, "intro-call")
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("UnknownSlug", func(t *testing.T) {
		_, err := fx.svc.PublicView(ctx, "nope")
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}
