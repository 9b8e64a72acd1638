package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"calbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(zerolog.NewConsoleWriter())
	db, err := NewDB(filepath.Join(t.TempDir(), "calbook.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedSchedule(t *testing.T, db *DB) *models.AvailabilitySchedule {
	t.Helper()
	schedule := &models.AvailabilitySchedule{
		Name:     "Working hours",
		Timezone: "UTC",
		Rules: []models.AvailabilityRule{
			{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00"},
		},
	}
	require.NoError(t, db.CreateSchedule(context.Background(), schedule))
	return schedule
}

func seedEventType(t *testing.T, db *DB, scheduleID int64) *models.EventType {
	t.Helper()
	et := &models.EventType{
		Title:        "Intro call",
		Slug:         "intro-call-" + uuid.NewString()[:8],
		Duration:     30,
		BufferBefore: 5,
		BufferAfter:  5,
		IsActive:     true,
		ScheduleID:   scheduleID,
	}
	require.NoError(t, db.CreateEventType(context.Background(), et))
	return et
}

func testBooking(eventTypeID int64, start time.Time, minutes int) *models.Booking {
	return &models.Booking{
		UID:         uuid.NewString(),
		EventTypeID: eventTypeID,
		BookerName:  "Jane Booker",
		BookerEmail: "jane@example.com",
		StartTime:   start,
		EndTime:     start.Add(time.Duration(minutes) * time.Minute),
		Timezone:    "UTC",
		Status:      models.StatusConfirmed,
	}
}
