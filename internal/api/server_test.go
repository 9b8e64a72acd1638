package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"calbook/internal/config"
	"calbook/internal/database"
	"calbook/internal/export"
	"calbook/internal/models"
	"calbook/internal/repository"
	"calbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	ts *httptest.Server
	db *database.DB
}

func newAPIFixture(t *testing.T, cfg config.APIConfig) *apiFixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cache := repository.NewMemorySlotCache(time.Minute)
	bookings := service.NewBookingService(db, cache, nil, nil, 60, &logger)
	types := service.NewEventTypeService(db, cache, "River Host", &logger)
	schedules := service.NewScheduleService(db, cache, &logger)
	exporter := export.NewExporter(db, t.TempDir(), &logger)

	server := NewServer(cfg, bookings, types, schedules, exporter, &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &apiFixture{ts: ts, db: db}
}

// seedEveryday attaches an all-week 09:00-17:00 UTC schedule so tests can
// book relative to the real clock.
func (fx *apiFixture) seedEveryday(t *testing.T) *models.EventType {
	t.Helper()
	ctx := context.Background()

	schedule := &models.AvailabilitySchedule{Name: "Always on", Timezone: "UTC"}
	for day := 0; day <= 6; day++ {
		schedule.Rules = append(schedule.Rules, models.AvailabilityRule{
			DayOfWeek: day, StartTime: "09:00", EndTime: "17:00",
		})
	}
	require.NoError(t, fx.db.CreateSchedule(ctx, schedule))

	et := &models.EventType{
		Title:      "Intro call",
		Slug:       "intro-call",
		Duration:   30,
		IsActive:   true,
		ScheduleID: schedule.ID,
	}
	require.NoError(t, fx.db.CreateEventType(ctx, et))
	return et
}

// nextWeek is a booking date safely inside the advance window.
func nextWeek() string {
	return time.Now().UTC().AddDate(0, 0, 7).Format(models.DateFormat)
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestPublicBookingFlow(t *testing.T) {
	fx := newAPIFixture(t, config.APIConfig{})
	fx.seedEveryday(t)
	date := nextWeek()

	resp, view := doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/public/event-types/intro-call", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Intro call", view["title"])
	assert.Equal(t, "River Host", view["host_name"])

	resp, slots := doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/public/event-types/intro-call/slots?date="+date, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, slots["slots"], 16)

	reserve := map[string]any{
		"event_type": "intro-call",
		"date":       date,
		"start":      "10:00",
		"name":       "Jane Booker",
		"email":      "jane@example.com",
	}
	resp, booking := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/public/bookings", reserve, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	uid, _ := booking["uid"].(string)
	require.NotEmpty(t, uid)
	assert.Equal(t, models.StatusConfirmed, booking["status"])

	t.Run("DoubleBookingRefused", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/public/bookings", reserve, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("SlotShownTaken", func(t *testing.T) {
		resp, slots := doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/public/event-types/intro-call/slots?date="+date, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		for _, raw := range slots["slots"].([]any) {
			slot := raw.(map[string]any)
			if slot["time"] == "10:00" {
				assert.False(t, slot["available"].(bool))
			}
		}
	})

	t.Run("LookupByUID", func(t *testing.T) {
		resp, got := doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/public/bookings/"+uid, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Jane Booker", got["booker_name"])
	})

	t.Run("Reschedule", func(t *testing.T) {
		body := map[string]string{"date": date, "start": "14:00"}
		resp, moved := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/public/bookings/"+uid+"/reschedule", body, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		uid = moved["uid"].(string)
		require.NotEmpty(t, uid)
	})

	t.Run("Cancel", func(t *testing.T) {
		body := map[string]string{"reason": "plans changed"}
		resp, _ := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/public/bookings/"+uid+"/cancel", body, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/public/bookings/"+uid+"/cancel", nil, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode, "cancelling twice is refused")
	})
}

func TestPublicDates(t *testing.T) {
	fx := newAPIFixture(t, config.APIConfig{})
	fx.seedEveryday(t)

	target := time.Now().UTC().AddDate(0, 0, 7)
	url := fmt.Sprintf("%s/api/v1/public/event-types/intro-call/dates?month=%d&year=%d",
		fx.ts.URL, int(target.Month()), target.Year())

	resp, body := doJSON(t, http.MethodGet, url, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["dates"], target.Format(models.DateFormat))

	t.Run("RollingWindow", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/public/event-types/intro-call/dates?days=10", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body["dates"], target.Format(models.DateFormat))
	})

	t.Run("BadMonth", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/public/event-types/intro-call/dates?month=13&year=2030", nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestPublicErrors(t *testing.T) {
	fx := newAPIFixture(t, config.APIConfig{})
	fx.seedEveryday(t)

	t.Run("UnknownSlug", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/public/event-types/nope", nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("MissingDate", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/public/event-types/intro-call/slots", nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("OffGridStart", func(t *testing.T) {
		reserve := map[string]any{
			"event_type": "intro-call",
			"date":       nextWeek(),
			"start":      "10:13",
			"name":       "Jane",
			"email":      "jane@example.com",
		}
		resp, _ := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/public/bookings", reserve, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("DateTooFar", func(t *testing.T) {
		reserve := map[string]any{
			"event_type": "intro-call",
			"date":       time.Now().UTC().AddDate(0, 0, 90).Format(models.DateFormat),
			"start":      "10:00",
			"name":       "Jane",
			"email":      "jane@example.com",
		}
		resp, _ := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/public/bookings", reserve, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("UnknownBookingUID", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/public/bookings/ghost", nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAdminFlow(t *testing.T) {
	fx := newAPIFixture(t, config.APIConfig{})
	date := nextWeek()

	schedule := map[string]any{
		"name":     "Weekdays",
		"timezone": "UTC",
		"rules": []map[string]any{
			{"day_of_week": 0, "start_time": "09:00", "end_time": "12:00"},
			{"day_of_week": 1, "start_time": "09:00", "end_time": "12:00"},
			{"day_of_week": 2, "start_time": "09:00", "end_time": "12:00"},
			{"day_of_week": 3, "start_time": "09:00", "end_time": "12:00"},
			{"day_of_week": 4, "start_time": "09:00", "end_time": "12:00"},
			{"day_of_week": 5, "start_time": "09:00", "end_time": "12:00"},
			{"day_of_week": 6, "start_time": "09:00", "end_time": "12:00"},
		},
	}
	resp, created := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/admin/schedules", schedule, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	scheduleID := int64(created["id"].(float64))

	resp, _ = doJSON(t, http.MethodPost, fx.ts.URL+fmt.Sprintf("/api/v1/admin/schedules/%d/default", scheduleID), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	et := map[string]any{
		"title":     "Demo",
		"slug":      "demo",
		"duration":  60,
		"is_active": true,
	}
	resp, createdET := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/admin/event-types", et, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	etID := int64(createdET["id"].(float64))

	t.Run("DuplicateSlug", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/admin/event-types", et, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	// The event type has no schedule of its own, so the new default
	// carries its availability.
	reserve := map[string]any{
		"event_type": "demo",
		"date":       date,
		"start":      "09:00",
		"name":       "Jane",
		"email":      "jane@example.com",
	}
	resp, booking := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/public/bookings", reserve, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bookingID := int64(booking["id"].(float64))

	t.Run("ListAndStats", func(t *testing.T) {
		resp, list := doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/admin/bookings?upcoming=true", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, list["bookings"], 1)

		resp, stats := doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/admin/bookings/stats", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), stats["upcoming"])
	})

	t.Run("Reschedule", func(t *testing.T) {
		body := map[string]string{"date": date, "start": "10:00"}
		resp, moved := doJSON(t, http.MethodPost, fx.ts.URL+fmt.Sprintf("/api/v1/admin/bookings/%d/reschedule", bookingID), body, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		bookingID = int64(moved["id"].(float64))
	})

	t.Run("Cancel", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, fx.ts.URL+fmt.Sprintf("/api/v1/admin/bookings/%d/cancel", bookingID), map[string]string{"reason": "host away"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Overrides", func(t *testing.T) {
		override := map[string]any{"date": date, "is_blocked": true}
		resp, created := doJSON(t, http.MethodPost, fx.ts.URL+fmt.Sprintf("/api/v1/admin/schedules/%d/overrides", scheduleID), override, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		overrideID := int64(created["id"].(float64))

		// The blocked day no longer offers slots.
		resp, slots := doJSON(t, http.MethodGet, fx.ts.URL+"/api/v1/public/event-types/demo/slots?date="+date, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, slots["slots"])

		resp, _ = doJSON(t, http.MethodDelete, fx.ts.URL+fmt.Sprintf("/api/v1/admin/schedules/%d/overrides/%d", scheduleID, overrideID), nil, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("Export", func(t *testing.T) {
		body := map[string]string{"from": date, "to": date}
		resp, result := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/admin/bookings/export", body, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Contains(t, result["file"], ".xlsx")
	})

	t.Run("DeleteScheduleInUse", func(t *testing.T) {
		attached := map[string]any{"title": "Attached", "slug": "attached", "duration": 30, "is_active": true, "schedule_id": scheduleID}
		resp, _ := doJSON(t, http.MethodPost, fx.ts.URL+"/api/v1/admin/event-types", attached, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, _ = doJSON(t, http.MethodDelete, fx.ts.URL+fmt.Sprintf("/api/v1/admin/schedules/%d", scheduleID), nil, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("DeleteEventType", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodDelete, fx.ts.URL+fmt.Sprintf("/api/v1/admin/event-types/%d", etID), nil, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})
}
