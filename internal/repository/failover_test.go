package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"calbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSlotCache struct {
	mock.Mock
}

func (m *mockSlotCache) GetSlots(ctx context.Context, eventTypeID int64, date string) ([]models.SlotView, bool, error) {
	args := m.Called(ctx, eventTypeID, date)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]models.SlotView), args.Bool(1), args.Error(2)
}

func (m *mockSlotCache) SetSlots(ctx context.Context, eventTypeID int64, date string, slots []models.SlotView) error {
	args := m.Called(ctx, eventTypeID, date, slots)
	return args.Error(0)
}

func (m *mockSlotCache) Invalidate(ctx context.Context, eventTypeID int64) error {
	args := m.Called(ctx, eventTypeID)
	return args.Error(0)
}

func TestFailoverSlotCache(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	slots := []models.SlotView{{Time: "09:00", Available: true}}

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary := new(mockSlotCache)
		fallback := new(mockSlotCache)
		cache := NewFailoverSlotCache(primary, fallback, &logger)

		primary.On("GetSlots", ctx, int64(1), "2030-06-03").Return(slots, true, nil)

		got, ok, err := cache.GetSlots(ctx, 1, "2030-06-03")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, slots, got)
		fallback.AssertNotCalled(t, "GetSlots", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("FallbackOnPrimaryError", func(t *testing.T) {
		primary := new(mockSlotCache)
		fallback := new(mockSlotCache)
		cache := NewFailoverSlotCache(primary, fallback, &logger)

		primary.On("GetSlots", ctx, int64(1), "2030-06-03").Return(nil, false, errors.New("connection refused")).Once()
		fallback.On("GetSlots", ctx, int64(1), "2030-06-03").Return(slots, true, nil)

		got, ok, err := cache.GetSlots(ctx, 1, "2030-06-03")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, slots, got)

		// Once down, primary is not retried within the probe window.
		_, _, err = cache.GetSlots(ctx, 1, "2030-06-03")
		require.NoError(t, err)
		primary.AssertNumberOfCalls(t, "GetSlots", 1)
	})

	t.Run("SetFallsBack", func(t *testing.T) {
		primary := new(mockSlotCache)
		fallback := new(mockSlotCache)
		cache := NewFailoverSlotCache(primary, fallback, &logger)

		primary.On("SetSlots", ctx, int64(1), "2030-06-03", slots).Return(errors.New("down")).Once()
		fallback.On("SetSlots", ctx, int64(1), "2030-06-03", slots).Return(nil)

		require.NoError(t, cache.SetSlots(ctx, 1, "2030-06-03", slots))
		fallback.AssertCalled(t, "SetSlots", ctx, int64(1), "2030-06-03", slots)
	})

	t.Run("InvalidateHitsBothSides", func(t *testing.T) {
		primary := new(mockSlotCache)
		fallback := new(mockSlotCache)
		cache := NewFailoverSlotCache(primary, fallback, &logger)

		primary.On("Invalidate", ctx, int64(1)).Return(nil)
		fallback.On("Invalidate", ctx, int64(1)).Return(nil)

		require.NoError(t, cache.Invalidate(ctx, 1))
		primary.AssertCalled(t, "Invalidate", ctx, int64(1))
		fallback.AssertCalled(t, "Invalidate", ctx, int64(1))
	})

	t.Run("RecoveryAfterProbeWindow", func(t *testing.T) {
		primary := new(mockSlotCache)
		fallback := new(mockSlotCache)
		cache := NewFailoverSlotCache(primary, fallback, &logger)

		primary.On("GetSlots", ctx, int64(1), "2030-06-03").Return(nil, false, errors.New("down")).Once()
		fallback.On("GetSlots", ctx, int64(1), "2030-06-03").Return(nil, false, nil)
		_, _, err := cache.GetSlots(ctx, 1, "2030-06-03")
		require.NoError(t, err)

		// Age the health mark past the probe window.
		cache.mu.Lock()
		cache.lastCheck = time.Now().Add(-2 * time.Minute)
		cache.mu.Unlock()

		primary.On("GetSlots", ctx, int64(1), "2030-06-03").Return(slots, true, nil)
		got, ok, err := cache.GetSlots(ctx, 1, "2030-06-03")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, slots, got)
		assert.False(t, cache.isDown.Load())
	})
}
