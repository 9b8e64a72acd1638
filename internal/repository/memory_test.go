package repository

import (
	"context"
	"testing"
	"time"

	"calbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySlotCache(t *testing.T) {
	cache := NewMemorySlotCache(time.Hour)
	ctx := context.Background()

	slots := []models.SlotView{{Time: "09:00", Available: true}}

	require.NoError(t, cache.SetSlots(ctx, 1, "2030-06-03", slots))

	got, ok, err := cache.GetSlots(ctx, 1, "2030-06-03")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, slots, got)

	_, ok, err = cache.GetSlots(ctx, 1, "2030-06-04")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Invalidate(ctx, 1))
	_, ok, err = cache.GetSlots(ctx, 1, "2030-06-03")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySlotCacheTTL(t *testing.T) {
	cache := NewMemorySlotCache(-time.Second) // everything is already expired
	ctx := context.Background()

	require.NoError(t, cache.SetSlots(ctx, 1, "2030-06-03", []models.SlotView{{Time: "09:00", Available: true}}))

	_, ok, err := cache.GetSlots(ctx, 1, "2030-06-03")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySlotCacheCopiesSlices(t *testing.T) {
	cache := NewMemorySlotCache(time.Hour)
	ctx := context.Background()

	slots := []models.SlotView{{Time: "09:00", Available: true}}
	require.NoError(t, cache.SetSlots(ctx, 1, "2030-06-03", slots))
	slots[0].Available = false

	got, ok, err := cache.GetSlots(ctx, 1, "2030-06-03")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got[0].Available, "cache must not alias caller slices")
}
