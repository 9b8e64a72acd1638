package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"calbook/internal/domain"
	"calbook/internal/models"

	"github.com/rs/zerolog"
)

// FailoverSlotCache serves from redis while it is healthy and degrades
// to the in-memory cache when it is not. Recovery is probed at most once
// a minute so a flapping redis does not add latency to every request.
type FailoverSlotCache struct {
	primary   domain.SlotCache
	fallback  domain.SlotCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverSlotCache(primary, fallback domain.SlotCache, logger *zerolog.Logger) *FailoverSlotCache {
	return &FailoverSlotCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FailoverSlotCache) markDown(err error) {
	c.logger.Error().Err(err).Msg("Primary slot cache failed, falling back to memory")
	c.isDown.Store(true)
	c.mu.Lock()
	c.lastCheck = time.Now()
	c.mu.Unlock()
}

// shouldProbe reports whether enough time has passed to retry primary.
func (c *FailoverSlotCache) shouldProbe() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.lastCheck) <= time.Minute {
		return false
	}
	c.lastCheck = time.Now()
	return true
}

func (c *FailoverSlotCache) GetSlots(ctx context.Context, eventTypeID int64, date string) ([]models.SlotView, bool, error) {
	if !c.isDown.Load() {
		slots, ok, err := c.primary.GetSlots(ctx, eventTypeID, date)
		if err == nil {
			return slots, ok, nil
		}
		c.markDown(err)
	} else if c.shouldProbe() {
		slots, ok, err := c.primary.GetSlots(ctx, eventTypeID, date)
		if err == nil {
			c.isDown.Store(false)
			c.logger.Info().Msg("Primary slot cache recovered")
			return slots, ok, nil
		}
	}
	return c.fallback.GetSlots(ctx, eventTypeID, date)
}

func (c *FailoverSlotCache) SetSlots(ctx context.Context, eventTypeID int64, date string, slots []models.SlotView) error {
	if !c.isDown.Load() {
		err := c.primary.SetSlots(ctx, eventTypeID, date, slots)
		if err == nil {
			return nil
		}
		c.markDown(err)
	}
	return c.fallback.SetSlots(ctx, eventTypeID, date, slots)
}

// Invalidate goes to both sides. A stale fallback entry surviving a
// failover window would hand out slots that were just booked.
func (c *FailoverSlotCache) Invalidate(ctx context.Context, eventTypeID int64) error {
	fallbackErr := c.fallback.Invalidate(ctx, eventTypeID)

	if !c.isDown.Load() {
		if err := c.primary.Invalidate(ctx, eventTypeID); err != nil {
			c.markDown(err)
		}
	}
	return fallbackErr
}
