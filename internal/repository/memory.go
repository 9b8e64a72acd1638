package repository

import (
	"context"
	"sync"
	"time"

	"calbook/internal/models"
)

// MemorySlotCache is the in-process slot cache, also used as the
// failover fallback when redis is down.
type MemorySlotCache struct {
	mu      sync.Mutex
	entries map[int64]map[string]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	slots     []models.SlotView
	expiresAt time.Time
}

func NewMemorySlotCache(ttl time.Duration) *MemorySlotCache {
	return &MemorySlotCache{
		entries: make(map[int64]map[string]memoryEntry),
		ttl:     ttl,
	}
}

func (c *MemorySlotCache) GetSlots(ctx context.Context, eventTypeID int64, date string) ([]models.SlotView, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	days, ok := c.entries[eventTypeID]
	if !ok {
		return nil, false, nil
	}
	entry, ok := days[date]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(days, date)
		return nil, false, nil
	}
	return append([]models.SlotView(nil), entry.slots...), true, nil
}

func (c *MemorySlotCache) SetSlots(ctx context.Context, eventTypeID int64, date string, slots []models.SlotView) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	days, ok := c.entries[eventTypeID]
	if !ok {
		days = make(map[string]memoryEntry)
		c.entries[eventTypeID] = days
	}
	days[date] = memoryEntry{
		slots:     append([]models.SlotView(nil), slots...),
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

// Invalidate drops every cached day of the event type.
func (c *MemorySlotCache) Invalidate(ctx context.Context, eventTypeID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, eventTypeID)
	return nil
}
