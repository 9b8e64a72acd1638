package models

import "time"

// EventType is a bookable meeting template owned by the single host.
// The slug is its public identity and never changes meaning once shared.
type EventType struct {
	ID           int64             `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Slug         string            `json:"slug"`
	Duration     int               `json:"duration"` // minutes, > 0
	BufferBefore int               `json:"buffer_before"`
	BufferAfter  int               `json:"buffer_after"`
	Color        string            `json:"color,omitempty"`
	IsActive     bool              `json:"is_active"`
	ScheduleID   int64             `json:"schedule_id,omitempty"` // 0 = no schedule attached
	Questions    []BookingQuestion `json:"questions,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// BookingQuestion is a custom form field shown on the public booking page.
// Options is a typed list; it is serialized to JSON only at the storage edge.
type BookingQuestion struct {
	ID          int64    `json:"id"`
	EventTypeID int64    `json:"event_type_id"`
	Question    string   `json:"question"`
	Type        string   `json:"type"`
	IsRequired  bool     `json:"is_required"`
	Options     []string `json:"options,omitempty"`
	Order       int      `json:"order"`
}

// PublicEventType is the slug-lookup view served to bookers. Internal ids
// stay hidden except question ids, which answers must reference.
type PublicEventType struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Slug        string           `json:"slug"`
	Duration    int              `json:"duration"`
	Color       string           `json:"color,omitempty"`
	HostName    string           `json:"host_name"`
	Timezone    string           `json:"timezone"`
	Questions   []PublicQuestion `json:"questions"`
}

type PublicQuestion struct {
	ID         int64    `json:"id"`
	Question   string   `json:"question"`
	Type       string   `json:"type"`
	IsRequired bool     `json:"is_required"`
	Options    []string `json:"options,omitempty"`
}
