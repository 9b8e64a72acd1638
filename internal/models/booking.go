package models

import "time"

// Booking is one reserved slot. StartTime/EndTime are absolute instants;
// Timezone is display-only. A rescheduled booking keeps a one-way forward
// link from the replacement to its predecessor via RescheduledFromID.
type Booking struct {
	ID                 int64           `json:"id"`
	UID                string          `json:"uid"`
	EventTypeID        int64           `json:"event_type_id"`
	EventTypeTitle     string          `json:"event_type_title,omitempty"`
	BookerName         string          `json:"booker_name"`
	BookerEmail        string          `json:"booker_email"`
	StartTime          time.Time       `json:"start_time"`
	EndTime            time.Time       `json:"end_time"`
	Timezone           string          `json:"timezone"`
	Status             string          `json:"status"`
	RescheduledFromID  int64           `json:"rescheduled_from_id,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	Answers            []BookingAnswer `json:"answers,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// BookingAnswer ties one answer to one question of the booked event type.
// Answers are written atomically with the booking itself.
type BookingAnswer struct {
	ID         int64  `json:"id"`
	BookingID  int64  `json:"booking_id"`
	QuestionID int64  `json:"question_id"`
	Question   string `json:"question,omitempty"`
	Answer     string `json:"answer"`
}

// BookingFilter narrows admin booking listings.
type BookingFilter struct {
	Status   string
	Upcoming bool
	Past     bool
}

// BookingStats feeds the admin dashboard.
type BookingStats struct {
	Upcoming  int `json:"upcoming"`
	Today     int `json:"today"`
	Total     int `json:"total"`
	Cancelled int `json:"cancelled"`
}

// SlotView is the public wire shape of one bookable start time,
// expressed as local HH:MM in the schedule's timezone.
type SlotView struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}
