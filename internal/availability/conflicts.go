package availability

import (
	"time"

	"calbook/internal/models"
)

// FilterAvailable drops candidates that collide with confirmed bookings,
// violate the buffer gaps around them, or do not start strictly after now.
//
// Both buffer directions use the same half-open convention: a candidate
// touching a booking (zero gap) needs the full buffer to clear, while a
// gap of exactly the buffer length is sufficient. bufferAfter guards the
// gap the candidate needs after it ends, bufferBefore the gap it needs
// after a preceding booking ends. Both are measured against neighboring
// bookings, never the candidate's own period boundaries.
func FilterAvailable(candidates []Slot, bookings []models.Booking, bufferBefore, bufferAfter int, now time.Time) []Slot {
	before := time.Duration(bufferBefore) * time.Minute
	after := time.Duration(bufferAfter) * time.Minute

	out := make([]Slot, 0, len(candidates))
	for _, slot := range candidates {
		if !slot.Start.After(now) {
			continue
		}
		if conflicts(slot, bookings, before, after) {
			continue
		}
		out = append(out, slot)
	}
	return out
}

func conflicts(slot Slot, bookings []models.Booking, before, after time.Duration) bool {
	for _, b := range bookings {
		if b.Status != models.StatusConfirmed {
			continue
		}
		// Direct [start, end) interval overlap.
		if slot.Start.Before(b.EndTime) && slot.End.After(b.StartTime) {
			return true
		}
		// Candidate ends at or before the booking starts: its trailing
		// buffer must not cross into the booking.
		if !slot.End.After(b.StartTime) && slot.End.Add(after).After(b.StartTime) {
			return true
		}
		// Booking ends at or before the candidate starts: the booking
		// plus the candidate's leading buffer must not cross its start.
		if !b.EndTime.After(slot.Start) && b.EndTime.Add(before).After(slot.Start) {
			return true
		}
	}
	return false
}

// Overlaps reports whether two [start, end) intervals intersect. The
// ledger uses the same test for its authoritative in-transaction check.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
