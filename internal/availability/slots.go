package availability

import (
	"fmt"
	"time"

	"calbook/internal/models"
)

// Slot is a candidate bookable interval. Label is the local wall-clock
// start in the schedule's timezone, which is the public wire format.
type Slot struct {
	Start time.Time
	End   time.Time
	Label string
}

// GenerateRawSlots packs duration-sized slots into each working period,
// stepping by the duration from the period start. A slot is emitted only
// when it fits entirely inside its period, so a period of N minutes holds
// exactly floor(N/duration) slots and no slot spans a period boundary.
// Periods produce independent sequences, concatenated in order.
func GenerateRawSlots(date time.Time, loc *time.Location, durationMinutes int, periods []WorkingPeriod) ([]Slot, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("event duration must be positive, got %d", durationMinutes)
	}
	step := time.Duration(durationMinutes) * time.Minute

	var slots []Slot
	for _, p := range periods {
		cur := p.Start.On(date, loc)
		end := p.End.On(date, loc)
		for !cur.Add(step).After(end) {
			slots = append(slots, Slot{
				Start: cur,
				End:   cur.Add(step),
				Label: cur.Format(models.ClockFormat),
			})
			cur = cur.Add(step)
		}
	}
	return slots, nil
}
