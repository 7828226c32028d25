// Package scheduling derives bookable time slots from a doctor's weekly
// availability template and filters them against existing appointments.
package scheduling

import (
	"strings"
	"time"

	"github.com/carelink/clinic-api/internal/models"
)

// Reason explains an empty slot list on the public read path. These are
// valid outcomes, not errors: the slot endpoint always answers 200.
const (
	ReasonClosed    = "Doctor not available on this day"
	ReasonMalformed = "Doctor schedule is misconfigured"
	ReasonNoFit     = "No slots fit the working window"
)

// Slot is a candidate appointment window. Start and End are instants on the
// requested date; the interval is half-open [Start, End).
type Slot struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Duration    int       `json:"duration"`
	DisplayTime string    `json:"displayTime"`
}

// GenerateSlots expands the availability template over a calendar date. The
// weekday not being a working day, a malformed template and a window too
// small for a single slot all return an empty list plus a reason; callers on
// the public read path must never see an error here.
//
// Slots are emitted in ascending start order. A trailing slot that would
// extend past the end of the window is dropped, never truncated.
func GenerateSlots(av models.Availability, date time.Time) ([]Slot, string) {
	weekday := strings.ToLower(date.Weekday().String())
	working := false
	for _, d := range av.Days {
		if d == weekday {
			working = true
			break
		}
	}
	if !working {
		return nil, ReasonClosed
	}

	start, err := av.ParseStart()
	if err != nil {
		return nil, ReasonMalformed
	}
	end, err := av.ParseEnd()
	if err != nil {
		return nil, ReasonMalformed
	}
	if av.SlotDuration <= 0 || !end.After(start) {
		return nil, ReasonMalformed
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), start.Hour(), start.Minute(), 0, 0, date.Location())
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), end.Hour(), end.Minute(), 0, 0, date.Location())
	step := time.Duration(av.SlotDuration) * time.Minute

	var slots []Slot
	for cur := dayStart; cur.Before(dayEnd); cur = cur.Add(step) {
		slotEnd := cur.Add(step)
		if slotEnd.After(dayEnd) {
			break
		}
		slots = append(slots, Slot{
			Start:       cur,
			End:         slotEnd,
			Duration:    av.SlotDuration,
			DisplayTime: cur.Format("03:04 PM"),
		})
	}
	if len(slots) == 0 {
		return nil, ReasonNoFit
	}
	return slots, ""
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect. Touching endpoints do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// FilterAvailable removes candidate slots that overlap an appointment still
// holding its slot (pending_payment, booked or confirmed). Candidate order
// is preserved.
func FilterAvailable(candidates []Slot, existing []models.Appointment) []Slot {
	available := make([]Slot, 0, len(candidates))
	for _, slot := range candidates {
		blocked := false
		for i := range existing {
			apt := &existing[i]
			if !models.IsActive(apt.Status) {
				continue
			}
			if Overlaps(slot.Start, slot.End, apt.ScheduledAt, apt.End()) {
				blocked = true
				break
			}
		}
		if !blocked {
			available = append(available, slot)
		}
	}
	return available
}
