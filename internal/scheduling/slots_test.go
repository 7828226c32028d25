package scheduling

import (
	"testing"
	"time"

	"github.com/carelink/clinic-api/internal/models"
)

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func weekdayAvailability(start, end string, slot int) models.Availability {
	return models.Availability{
		Days:         []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		StartTime:    start,
		EndTime:      end,
		SlotDuration: slot,
	}
}

func TestGenerateSlotsFullDay(t *testing.T) {
	slots, reason := GenerateSlots(weekdayAvailability("09:00", "17:00", 30), monday)
	if reason != "" {
		t.Fatalf("unexpected reason %q", reason)
	}
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots for 09:00-17:00/30m, got %d", len(slots))
	}
	dayStart := monday.Add(9 * time.Hour)
	dayEnd := monday.Add(17 * time.Hour)
	for i, s := range slots {
		if s.Start.Before(dayStart) || s.End.After(dayEnd) {
			t.Errorf("slot %d [%v, %v) outside working window", i, s.Start, s.End)
		}
		if s.End.Sub(s.Start) != 30*time.Minute {
			t.Errorf("slot %d has duration %v", i, s.End.Sub(s.Start))
		}
		if i > 0 && !slots[i-1].Start.Before(s.Start) {
			t.Errorf("slots not in ascending order at %d", i)
		}
	}
	if slots[0].DisplayTime != "09:00 AM" {
		t.Errorf("displayTime = %q", slots[0].DisplayTime)
	}
	if last := slots[15]; !last.Start.Equal(monday.Add(16*time.Hour + 30*time.Minute)) {
		t.Errorf("last slot starts at %v", last.Start)
	}
}

func TestGenerateSlotsClosedDay(t *testing.T) {
	av := models.Availability{Days: []string{"tuesday"}, StartTime: "09:00", EndTime: "17:00", SlotDuration: 30}
	slots, reason := GenerateSlots(av, monday)
	if len(slots) != 0 {
		t.Errorf("expected no slots on a closed day, got %d", len(slots))
	}
	if reason != ReasonClosed {
		t.Errorf("reason = %q, want %q", reason, ReasonClosed)
	}
}

func TestGenerateSlotsOversizeDuration(t *testing.T) {
	// Duration longer than the window: empty result, never an error.
	slots, reason := GenerateSlots(weekdayAvailability("09:00", "10:00", 90), monday)
	if len(slots) != 0 {
		t.Errorf("expected no slots, got %d", len(slots))
	}
	if reason != ReasonNoFit {
		t.Errorf("reason = %q, want %q", reason, ReasonNoFit)
	}
}

func TestGenerateSlotsMalformedTemplate(t *testing.T) {
	cases := []models.Availability{
		{Days: []string{"monday"}, StartTime: "", EndTime: "17:00", SlotDuration: 30},
		{Days: []string{"monday"}, StartTime: "nine", EndTime: "17:00", SlotDuration: 30},
		{Days: []string{"monday"}, StartTime: "09:00", EndTime: "25:00", SlotDuration: 30},
		{Days: []string{"monday"}, StartTime: "17:00", EndTime: "09:00", SlotDuration: 30},
		{Days: []string{"monday"}, StartTime: "09:00", EndTime: "17:00", SlotDuration: 0},
	}
	for i, av := range cases {
		slots, reason := GenerateSlots(av, monday)
		if len(slots) != 0 {
			t.Errorf("case %d: expected no slots, got %d", i, len(slots))
		}
		if reason != ReasonMalformed {
			t.Errorf("case %d: reason = %q, want %q", i, reason, ReasonMalformed)
		}
	}
}

func TestGenerateSlotsDropsPartialTrailingSlot(t *testing.T) {
	// 09:00-10:45 with 30m slots: 09:00, 09:30, 10:00. The 10:30 slot would
	// spill past 10:45 and is dropped, not truncated.
	slots, reason := GenerateSlots(weekdayAvailability("09:00", "10:45", 30), monday)
	if reason != "" {
		t.Fatalf("unexpected reason %q", reason)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if !slots[2].End.Equal(monday.Add(10*time.Hour + 30*time.Minute)) {
		t.Errorf("last slot ends at %v", slots[2].End)
	}
}

func TestOverlaps(t *testing.T) {
	base := monday.Add(10 * time.Hour)
	cases := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"identical", base, base.Add(30 * time.Minute), base, base.Add(30 * time.Minute), true},
		{"partial overlap", base, base.Add(30 * time.Minute), base.Add(15 * time.Minute), base.Add(45 * time.Minute), true},
		{"containment", base, base.Add(time.Hour), base.Add(15 * time.Minute), base.Add(30 * time.Minute), true},
		{"touching endpoints", base, base.Add(30 * time.Minute), base.Add(30 * time.Minute), base.Add(time.Hour), false},
		{"disjoint", base, base.Add(30 * time.Minute), base.Add(2 * time.Hour), base.Add(3 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.s1, tc.e1, tc.s2, tc.e2); got != tc.want {
				t.Errorf("Overlaps = %v, want %v", got, tc.want)
			}
			// Overlap is symmetric.
			if got := Overlaps(tc.s2, tc.e2, tc.s1, tc.e1); got != tc.want {
				t.Errorf("Overlaps (swapped) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterAvailableExcludesActiveOverlaps(t *testing.T) {
	slots, _ := GenerateSlots(weekdayAvailability("09:00", "17:00", 30), monday)

	booked := models.Appointment{
		Status:          models.StatusBooked,
		ScheduledAt:     monday.Add(10 * time.Hour),
		DurationMinutes: 30,
	}
	available := FilterAvailable(slots, []models.Appointment{booked})
	if len(available) != 15 {
		t.Fatalf("expected 15 slots after one booking, got %d", len(available))
	}
	for _, s := range available {
		if s.Start.Equal(monday.Add(10 * time.Hour)) {
			t.Error("10:00 slot should have been filtered out")
		}
	}
}

func TestFilterAvailableIgnoresTerminalStatuses(t *testing.T) {
	slots, _ := GenerateSlots(weekdayAvailability("09:00", "17:00", 30), monday)
	at := monday.Add(10 * time.Hour)

	for _, status := range []string{models.StatusCancelled, models.StatusCompleted, models.StatusNoShow} {
		apt := models.Appointment{Status: status, ScheduledAt: at, DurationMinutes: 30}
		available := FilterAvailable(slots, []models.Appointment{apt})
		if len(available) != 16 {
			t.Errorf("%s appointment should not block any slot, got %d available", status, len(available))
		}
	}
	for _, status := range []string{models.StatusPendingPayment, models.StatusBooked, models.StatusConfirmed} {
		apt := models.Appointment{Status: status, ScheduledAt: at, DurationMinutes: 30}
		available := FilterAvailable(slots, []models.Appointment{apt})
		if len(available) != 15 {
			t.Errorf("%s appointment should block exactly one slot, got %d available", status, len(available))
		}
	}
}

func TestFilterAvailableDefaultsLegacyDuration(t *testing.T) {
	slots, _ := GenerateSlots(weekdayAvailability("09:00", "17:00", 30), monday)

	// A legacy appointment with no duration blocks its 30-minute window.
	apt := models.Appointment{Status: models.StatusConfirmed, ScheduledAt: monday.Add(10 * time.Hour)}
	available := FilterAvailable(slots, []models.Appointment{apt})
	if len(available) != 15 {
		t.Fatalf("expected 15 slots, got %d", len(available))
	}
}

func TestFilterAvailableLongAppointmentBlocksSeveralSlots(t *testing.T) {
	slots, _ := GenerateSlots(weekdayAvailability("09:00", "17:00", 30), monday)

	apt := models.Appointment{Status: models.StatusBooked, ScheduledAt: monday.Add(10 * time.Hour), DurationMinutes: 90}
	available := FilterAvailable(slots, []models.Appointment{apt})
	if len(available) != 13 {
		t.Fatalf("90-minute booking should block 3 slots, got %d available", len(available))
	}
}

func TestFilterAvailablePreservesOrder(t *testing.T) {
	slots, _ := GenerateSlots(weekdayAvailability("09:00", "17:00", 30), monday)
	apt := models.Appointment{Status: models.StatusBooked, ScheduledAt: monday.Add(12 * time.Hour), DurationMinutes: 30}
	available := FilterAvailable(slots, []models.Appointment{apt})
	for i := 1; i < len(available); i++ {
		if !available[i-1].Start.Before(available[i].Start) {
			t.Fatalf("order not preserved at index %d", i)
		}
	}
}
