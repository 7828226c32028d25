package models

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Appointment statuses. Completed, cancelled and no_show are terminal.
const (
	StatusPendingPayment = "pending_payment"
	StatusBooked         = "booked"
	StatusConfirmed      = "confirmed"
	StatusCompleted      = "completed"
	StatusCancelled      = "cancelled"
	StatusNoShow         = "no_show"
)

// Payment statuses.
const (
	PaymentUnpaid   = "unpaid"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 240
	MaxNotesLength     = 1000
)

// ActiveStatuses are the statuses that hold a time slot. Anything else
// (cancelled, completed, no_show) never blocks a booking.
var ActiveStatuses = []string{StatusPendingPayment, StatusBooked, StatusConfirmed}

var validStatuses = map[string]bool{
	StatusPendingPayment: true,
	StatusBooked:         true,
	StatusConfirmed:      true,
	StatusCompleted:      true,
	StatusCancelled:      true,
	StatusNoShow:         true,
}

// transitions holds the allowed status moves. Terminal statuses have no
// entries, so every transition out of them is rejected.
var transitions = map[string]map[string]bool{
	StatusPendingPayment: {StatusBooked: true, StatusCancelled: true},
	StatusBooked:         {StatusConfirmed: true, StatusCompleted: true, StatusCancelled: true, StatusNoShow: true},
	StatusConfirmed:      {StatusCompleted: true, StatusCancelled: true, StatusNoShow: true},
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s string) bool { return validStatuses[s] }

// IsTerminal reports whether no further transition is permitted out of s.
func IsTerminal(s string) bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// IsActive reports whether an appointment in status s holds its slot.
func IsActive(s string) bool {
	return s == StatusPendingPayment || s == StatusBooked || s == StatusConfirmed
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to string) bool {
	return transitions[from][to]
}

// PaymentResult records the gateway side of a payment attempt.
type PaymentResult struct {
	TransactionID string     `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
	Status        string     `bson:"status,omitempty" json:"status,omitempty"`
	Amount        float64    `bson:"amount,omitempty" json:"amount,omitempty"`
	PaidAt        *time.Time `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
}

type Appointment struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AppointmentNumber string             `bson:"appointmentNumber" json:"appointmentNumber"`
	PatientID         primitive.ObjectID `bson:"patientId" json:"patientId"`
	DoctorID          primitive.ObjectID `bson:"doctorId" json:"doctorId"`
	DepartmentID      primitive.ObjectID `bson:"departmentId" json:"departmentId"`
	ServiceID         primitive.ObjectID `bson:"serviceId" json:"serviceId"`
	ScheduledAt       time.Time          `bson:"scheduledAt" json:"scheduledAt"`
	DurationMinutes   int                `bson:"durationMinutes" json:"durationMinutes"`
	Status            string             `bson:"status" json:"status"`
	PaymentStatus     string             `bson:"paymentStatus" json:"paymentStatus"`
	ConsultationFee   float64            `bson:"consultationFee" json:"consultationFee"`
	Notes             string             `bson:"notes,omitempty" json:"notes,omitempty"`
	PaymentResult     PaymentResult      `bson:"paymentResult,omitempty" json:"paymentResult,omitempty"`
	CancelledAt       *time.Time         `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CompletedAt       *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// End returns the exclusive end instant of the appointment. Legacy records
// without a duration count as 30 minutes.
func (a *Appointment) End() time.Time {
	d := a.DurationMinutes
	if d <= 0 {
		d = 30
	}
	return a.ScheduledAt.Add(time.Duration(d) * time.Minute)
}

// NewAppointment builds a pending_payment appointment, validating the fields
// the storage layer used to guard with schema hooks.
func NewAppointment(patientID, doctorID, departmentID, serviceID primitive.ObjectID, scheduledAt time.Time, durationMinutes int, fee float64) (*Appointment, error) {
	if patientID.IsZero() || doctorID.IsZero() || departmentID.IsZero() || serviceID.IsZero() {
		return nil, errors.New("missing required reference")
	}
	if scheduledAt.IsZero() {
		return nil, errors.New("scheduledAt is required")
	}
	if durationMinutes == 0 {
		durationMinutes = 30
	}
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		return nil, fmt.Errorf("durationMinutes must be between %d and %d", MinDurationMinutes, MaxDurationMinutes)
	}
	if fee < 0 {
		return nil, errors.New("consultationFee cannot be negative")
	}
	now := time.Now().UTC()
	return &Appointment{
		AppointmentNumber: NewAppointmentNumber(),
		PatientID:         patientID,
		DoctorID:          doctorID,
		DepartmentID:      departmentID,
		ServiceID:         serviceID,
		ScheduledAt:       scheduledAt.UTC(),
		DurationMinutes:   durationMinutes,
		Status:            StatusPendingPayment,
		PaymentStatus:     PaymentUnpaid,
		ConsultationFee:   RoundFee(fee),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// NewAppointmentNumber returns a human-readable identifier, e.g.
// APT-1735689600000-4821.
func NewAppointmentNumber() string {
	return fmt.Sprintf("APT-%d-%04d", time.Now().UnixMilli(), 1000+rand.Intn(9000))
}

// RoundFee rounds a monetary amount to two decimal places.
func RoundFee(f float64) float64 {
	return math.Round(f*100) / 100
}

// SanitizeNotes strips angle brackets and caps the length.
func SanitizeNotes(notes string) string {
	notes = strings.NewReplacer("<", "", ">", "").Replace(notes)
	notes = strings.TrimSpace(notes)
	if len(notes) > MaxNotesLength {
		notes = notes[:MaxNotesLength]
	}
	return notes
}
