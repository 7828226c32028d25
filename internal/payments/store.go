package payments

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/carelink/clinic-api/internal/models"
)

var (
	ErrAppointmentNotFound = errors.New("payments: appointment not found")
	ErrAlreadyPaid         = errors.New("payments: appointment already paid")
	ErrTransactionNotFound = errors.New("payments: no appointment for transaction")
)

// Store is the persistence surface the payment flow needs. ConfirmPayment
// must be atomic: a crash mid-update leaves the appointment untouched.
type Store interface {
	// FindForPatient loads an appointment owned by the given patient.
	FindForPatient(ctx context.Context, appointmentID, patientID primitive.ObjectID) (*models.Appointment, error)

	// AttachTransaction records a pending payment attempt on the appointment.
	AttachTransaction(ctx context.Context, appointmentID primitive.ObjectID, result models.PaymentResult) error

	// ConfirmPayment atomically marks the appointment found by transaction id
	// as paid and booked, stamping the payment result. It is idempotent: when
	// the appointment is already paid it returns (apt, false, nil) without
	// mutating anything, so a duplicate gateway retry is a safe no-op.
	ConfirmPayment(ctx context.Context, transactionID string) (apt *models.Appointment, updated bool, err error)

	// ResetPayment returns the appointment found by transaction id to the
	// pending_payment/unpaid state after a gateway failure callback.
	ResetPayment(ctx context.Context, transactionID string) error
}
