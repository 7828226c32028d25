// Package payments drives the eSewa payment lifecycle: initiation, the
// atomic success confirmation and the failure path.
package payments

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/carelink/clinic-api/internal/esewa"
	"github.com/carelink/clinic-api/internal/models"
)

var ErrMissingTransactionUUID = errors.New("payments: callback carries no transaction_uuid")

// Notifier delivers appointment confirmations. Delivery failures never
// affect the payment state.
type Notifier interface {
	SendPaymentConfirmation(apt *models.Appointment)
}

type Service struct {
	store    Store
	gateway  *esewa.Client
	notifier Notifier
	log      zerolog.Logger
}

func NewService(store Store, gateway *esewa.Client, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{store: store, gateway: gateway, notifier: notifier, log: log}
}

// InitiateResult carries everything the SPA needs to POST the payment form.
type InitiateResult struct {
	FormData        esewa.FormData `json:"formData"`
	GatewayURL      string         `json:"esewaUrl"`
	TransactionUUID string         `json:"transactionUUID"`
}

// Initiate prepares a signed eSewa form for an unpaid appointment owned by
// the patient and records the pending transaction on the record.
func (s *Service) Initiate(ctx context.Context, appointmentID, patientID primitive.ObjectID, successURL, failureURL string) (*InitiateResult, error) {
	apt, err := s.store.FindForPatient(ctx, appointmentID, patientID)
	if err != nil {
		return nil, err
	}
	if apt.PaymentStatus == models.PaymentPaid {
		return nil, ErrAlreadyPaid
	}

	txn := esewa.NewTransactionUUID()
	if err := s.store.AttachTransaction(ctx, apt.ID, models.PaymentResult{
		TransactionID: txn,
		Status:        "pending",
		Amount:        apt.ConsultationFee,
	}); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("event", "PAYMENT_INITIATED").
		Str("appointmentId", apt.ID.Hex()).
		Str("transactionId", txn).
		Float64("amount", apt.ConsultationFee).
		Msg("payment initiated")

	return &InitiateResult{
		FormData:        s.gateway.PaymentForm(apt.ConsultationFee, txn, successURL, failureURL),
		GatewayURL:      s.gateway.GatewayURL(),
		TransactionUUID: txn,
	}, nil
}

// ConfirmSuccess handles the gateway success callback: verify the signature,
// look up the appointment by transaction id, and atomically flip it to
// paid/booked. The confirmation email is best-effort and is only sent when
// this call actually performed the transition, so a duplicate callback never
// re-notifies.
func (s *Service) ConfirmSuccess(ctx context.Context, params map[string]string) (*models.Appointment, error) {
	fields, err := esewa.DecodeCallback(params)
	if err != nil {
		s.log.Warn().Str("event", "PAYMENT_CALLBACK_ERROR").Err(err).Msg("undecodable payment callback")
		return nil, err
	}
	if err := s.gateway.VerifyCallback(fields); err != nil {
		s.log.Warn().
			Str("event", "PAYMENT_SIGNATURE_INVALID").
			Str("transactionId", fields["transaction_uuid"]).
			Err(err).
			Msg("rejected payment callback")
		return nil, err
	}

	txn := fields["transaction_uuid"]
	if txn == "" {
		return nil, ErrMissingTransactionUUID
	}

	apt, updated, err := s.store.ConfirmPayment(ctx, txn)
	if err != nil {
		s.log.Error().Str("event", "PAYMENT_CALLBACK_ERROR").Str("transactionId", txn).Err(err).Msg("payment confirmation failed")
		return nil, err
	}

	if updated {
		s.log.Info().
			Str("event", "APPOINTMENT_PAYMENT_SUCCESS").
			Str("appointmentId", apt.ID.Hex()).
			Str("transactionId", txn).
			Float64("amount", apt.ConsultationFee).
			Msg("payment confirmed")
		if s.notifier != nil {
			s.notifier.SendPaymentConfirmation(apt)
		}
	} else {
		s.log.Info().Str("transactionId", txn).Msg("duplicate payment callback ignored")
	}
	return apt, nil
}

// RecordFailure handles the gateway failure callback. Signature verification
// is skipped on this path (eSewa does not sign failures); the appointment is
// returned to pending_payment so the patient can retry.
func (s *Service) RecordFailure(ctx context.Context, params map[string]string) {
	fields, err := esewa.DecodeCallback(params)
	if err != nil {
		s.log.Warn().Err(err).Msg("undecodable payment failure callback")
		return
	}
	txn := fields["transaction_uuid"]
	if txn == "" {
		return
	}
	if err := s.store.ResetPayment(ctx, txn); err != nil {
		s.log.Warn().Str("transactionId", txn).Err(err).Msg("failed to reset payment state")
		return
	}
	s.log.Info().Str("event", "APPOINTMENT_PAYMENT_FAILED").Str("transactionId", txn).Msg("payment failed")
}
