// Package services holds outbound side effects: email notifications.
package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-gomail/gomail"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/carelink/clinic-api/internal/config"
	"github.com/carelink/clinic-api/internal/models"
)

// EmailNotifier sends appointment confirmations over SMTP. All sends are
// fire-and-forget: a delivery failure is logged and never surfaces to the
// operation that triggered it.
type EmailNotifier struct {
	db     *mongo.Database
	dialer *gomail.Dialer
	from   string
	log    zerolog.Logger
}

// NewEmailNotifier returns a notifier, or a disabled one (nil dialer) when
// SMTP is not configured.
func NewEmailNotifier(db *mongo.Database, cfg *config.Config, log zerolog.Logger) *EmailNotifier {
	n := &EmailNotifier{db: db, from: cfg.EmailFrom, log: log}
	if cfg.SMTPHost == "" {
		log.Info().Msg("SMTP not configured, email notifications disabled")
		return n
	}
	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		port = 587
	}
	n.dialer = gomail.NewDialer(cfg.SMTPHost, port, cfg.SMTPUser, cfg.SMTPPass)
	return n
}

// SendPaymentConfirmation emails the patient after a successful payment.
func (n *EmailNotifier) SendPaymentConfirmation(apt *models.Appointment) {
	go n.sendConfirmation(apt)
}

func (n *EmailNotifier) sendConfirmation(apt *models.Appointment) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var patient models.User
	if err := n.db.Collection("users").FindOne(ctx, bson.M{"_id": apt.PatientID}).Decode(&patient); err != nil {
		n.log.Warn().Str("appointmentId", apt.ID.Hex()).Err(err).Msg("confirmation email skipped: patient lookup failed")
		return
	}
	doctorName := "your doctor"
	var profile models.DoctorProfile
	if err := n.db.Collection("doctors").FindOne(ctx, bson.M{"_id": apt.DoctorID}).Decode(&profile); err == nil {
		var doctor models.User
		if err := n.db.Collection("users").FindOne(ctx, bson.M{"_id": profile.UserID}).Decode(&doctor); err == nil {
			doctorName = doctor.Name
		}
	}

	subject := fmt.Sprintf("Appointment Confirmed (%s)", apt.AppointmentNumber)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour appointment %s with %s on %s is confirmed.\nConsultation fee: %.2f (paid).\n\nCarelink Clinic",
		patient.Name,
		apt.AppointmentNumber,
		doctorName,
		apt.ScheduledAt.Format("Mon, 2 Jan 2006 at 3:04 PM"),
		apt.ConsultationFee,
	)

	if n.dialer == nil {
		n.log.Info().Str("to", patient.Email).Str("subject", subject).Msg("email disabled, skipping send")
		return
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", patient.Email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(msg); err != nil {
		n.log.Warn().Str("to", patient.Email).Err(err).Msg("confirmation email failed")
		return
	}
	n.log.Info().Str("to", patient.Email).Str("appointmentId", apt.ID.Hex()).Msg("confirmation email sent")
}
