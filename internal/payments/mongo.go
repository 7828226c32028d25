package payments

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/carelink/clinic-api/internal/models"
)

// MongoStore persists payment state on the appointments collection. The
// confirmation step runs inside a session transaction so two concurrent
// gateway callbacks cannot half-apply or double-apply the update.
type MongoStore struct {
	client       *mongo.Client
	appointments *mongo.Collection
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{client: client, appointments: db.Collection("appointments")}
}

func (s *MongoStore) FindForPatient(ctx context.Context, appointmentID, patientID primitive.ObjectID) (*models.Appointment, error) {
	var apt models.Appointment
	err := s.appointments.FindOne(ctx, bson.M{"_id": appointmentID, "patientId": patientID}).Decode(&apt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &apt, nil
}

func (s *MongoStore) AttachTransaction(ctx context.Context, appointmentID primitive.ObjectID, result models.PaymentResult) error {
	_, err := s.appointments.UpdateOne(ctx, bson.M{"_id": appointmentID}, bson.M{"$set": bson.M{
		"paymentResult": result,
		"paymentStatus": models.PaymentUnpaid,
		"updatedAt":     time.Now().UTC(),
	}})
	return err
}

type confirmOutcome struct {
	apt     *models.Appointment
	updated bool
}

func (s *MongoStore) ConfirmPayment(ctx context.Context, transactionID string) (*models.Appointment, bool, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, false, err
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var apt models.Appointment
		err := s.appointments.FindOne(sc, bson.M{"paymentResult.transactionId": transactionID}).Decode(&apt)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTransactionNotFound
		}
		if err != nil {
			return nil, err
		}
		if apt.PaymentStatus == models.PaymentPaid {
			return confirmOutcome{apt: &apt}, nil
		}

		now := time.Now().UTC()
		_, err = s.appointments.UpdateOne(sc, bson.M{"_id": apt.ID}, bson.M{"$set": bson.M{
			"paymentStatus":        models.PaymentPaid,
			"status":               models.StatusBooked,
			"paymentResult.status": "completed",
			"paymentResult.paidAt": now,
			"updatedAt":            now,
		}})
		if err != nil {
			return nil, err
		}
		apt.PaymentStatus = models.PaymentPaid
		apt.Status = models.StatusBooked
		apt.PaymentResult.Status = "completed"
		apt.PaymentResult.PaidAt = &now
		apt.UpdatedAt = now
		return confirmOutcome{apt: &apt, updated: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	outcome := result.(confirmOutcome)
	return outcome.apt, outcome.updated, nil
}

func (s *MongoStore) ResetPayment(ctx context.Context, transactionID string) error {
	res, err := s.appointments.UpdateOne(ctx,
		bson.M{"paymentResult.transactionId": transactionID},
		bson.M{"$set": bson.M{
			"paymentStatus": models.PaymentUnpaid,
			"status":        models.StatusPendingPayment,
			"updatedAt":     time.Now().UTC(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrTransactionNotFound
	}
	return nil
}
