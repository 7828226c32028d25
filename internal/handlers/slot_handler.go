package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/carelink/clinic-api/internal/models"
	"github.com/carelink/clinic-api/internal/scheduling"
)

type slotListing struct {
	Date         string              `json:"date"`
	DoctorID     string              `json:"doctorId"`
	Availability models.Availability `json:"availability"`
	Slots        []scheduling.Slot   `json:"slots"`
}

// GetSlots lists the free slots for a doctor on a calendar date. This is a
// public read path: every degraded outcome (unknown doctor, day off, broken
// schedule) still answers 200 so the booking page can render the reason.
func (h *Handler) GetSlots(c *gin.Context) {
	doctorHex := c.Query("doctorId")
	dateStr := c.Query("date")
	if doctorHex == "" || dateStr == "" {
		respondError(c, http.StatusBadRequest, "doctorId and date are required")
		return
	}
	doctorID, err := primitive.ObjectIDFromHex(doctorHex)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid doctorId")
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid date, use YYYY-MM-DD")
		return
	}

	ctx := c.Request.Context()
	var doctor models.DoctorProfile
	err = h.DB.Collection(colDoctors).FindOne(ctx, bson.M{"_id": doctorID, "isActive": true}).Decode(&doctor)
	if err == mongo.ErrNoDocuments {
		c.JSON(http.StatusOK, response{Success: false, Message: "Doctor not found"})
		return
	}
	if err != nil {
		// Public read path: degrade, never 500.
		h.Log.Error().Err(err).Str("doctorId", doctorHex).Msg("slot listing: doctor lookup failed")
		c.JSON(http.StatusOK, response{Success: false, Message: "Slots are temporarily unavailable"})
		return
	}

	candidates, reason := scheduling.GenerateSlots(doctor.Availability, date)
	if reason != "" {
		c.JSON(http.StatusOK, response{Success: true, Message: reason, Data: slotListing{
			Date:         dateStr,
			DoctorID:     doctorHex,
			Availability: doctor.Availability,
			Slots:        []scheduling.Slot{},
		}})
		return
	}

	existing, err := h.activeAppointmentsOn(c, doctorID, date)
	if err != nil {
		h.Log.Error().Err(err).Str("doctorId", doctorHex).Msg("slot listing: appointment lookup failed")
		c.JSON(http.StatusOK, response{Success: false, Message: "Slots are temporarily unavailable", Data: slotListing{
			Date:         dateStr,
			DoctorID:     doctorHex,
			Availability: doctor.Availability,
			Slots:        []scheduling.Slot{},
		}})
		return
	}

	free := scheduling.FilterAvailable(candidates, existing)
	respondData(c, http.StatusOK, slotListing{
		Date:         dateStr,
		DoctorID:     doctorHex,
		Availability: doctor.Availability,
		Slots:        free,
	})
}

// activeAppointmentsOn loads the doctor's slot-holding appointments for the
// calendar day. The window is padded by the longest appointment length so a
// booking that starts the previous evening but spills into the day is seen.
func (h *Handler) activeAppointmentsOn(c *gin.Context, doctorID primitive.ObjectID, date time.Time) ([]models.Appointment, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)
	pad := time.Duration(models.MaxDurationMinutes) * time.Minute

	cursor, err := h.DB.Collection(colAppointments).Find(c.Request.Context(), bson.M{
		"doctorId":    doctorID,
		"status":      bson.M{"$in": models.ActiveStatuses},
		"scheduledAt": bson.M{"$gte": dayStart.Add(-pad), "$lt": dayEnd},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(c.Request.Context())

	var appointments []models.Appointment
	if err := cursor.All(c.Request.Context(), &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}
