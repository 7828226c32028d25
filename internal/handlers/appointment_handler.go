package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carelink/clinic-api/internal/models"
	"github.com/carelink/clinic-api/internal/scheduling"
)

type createAppointmentRequest struct {
	DoctorID        string `json:"doctorId" binding:"required"`
	ServiceID       string `json:"serviceId" binding:"required"`
	ScheduledAt     string `json:"scheduledAt" binding:"required"` // RFC3339
	DurationMinutes int    `json:"durationMinutes"`                // defaults to the service duration
	Notes           string `json:"notes"`
}

// CreateAppointment books a slot for the authenticated patient. The record
// starts in pending_payment; payment confirmation moves it to booked.
func (h *Handler) CreateAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	patientID, ok := actorID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authorized")
		return
	}

	doctorID, err := primitive.ObjectIDFromHex(req.DoctorID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid doctorId")
		return
	}
	serviceID, err := primitive.ObjectIDFromHex(req.ServiceID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid serviceId")
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid scheduledAt, use RFC3339")
		return
	}
	if !scheduledAt.After(time.Now()) {
		respondError(c, http.StatusBadRequest, "Scheduled time must be in the future")
		return
	}

	ctx := c.Request.Context()

	var doctor models.DoctorProfile
	err = h.DB.Collection(colDoctors).FindOne(ctx, bson.M{"_id": doctorID, "isActive": true}).Decode(&doctor)
	if err == mongo.ErrNoDocuments {
		respondError(c, http.StatusNotFound, "Doctor not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load doctor")
		return
	}

	var service models.Service
	err = h.DB.Collection(colServices).FindOne(ctx, bson.M{"_id": serviceID, "isActive": true}).Decode(&service)
	if err == mongo.ErrNoDocuments {
		respondError(c, http.StatusNotFound, "Service not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load service")
		return
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = service.DurationMinutes
	}
	apt, err := models.NewAppointment(patientID, doctorID, doctor.DepartmentID, serviceID,
		scheduledAt, duration, doctor.ConsultationFee)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	apt.Notes = models.SanitizeNotes(req.Notes)

	// The requested window must start on one of the doctor's advertised
	// slots for that day.
	candidates, reason := scheduling.GenerateSlots(doctor.Availability, scheduledAt)
	if reason != "" {
		respondError(c, http.StatusBadRequest, reason)
		return
	}
	aligned := false
	for _, slot := range candidates {
		if slot.Start.Equal(scheduledAt) {
			aligned = true
			break
		}
	}
	if !aligned {
		respondError(c, http.StatusBadRequest, "Requested time is outside the doctor's schedule")
		return
	}

	existing, err := h.activeAppointmentsOn(c, doctorID, scheduledAt)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to check availability")
		return
	}
	for i := range existing {
		if scheduling.Overlaps(apt.ScheduledAt, apt.End(), existing[i].ScheduledAt, existing[i].End()) {
			respondError(c, http.StatusBadRequest, "This slot is already booked")
			return
		}
	}

	res, err := h.DB.Collection(colAppointments).InsertOne(ctx, apt)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create appointment")
		return
	}
	apt.ID = res.InsertedID.(primitive.ObjectID)

	h.Log.Info().
		Str("event", "APPOINTMENT_CREATED").
		Str("appointmentId", apt.ID.Hex()).
		Str("patientId", patientID.Hex()).
		Str("doctorId", doctorID.Hex()).
		Time("scheduledAt", apt.ScheduledAt).
		Msg("appointment created")

	respondData(c, http.StatusCreated, apt)
}

// GetMyAppointments lists the authenticated patient's appointments, newest
// first.
func (h *Handler) GetMyAppointments(c *gin.Context) {
	patientID, ok := actorID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authorized")
		return
	}
	h.listAppointments(c, bson.M{"patientId": patientID})
}

// GetDoctorAppointments lists appointments for a doctor. Doctors see their
// own schedule; admins pick a doctor with the doctorId query parameter.
func (h *Handler) GetDoctorAppointments(c *gin.Context) {
	ctx := c.Request.Context()
	filter := bson.M{}

	switch actorRole(c) {
	case models.RoleDoctor:
		userID, ok := actorID(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "Not authorized")
			return
		}
		var doctor models.DoctorProfile
		if err := h.DB.Collection(colDoctors).FindOne(ctx, bson.M{"userId": userID}).Decode(&doctor); err != nil {
			respondError(c, http.StatusNotFound, "Doctor profile not found")
			return
		}
		filter["doctorId"] = doctor.ID
	case models.RoleAdmin:
		if hex := c.Query("doctorId"); hex != "" {
			id, err := primitive.ObjectIDFromHex(hex)
			if err != nil {
				respondError(c, http.StatusBadRequest, "Invalid doctorId")
				return
			}
			filter["doctorId"] = id
		}
	default:
		respondError(c, http.StatusForbidden, "Access denied")
		return
	}

	if status := c.Query("status"); status != "" {
		if !models.ValidStatus(status) {
			respondError(c, http.StatusBadRequest, "Unknown status")
			return
		}
		filter["status"] = status
	}
	if dateStr := c.Query("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid date, use YYYY-MM-DD")
			return
		}
		filter["scheduledAt"] = bson.M{"$gte": date, "$lt": date.Add(24 * time.Hour)}
	}

	h.listAppointments(c, filter)
}

func (h *Handler) listAppointments(c *gin.Context, filter bson.M) {
	ctx := c.Request.Context()
	opts := options.Find().SetSort(bson.D{{Key: "scheduledAt", Value: -1}})
	cursor, err := h.DB.Collection(colAppointments).Find(ctx, filter, opts)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load appointments")
		return
	}
	defer cursor.Close(ctx)

	appointments := make([]models.Appointment, 0)
	if err := cursor.All(ctx, &appointments); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to decode appointments")
		return
	}
	respondData(c, http.StatusOK, appointments)
}

// GetAppointment returns one appointment to its patient, its doctor or an
// admin.
func (h *Handler) GetAppointment(c *gin.Context) {
	apt, ok := h.loadAuthorizedAppointment(c)
	if !ok {
		return
	}
	respondData(c, http.StatusOK, apt)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// UpdateAppointmentStatus moves an appointment through its lifecycle.
// Patients may only cancel their own appointments; doctors act on their own
// schedule; admins on anything. Cancelling an already-cancelled appointment
// succeeds without touching the record.
func (h *Handler) UpdateAppointmentStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !models.ValidStatus(req.Status) {
		respondError(c, http.StatusBadRequest, "Unknown status")
		return
	}

	apt, ok := h.loadAuthorizedAppointment(c)
	if !ok {
		return
	}
	role := actorRole(c)

	if role == models.RolePatient {
		if req.Status != models.StatusCancelled {
			respondError(c, http.StatusForbidden, "Patients may only cancel appointments")
			return
		}
		if apt.Status == models.StatusCancelled {
			respondData(c, http.StatusOK, apt)
			return
		}
	}

	if !models.CanTransition(apt.Status, req.Status) {
		respondError(c, http.StatusBadRequest, "Cannot change status from "+apt.Status+" to "+req.Status)
		return
	}

	now := time.Now().UTC()
	set := bson.M{"status": req.Status, "updatedAt": now}
	switch req.Status {
	case models.StatusCancelled:
		set["cancelledAt"] = now
	case models.StatusCompleted:
		set["completedAt"] = now
	}
	if req.Notes != "" && role != models.RolePatient {
		set["notes"] = models.SanitizeNotes(req.Notes)
	}

	ctx := c.Request.Context()
	res := h.DB.Collection(colAppointments).FindOneAndUpdate(ctx,
		bson.M{"_id": apt.ID, "status": apt.Status},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var updated models.Appointment
	if err := res.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			// Lost a race with a concurrent transition.
			respondError(c, http.StatusConflict, "Appointment was updated concurrently, retry")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to update appointment")
		return
	}

	h.Log.Info().
		Str("event", "APPOINTMENT_STATUS_CHANGED").
		Str("appointmentId", updated.ID.Hex()).
		Str("from", apt.Status).
		Str("to", updated.Status).
		Str("by", role).
		Msg("appointment status changed")

	respondData(c, http.StatusOK, updated)
}

// loadAuthorizedAppointment fetches the :id appointment and enforces the
// access matrix: the owning patient, the assigned doctor, or an admin. On
// failure the response has already been written.
func (h *Handler) loadAuthorizedAppointment(c *gin.Context) (*models.Appointment, bool) {
	aptID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid appointment ID")
		return nil, false
	}
	userID, ok := actorID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authorized")
		return nil, false
	}

	ctx := c.Request.Context()
	var apt models.Appointment
	err = h.DB.Collection(colAppointments).FindOne(ctx, bson.M{"_id": aptID}).Decode(&apt)
	if err == mongo.ErrNoDocuments {
		respondError(c, http.StatusNotFound, "Appointment not found")
		return nil, false
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load appointment")
		return nil, false
	}

	switch actorRole(c) {
	case models.RoleAdmin:
		return &apt, true
	case models.RolePatient:
		if apt.PatientID == userID {
			return &apt, true
		}
	case models.RoleDoctor:
		var doctor models.DoctorProfile
		if err := h.DB.Collection(colDoctors).FindOne(ctx, bson.M{"userId": userID}).Decode(&doctor); err == nil && apt.DoctorID == doctor.ID {
			return &apt, true
		}
	}
	respondError(c, http.StatusForbidden, "Access denied")
	return nil, false
}
