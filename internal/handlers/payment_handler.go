package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/carelink/clinic-api/internal/models"
	"github.com/carelink/clinic-api/internal/payments"
)

type initiatePaymentRequest struct {
	AppointmentID string `json:"appointmentId" binding:"required"`
}

// InitiatePayment prepares the signed gateway form for one of the patient's
// unpaid appointments. The SPA renders the returned fields into a hidden
// form and submits it to the gateway URL.
func (h *Handler) InitiatePayment(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	aptID, err := primitive.ObjectIDFromHex(req.AppointmentID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid appointmentId")
		return
	}
	patientID, ok := actorID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authorized")
		return
	}

	successURL := h.Cfg.APIBaseURL + "/api/payments/esewa/success"
	failureURL := h.Cfg.APIBaseURL + "/api/payments/esewa/failure"

	result, err := h.Payments.Initiate(c.Request.Context(), aptID, patientID, successURL, failureURL)
	switch err {
	case nil:
	case payments.ErrAppointmentNotFound:
		respondError(c, http.StatusNotFound, "Appointment not found")
		return
	case payments.ErrAlreadyPaid:
		respondError(c, http.StatusConflict, "Appointment is already paid")
		return
	default:
		respondError(c, http.StatusInternalServerError, "Failed to initiate payment")
		return
	}
	respondData(c, http.StatusOK, result)
}

// EsewaSuccess handles the gateway success callback. The gateway drives a
// browser here, so the outcome is always a redirect to the frontend, never a
// JSON error.
func (h *Handler) EsewaSuccess(c *gin.Context) {
	apt, err := h.Payments.ConfirmSuccess(c.Request.Context(), callbackParams(c))
	if err != nil {
		c.Redirect(http.StatusFound, h.Cfg.FrontendURL+"/payment/failure")
		return
	}
	c.Redirect(http.StatusFound, h.Cfg.FrontendURL+"/payment/success?appointmentId="+apt.ID.Hex())
}

// EsewaFailure handles the gateway failure/cancel callback and sends the
// browser back to the retry page.
func (h *Handler) EsewaFailure(c *gin.Context) {
	h.Payments.RecordFailure(c.Request.Context(), callbackParams(c))
	c.Redirect(http.StatusFound, h.Cfg.FrontendURL+"/payment/failure")
}

// VerifyPayment lets the frontend poll an appointment's payment state after
// returning from the gateway.
func (h *Handler) VerifyPayment(c *gin.Context) {
	aptID, err := primitive.ObjectIDFromHex(c.Param("appointmentId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid appointmentId")
		return
	}
	userID, ok := actorID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authorized")
		return
	}

	filter := bson.M{"_id": aptID}
	if actorRole(c) == models.RolePatient {
		filter["patientId"] = userID
	}

	var apt models.Appointment
	err = h.DB.Collection(colAppointments).FindOne(c.Request.Context(), filter).Decode(&apt)
	if err == mongo.ErrNoDocuments {
		respondError(c, http.StatusNotFound, "Appointment not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load appointment")
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"appointmentId": apt.ID.Hex(),
		"status":        apt.Status,
		"paymentStatus": apt.PaymentStatus,
		"paymentResult": apt.PaymentResult,
	})
}

// callbackParams flattens gateway callback input. eSewa sends GETs with
// query parameters and POSTs with form fields; both may carry the
// base64-encoded data blob.
func callbackParams(c *gin.Context) map[string]string {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err == nil {
			for key, values := range c.Request.PostForm {
				if len(values) > 0 {
					params[key] = values[0]
				}
			}
		}
	}
	return params
}
