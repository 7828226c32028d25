// Package handlers holds the gin HTTP layer. Every handler is a method on
// Handler so routes share the database, config and services.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/carelink/clinic-api/internal/config"
	"github.com/carelink/clinic-api/internal/payments"
)

// Collection names.
const (
	colUsers        = "users"
	colDoctors      = "doctors"
	colDepartments  = "departments"
	colServices     = "services"
	colAppointments = "appointments"
)

type Handler struct {
	DB       *mongo.Database
	Cfg      *config.Config
	Payments *payments.Service
	Log      zerolog.Logger
}

func NewHandler(db *mongo.Database, cfg *config.Config, paySvc *payments.Service, log zerolog.Logger) *Handler {
	return &Handler{DB: db, Cfg: cfg, Payments: paySvc, Log: log}
}

// response is the envelope every endpoint answers with.
type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, response{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, response{Success: true, Message: msg})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, response{Success: false, Message: msg})
}

// actorID returns the authenticated user's id from the request context.
func actorID(c *gin.Context) (primitive.ObjectID, bool) {
	hex, ok := c.Get("userID")
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(hex.(string))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func nowUTC() time.Time { return time.Now().UTC() }

func actorRole(c *gin.Context) string {
	role, _ := c.Get("userRole")
	r, _ := role.(string)
	return r
}

// Health reports liveness plus database reachability.
func (h *Handler) Health(c *gin.Context) {
	status := "ok"
	dbStatus := "connected"
	if err := h.DB.Client().Ping(c.Request.Context(), nil); err != nil {
		status = "degraded"
		dbStatus = "unreachable"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "database": dbStatus})
}
