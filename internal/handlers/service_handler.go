package handlers

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carelink/clinic-api/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListServices is the public catalog: department filter, name search and
// page/limit pagination.
func (h *Handler) ListServices(c *gin.Context) {
	ctx := c.Request.Context()
	filter := bson.M{"isActive": true}

	if hex := c.Query("departmentId"); hex != "" {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid departmentId")
			return
		}
		filter["departmentId"] = id
	}
	if search := c.Query("search"); search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	col := h.DB.Collection(colServices)
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to count services")
		return
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetSkip(int64(page-1) * int64(limit)).
		SetLimit(int64(limit))
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load services")
		return
	}
	defer cursor.Close(ctx)

	services := make([]models.Service, 0)
	if err := cursor.All(ctx, &services); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to decode services")
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"services": services,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// GetService returns one active catalog entry.
func (h *Handler) GetService(c *gin.Context) {
	serviceID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid service ID")
		return
	}

	var service models.Service
	err = h.DB.Collection(colServices).FindOne(c.Request.Context(), bson.M{"_id": serviceID, "isActive": true}).Decode(&service)
	if err == mongo.ErrNoDocuments {
		respondError(c, http.StatusNotFound, "Service not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load service")
		return
	}
	respondData(c, http.StatusOK, service)
}

type serviceRequest struct {
	Name            string  `json:"name" binding:"required"`
	Description     string  `json:"description"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"durationMinutes"`
	DepartmentID    string  `json:"departmentId" binding:"required"`
}

// CreateService is admin only.
func (h *Handler) CreateService(c *gin.Context) {
	var req serviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	deptID, err := primitive.ObjectIDFromHex(req.DepartmentID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid departmentId")
		return
	}

	ctx := c.Request.Context()
	if count, err := h.DB.Collection(colDepartments).CountDocuments(ctx, bson.M{"_id": deptID, "isActive": true}); err != nil || count == 0 {
		respondError(c, http.StatusNotFound, "Department not found")
		return
	}

	service, err := models.NewService(req.Name, req.Description, req.Price, req.DurationMinutes, deptID)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.DB.Collection(colServices).InsertOne(ctx, service)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create service")
		return
	}
	service.ID = res.InsertedID.(primitive.ObjectID)
	respondData(c, http.StatusCreated, service)
}

// UpdateService patches mutable catalog fields. Admin only.
func (h *Handler) UpdateService(c *gin.Context) {
	serviceID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid service ID")
		return
	}

	var req struct {
		Name            *string  `json:"name"`
		Description     *string  `json:"description"`
		Price           *float64 `json:"price"`
		DurationMinutes *int     `json:"durationMinutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	set := bson.M{"updatedAt": nowUTC()}
	if req.Name != nil {
		if *req.Name == "" {
			respondError(c, http.StatusBadRequest, "name cannot be empty")
			return
		}
		set["name"] = *req.Name
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			respondError(c, http.StatusBadRequest, "price cannot be negative")
			return
		}
		set["price"] = models.RoundFee(*req.Price)
	}
	if req.DurationMinutes != nil {
		if *req.DurationMinutes < models.MinDurationMinutes || *req.DurationMinutes > models.MaxDurationMinutes {
			respondError(c, http.StatusBadRequest, "durationMinutes out of range")
			return
		}
		set["durationMinutes"] = *req.DurationMinutes
	}
	if len(set) == 1 {
		respondError(c, http.StatusBadRequest, "No fields to update")
		return
	}

	res, err := h.DB.Collection(colServices).UpdateOne(c.Request.Context(),
		bson.M{"_id": serviceID}, bson.M{"$set": set})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update service")
		return
	}
	if res.MatchedCount == 0 {
		respondError(c, http.StatusNotFound, "Service not found")
		return
	}
	respondMessage(c, http.StatusOK, "Service updated")
}

// DeleteService deactivates a catalog entry. Admin only.
func (h *Handler) DeleteService(c *gin.Context) {
	serviceID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid service ID")
		return
	}

	res, err := h.DB.Collection(colServices).UpdateOne(c.Request.Context(),
		bson.M{"_id": serviceID},
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": nowUTC()}})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete service")
		return
	}
	if res.MatchedCount == 0 {
		respondError(c, http.StatusNotFound, "Service not found")
		return
	}
	respondMessage(c, http.StatusOK, "Service removed")
}
