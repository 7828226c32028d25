package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carelink/clinic-api/internal/models"
)

// ListDepartments is public and returns active departments alphabetically.
func (h *Handler) ListDepartments(c *gin.Context) {
	ctx := c.Request.Context()
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := h.DB.Collection(colDepartments).Find(ctx, bson.M{"isActive": true}, opts)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load departments")
		return
	}
	defer cursor.Close(ctx)

	departments := make([]models.Department, 0)
	if err := cursor.All(ctx, &departments); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to decode departments")
		return
	}
	respondData(c, http.StatusOK, departments)
}

type departmentRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateDepartment is admin only. Slugs are unique; a clash means the
// department already exists.
func (h *Handler) CreateDepartment(c *gin.Context) {
	var req departmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	dept, err := models.NewDepartment(req.Name)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	if count, err := h.DB.Collection(colDepartments).CountDocuments(ctx, bson.M{"slug": dept.Slug}); err == nil && count > 0 {
		respondError(c, http.StatusConflict, "A department with this name already exists")
		return
	}

	res, err := h.DB.Collection(colDepartments).InsertOne(ctx, dept)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create department")
		return
	}
	dept.ID = res.InsertedID.(primitive.ObjectID)
	respondData(c, http.StatusCreated, dept)
}

// UpdateDepartment renames a department, re-deriving its slug. Admin only.
func (h *Handler) UpdateDepartment(c *gin.Context) {
	deptID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid department ID")
		return
	}
	var req departmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(c, http.StatusBadRequest, "name is required")
		return
	}

	ctx := c.Request.Context()
	res, err := h.DB.Collection(colDepartments).UpdateOne(ctx,
		bson.M{"_id": deptID},
		bson.M{"$set": bson.M{"name": name, "slug": models.Slugify(name), "updatedAt": nowUTC()}})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update department")
		return
	}
	if res.MatchedCount == 0 {
		respondError(c, http.StatusNotFound, "Department not found")
		return
	}
	respondMessage(c, http.StatusOK, "Department updated")
}

// DeleteDepartment deactivates a department rather than removing it, so
// existing appointments keep their reference. Admin only.
func (h *Handler) DeleteDepartment(c *gin.Context) {
	deptID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid department ID")
		return
	}

	ctx := c.Request.Context()
	res, err := h.DB.Collection(colDepartments).UpdateOne(ctx,
		bson.M{"_id": deptID},
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": nowUTC()}})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete department")
		return
	}
	if res.MatchedCount == 0 {
		respondError(c, http.StatusNotFound, "Department not found")
		return
	}
	respondMessage(c, http.StatusOK, "Department removed")
}
