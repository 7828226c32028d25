package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/carelink/clinic-api/internal/models"
)

// doctorListing joins the profile with the doctor's user record and
// department for the public directory.
type doctorListing struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Department      string              `json:"department"`
	DepartmentID    string              `json:"departmentId"`
	Qualifications  string              `json:"qualifications"`
	ExperienceYears int                 `json:"experienceYears"`
	ConsultationFee float64             `json:"consultationFee"`
	Availability    models.Availability `json:"availability"`
}

// ListDoctors is the public doctor directory, optionally filtered by
// department.
func (h *Handler) ListDoctors(c *gin.Context) {
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

	cursor, err := h.DB.Collection(colDoctors).Find(ctx, filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load doctors")
		return
	}
	defer cursor.Close(ctx)

	var profiles []models.DoctorProfile
	if err := cursor.All(ctx, &profiles); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to decode doctors")
		return
	}

	listings := make([]doctorListing, 0, len(profiles))
	users, departments := h.doctorLookups(c, profiles)
	for _, p := range profiles {
		listings = append(listings, doctorListing{
			ID:              p.ID.Hex(),
			Name:            users[p.UserID],
			Department:      departments[p.DepartmentID],
			DepartmentID:    p.DepartmentID.Hex(),
			Qualifications:  p.Qualifications,
			ExperienceYears: p.ExperienceYears,
			ConsultationFee: p.ConsultationFee,
			Availability:    p.Availability,
		})
	}
	respondData(c, http.StatusOK, listings)
}

// GetDoctor returns one public doctor listing.
func (h *Handler) GetDoctor(c *gin.Context) {
	doctorID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid doctor ID")
		return
	}

	ctx := c.Request.Context()
	var profile models.DoctorProfile
	err = h.DB.Collection(colDoctors).FindOne(ctx, bson.M{"_id": doctorID, "isActive": true}).Decode(&profile)
	if err == mongo.ErrNoDocuments {
		respondError(c, http.StatusNotFound, "Doctor not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load doctor")
		return
	}

	users, departments := h.doctorLookups(c, []models.DoctorProfile{profile})
	respondData(c, http.StatusOK, doctorListing{
		ID:              profile.ID.Hex(),
		Name:            users[profile.UserID],
		Department:      departments[profile.DepartmentID],
		DepartmentID:    profile.DepartmentID.Hex(),
		Qualifications:  profile.Qualifications,
		ExperienceYears: profile.ExperienceYears,
		ConsultationFee: profile.ConsultationFee,
		Availability:    profile.Availability,
	})
}

// doctorLookups batch-resolves user names and department names for a set of
// profiles. Missing references resolve to empty strings rather than failing
// the listing.
func (h *Handler) doctorLookups(c *gin.Context, profiles []models.DoctorProfile) (map[primitive.ObjectID]string, map[primitive.ObjectID]string) {
	ctx := c.Request.Context()
	userIDs := make([]primitive.ObjectID, 0, len(profiles))
	deptIDs := make([]primitive.ObjectID, 0, len(profiles))
	for _, p := range profiles {
		userIDs = append(userIDs, p.UserID)
		deptIDs = append(deptIDs, p.DepartmentID)
	}

	users := make(map[primitive.ObjectID]string)
	if cursor, err := h.DB.Collection(colUsers).Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}}); err == nil {
		var found []models.User
		if cursor.All(ctx, &found) == nil {
			for _, u := range found {
				users[u.ID] = u.Name
			}
		}
	}

	departments := make(map[primitive.ObjectID]string)
	if cursor, err := h.DB.Collection(colDepartments).Find(ctx, bson.M{"_id": bson.M{"$in": deptIDs}}); err == nil {
		var found []models.Department
		if cursor.All(ctx, &found) == nil {
			for _, d := range found {
				departments[d.ID] = d.Name
			}
		}
	}
	return users, departments
}

type createDoctorRequest struct {
	UserID          string  `json:"userId" binding:"required"`
	DepartmentID    string  `json:"departmentId" binding:"required"`
	Qualifications  string  `json:"qualifications"`
	ExperienceYears int     `json:"experienceYears"`
	ConsultationFee float64 `json:"consultationFee"`
}

// CreateDoctor registers a doctor profile for an existing doctor-role user.
// Admin only.
func (h *Handler) CreateDoctor(c *gin.Context) {
	var req createDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid userId")
		return
	}
	deptID, err := primitive.ObjectIDFromHex(req.DepartmentID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid departmentId")
		return
	}

	ctx := c.Request.Context()
	var user models.User
	err = h.DB.Collection(colUsers).FindOne(ctx, bson.M{"_id": userID, "role": models.RoleDoctor}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		respondError(c, http.StatusNotFound, "No doctor user with that id")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load user")
		return
	}
	if count, err := h.DB.Collection(colDoctors).CountDocuments(ctx, bson.M{"userId": userID}); err == nil && count > 0 {
		respondError(c, http.StatusConflict, "A profile already exists for this doctor")
		return
	}

	profile, err := models.NewDoctorProfile(userID, deptID, req.Qualifications, req.ExperienceYears, req.ConsultationFee)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.DB.Collection(colDoctors).InsertOne(ctx, profile)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create doctor profile")
		return
	}
	profile.ID = res.InsertedID.(primitive.ObjectID)
	respondData(c, http.StatusCreated, profile)
}

// UpdateAvailability replaces a doctor's weekly template. Admin only. The
// template is validated in full before anything is written.
func (h *Handler) UpdateAvailability(c *gin.Context) {
	doctorID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid doctor ID")
		return
	}

	var av models.Availability
	if err := c.ShouldBindJSON(&av); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := av.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	res, err := h.DB.Collection(colDoctors).UpdateOne(ctx,
		bson.M{"_id": doctorID},
		bson.M{"$set": bson.M{"availability": av, "updatedAt": nowUTC()}})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update availability")
		return
	}
	if res.MatchedCount == 0 {
		respondError(c, http.StatusNotFound, "Doctor not found")
		return
	}

	h.Log.Info().
		Str("event", "DOCTOR_AVAILABILITY_UPDATED").
		Str("doctorId", doctorID.Hex()).
		Strs("days", av.Days).
		Str("window", av.StartTime+"-"+av.EndTime).
		Msg("availability updated")

	respondData(c, http.StatusOK, av)
}
