package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/carelink/clinic-api/internal/middleware"
	"github.com/carelink/clinic-api/internal/models"
	"github.com/carelink/clinic-api/internal/utils"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone"`
}

// Register creates a patient account. Doctor and admin accounts are
// provisioned by an admin, never through this endpoint.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	ctx := c.Request.Context()
	users := h.DB.Collection(colUsers)

	if count, err := users.CountDocuments(ctx, bson.M{"email": email}); err == nil && count > 0 {
		respondError(c, http.StatusConflict, "An account with this email already exists")
		return
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	user := models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: hashed,
		Role:     models.RolePatient,
		Phone:    strings.TrimSpace(req.Phone),
	}

	res, err := users.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			respondError(c, http.StatusConflict, "An account with this email already exists")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to create account")
		return
	}
	user.ID = res.InsertedID.(primitive.ObjectID)

	h.Log.Info().Str("event", "USER_REGISTERED").Str("userId", user.ID.Hex()).Msg("account created")
	respondData(c, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials and sets the HTTP-only session cookie. The token
// is also returned in the body for non-browser clients.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var user models.User
	err := h.DB.Collection(colUsers).FindOne(c.Request.Context(), bson.M{"email": email}).Decode(&user)
	if err != nil || !utils.CheckPasswordHash(req.Password, user.Password) {
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := utils.GenerateJWT([]byte(h.Cfg.JWTSecret), user.ID.Hex(), user.Role)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Could not create session")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token,
		int(utils.TokenLifetime.Seconds()), "/", "", h.Cfg.IsProduction(), true)

	h.Log.Info().Str("event", "USER_LOGIN").Str("userId", user.ID.Hex()).Str("role", user.Role).Msg("login")
	respondData(c, http.StatusOK, gin.H{"token": token, "user": user})
}

// Logout clears the session cookie.
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", h.Cfg.IsProduction(), true)
	respondMessage(c, http.StatusOK, "Logged out")
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authorized")
		return
	}

	var user models.User
	err := h.DB.Collection(colUsers).FindOne(c.Request.Context(), bson.M{"_id": userID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		respondError(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	respondData(c, http.StatusOK, user)
}
