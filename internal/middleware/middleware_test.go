package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/clinic-api/internal/ratelimit"
	"github.com/carelink/clinic-api/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func csrfRouter() (*gin.Engine, *CSRF) {
	m := &CSRF{tokens: make(map[string]time.Time), exempt: []string{"/api/auth/login"}}
	r := gin.New()
	r.Use(m.Handler())
	r.GET("/api/slots", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/appointments", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.POST("/api/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, m
}

func TestCSRFIssuesTokenOnSafeMethod(t *testing.T) {
	r, _ := csrfRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/slots", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var issued string
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == CSRFCookie {
			issued = cookie.Value
		}
	}
	assert.NotEmpty(t, issued, "safe request should set a csrf cookie")
}

func TestCSRFBlocksMissingToken(t *testing.T) {
	r, _ := csrfRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/appointments", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCSRFAcceptsIssuedToken(t *testing.T) {
	r, m := csrfRouter()

	// Obtain a token via a safe request.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/slots", nil))
	var token string
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == CSRFCookie {
			token = cookie.Value
		}
	}
	require.NotEmpty(t, token)
	require.Len(t, m.tokens, 1)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", nil)
	req.Header.Set(CSRFHeader, token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCSRFRejectsUnknownToken(t *testing.T) {
	r, _ := csrfRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", nil)
	req.Header.Set(CSRFHeader, "deadbeef")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCSRFExemptsAuthEndpoints(t *testing.T) {
	r, _ := csrfRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func authRouter(secret []byte) *gin.Engine {
	r := gin.New()
	r.GET("/me", Auth(secret), func(c *gin.Context) {
		id, _ := c.Get("userID")
		role, _ := c.Get("userRole")
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})
	r.GET("/admin", Auth(secret), RequireRoles("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthAcceptsCookieToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := utils.GenerateJWT(secret, "user-1", "patient")
	require.NoError(t, err)

	r := authRouter(secret)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := utils.GenerateJWT(secret, "user-1", "patient")
	require.NoError(t, err)

	r := authRouter(secret)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsMissingAndBadTokens(t *testing.T) {
	secret := []byte("test-secret")
	r := authRouter(secret)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := utils.GenerateJWT([]byte("other-secret"), "user-1", "patient")
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: other})
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoles(t *testing.T) {
	secret := []byte("test-secret")
	r := authRouter(secret)

	patientToken, _ := utils.GenerateJWT(secret, "user-1", "patient")
	adminToken, _ := utils.GenerateJWT(secret, "user-2", "admin")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: patientToken})
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: adminToken})
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitBlocksOverLimit(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	r := gin.New()
	r.Use(RateLimit(store, 2, time.Minute, zerolog.Nop()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
