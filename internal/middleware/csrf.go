package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// CSRFCookie is readable by the SPA, which echoes the value back in the
	// X-CSRF-Token header on state-changing requests.
	CSRFCookie = "csrf-token"
	CSRFHeader = "X-CSRF-Token"

	csrfTTL = 15 * time.Minute
)

// CSRF issues a fresh token on safe methods and verifies the echoed token on
// state-changing ones. Paths matching a prefix in exempt (the login/register
// endpoints, which cannot carry a token yet) skip verification.
type CSRF struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	exempt []string
	secure bool
}

func NewCSRF(exemptPrefixes []string, secure bool) *CSRF {
	m := &CSRF{tokens: make(map[string]time.Time), exempt: exemptPrefixes, secure: secure}
	go m.sweep(5 * time.Minute)
	return m
}

func (m *CSRF) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			m.issue(c)
			c.Next()
			return
		}

		for _, prefix := range m.exempt {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		token := c.GetHeader(CSRFHeader)
		if token == "" {
			if cookie, err := c.Cookie(CSRFCookie); err == nil {
				token = cookie
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "CSRF token missing"})
			return
		}

		m.mu.Lock()
		expiry, ok := m.tokens[token]
		if ok && time.Now().After(expiry) {
			delete(m.tokens, token)
			ok = false
		}
		m.mu.Unlock()

		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Invalid CSRF token"})
			return
		}
		c.Next()
	}
}

func (m *CSRF) issue(c *gin.Context) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return
	}
	token := hex.EncodeToString(buf)

	m.mu.Lock()
	m.tokens[token] = time.Now().Add(csrfTTL)
	m.mu.Unlock()

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CSRFCookie, token, int(csrfTTL.Seconds()), "/", "", m.secure, false)
}

func (m *CSRF) sweep(interval time.Duration) {
	for range time.Tick(interval) {
		now := time.Now()
		m.mu.Lock()
		for token, expiry := range m.tokens {
			if now.After(expiry) {
				delete(m.tokens, token)
			}
		}
		m.mu.Unlock()
	}
}
