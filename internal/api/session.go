package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"shopassist/internal/conversation"
)

type cookieNames struct {
	session    string
	csrf       string
	csrfHeader string
	csrfField  string
}

var defaultCookieNames = cookieNames{
	session:    "shopassist_session",
	csrf:       "csrf_token",
	csrfHeader: "X-CSRF-Token",
	csrfField:  "csrf_token",
}

const (
	cookieMaxAge  = 30 * 24 * 3600
	sessionKeyCtx = "session_key"
)

// store returns the conversation for the browser, issuing a session cookie
// on first contact.
func (h *Handler) store(c *gin.Context) *conversation.Store {
	if key := c.GetString(sessionKeyCtx); key != "" {
		return h.sessions.GetOrCreate(key)
	}
	key, err := c.Cookie(h.cookies.session)
	if err != nil || !validKey(key) {
		key = uuid.NewString()
		setCookie(c, &http.Cookie{
			Name:     h.cookies.session,
			Value:    key,
			MaxAge:   cookieMaxAge,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	c.Set(sessionKeyCtx, key)
	return h.sessions.GetOrCreate(key)
}

// existingStore looks up the browser's conversation without creating one.
func (h *Handler) existingStore(c *gin.Context) (*conversation.Store, bool) {
	key, err := c.Cookie(h.cookies.session)
	if err != nil || !validKey(key) {
		return nil, false
	}
	return h.sessions.Get(key)
}

func validKey(key string) bool {
	_, err := uuid.Parse(key)
	return err == nil
}

// ensureCSRFCookie returns the current CSRF token, minting one when absent.
func (h *Handler) ensureCSRFCookie(c *gin.Context) string {
	if token, err := c.Cookie(h.cookies.csrf); err == nil && token != "" {
		return token
	}
	token, err := newCSRFToken()
	if err != nil {
		return ""
	}
	setCookie(c, &http.Cookie{
		Name:     h.cookies.csrf,
		Value:    token,
		MaxAge:   cookieMaxAge,
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
	return token
}

// CSRFMiddleware enforces double-submit CSRF protection: the token from the
// form field or header must match the cookie.
func (h *Handler) CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requiresCSRFCheck(c.Request.Method) {
			c.Next()
			return
		}
		if err := parseForm(c.Writer, c.Request); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}
		token := c.GetHeader(h.cookies.csrfHeader)
		if token == "" {
			token = c.Request.PostForm.Get(h.cookies.csrfField)
		}
		cookieToken, err := c.Cookie(h.cookies.csrf)
		if err != nil || token == "" || cookieToken == "" || token != cookieToken {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid csrf token"})
			return
		}
		c.Next()
	}
}

func parseForm(w http.ResponseWriter, r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+(1<<20))
		return r.ParseMultipartForm(maxUploadBytes)
	}
	return r.ParseForm()
}

func requiresCSRFCheck(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

func newCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
