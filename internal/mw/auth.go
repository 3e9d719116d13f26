package mw

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/session"
)

const (
	deviceKey      = "device"
	tokenKey       = "session_token"
	adminKeyHeader = "X-Admin-Key"
)

// SessionValidator resolves a bearer token to a device.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*session.DeviceContext, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// DeviceAuth rejects requests without a live device session and stores the
// device context for later handlers.
func DeviceAuth(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			Abort(c, apperr.MissingToken())
			return
		}

		dc, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			Abort(c, err)
			return
		}

		c.Set(deviceKey, dc)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// Device returns the authenticated device set by DeviceAuth.
func Device(c *gin.Context) (*session.DeviceContext, bool) {
	v, ok := c.Get(deviceKey)
	if !ok {
		return nil, false
	}
	dc, ok := v.(*session.DeviceContext)
	return dc, ok
}

// SessionToken returns the bearer token accepted by DeviceAuth.
func SessionToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// AdminAuth guards administration routes with a shared key. An empty key
// disables the routes.
func AdminAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(adminKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			Abort(c, apperr.InvalidAdminKey())
			return
		}
		c.Next()
	}
}
