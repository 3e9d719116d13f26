package mw

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/ratelimit"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindValidation, apperr.KindInvalidTransition:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Abort writes err as the JSON error envelope and stops the chain. Errors
// that are not *apperr.Error are reported as internal. The original error is
// attached to the context for the request logger.
func Abort(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal(err)
	}
	_ = c.Error(err)

	body := gin.H{
		"success": false,
		"error":   e.Code,
		"message": e.Message,
	}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	if e.Kind == apperr.KindInvalidTransition {
		body["allowed_transitions"] = e.Allowed
	}
	if e.Kind == apperr.KindRateLimited {
		secs := ratelimit.RetryAfterSeconds(e.RetryAfter)
		c.Header("Retry-After", strconv.Itoa(secs))
		body["retry_after"] = secs
	}

	c.AbortWithStatusJSON(StatusFor(e.Kind), body)
}
