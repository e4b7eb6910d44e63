package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/reviewhub/backend/internal/model"
	"github.com/reviewhub/backend/internal/service"
)

// writeServiceError maps the service error taxonomy onto distinct
// caller-visible statuses. Token expiry and token invalidity are kept
// apart so clients can choose between refreshing and re-login; anything
// unrecognized is a persistence-layer fault and surfaces as 503, the
// only class callers may retry.
func writeServiceError(c *gin.Context, err error) {
	var locked *service.AccountLockedError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	case errors.As(err, &locked):
		retryAfter := int64(locked.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		c.JSON(http.StatusLocked, model.AccountLockedResponse{
			Error:      "account locked",
			RetryAfter: retryAfter,
		})
	case errors.Is(err, service.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
	case errors.Is(err, service.ErrTokenInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token invalid"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	}
}
