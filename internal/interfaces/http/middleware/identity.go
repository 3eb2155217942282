package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shipbox/billing/internal/infrastructure/logger"
	"github.com/shipbox/billing/internal/interfaces/http/dto"
)

// Identity headers set by the authenticating gateway in front of this service
const (
	UserIDHeader        = "X-User-ID"
	AdminTokenHeader    = "X-Admin-Token"
	InternalTokenHeader = "X-Internal-Token"

	// UserIDKey is the gin context key holding the caller's user id
	UserIDKey = "user_id"

	// MaxUserIDLength bounds user ids taken from headers
	MaxUserIDLength = 128
)

// UserIdentity requires the X-User-ID header and stores it on the context.
// Authentication happens upstream; this only refuses requests that arrive
// without an identity.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" || len(userID) > MaxUserIDLength {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(
				dto.ErrCodeUnauthorized,
				"Missing or invalid user identity",
				GetRequestID(c),
			))
			return
		}
		c.Set(UserIDKey, userID)
		ctx := c.Request.Context()
		ctx, _ = logger.WithUserID(ctx, logger.FromContext(ctx), userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetUserID returns the id stored by UserIdentity
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// RequireToken guards a route group with a shared secret header.
// An empty token refuses every request, so an unconfigured deployment
// does not expose the group.
func RequireToken(header, token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(header)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(
				dto.ErrCodeForbidden,
				"Forbidden",
				GetRequestID(c),
			))
			return
		}
		c.Next()
	}
}
