package middleware

import (
	"context"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/gin-gonic/gin"
)

// userIDKey and roleKey store the authenticated principal.
const (
	userIDKey = contextKey("userID")
	roleKey   = contextKey("role")
)

// WithCaller returns a copy of ctx carrying the authenticated principal.
func WithCaller(ctx context.Context, caller domain.Caller) context.Context {
	ctx = context.WithValue(ctx, userIDKey, caller.UserID)
	return context.WithValue(ctx, roleKey, caller.Role)
}

// GetUserIDFromContext retrieves the authenticated user ID from the Gin context.
// It returns the user ID and a boolean indicating if it was found.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	if userIDVal, exists := c.Get(string(userIDKey)); exists {
		userID, ok := userIDVal.(string)
		return userID, ok
	}
	// check in the request context as well
	userID, ok := c.Request.Context().Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// GetCallerFromContext builds the principal the auth middleware stored.
func GetCallerFromContext(c *gin.Context) (domain.Caller, bool) {
	userID, ok := GetUserIDFromContext(c)
	if !ok {
		return domain.Caller{}, false
	}
	role, _ := c.Request.Context().Value(roleKey).(domain.UserRole)
	return domain.Caller{UserID: userID, Role: role}, true
}
