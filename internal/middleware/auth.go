package middleware

import (
	"errors"
	"net/http"
	"strings"

	"todo-tracker/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

// RequireAuth is the sole authentication gate. It resolves the bearer
// token before any store access happens: a missing token is rejected
// with 401 without touching the token service, a failed verification
// with 403. On success the caller's user id is attached to the request
// context for the handlers downstream.
func RequireAuth(tokens *services.TokenService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No token provided"})
			return
		}

		userID, err := tokens.Verify(token)
		if err != nil {
			if errors.Is(err, services.ErrTokenExpired) {
				logger.Debug("rejected expired token", zap.String("path", c.FullPath()))
			} else {
				logger.Debug("rejected invalid token", zap.String("path", c.FullPath()))
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// CurrentUserID returns the authenticated caller's id placed in the
// context by RequireAuth.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

// extractBearerToken returns the substring after the first space of an
// Authorization header, or "" when there is none.
func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
