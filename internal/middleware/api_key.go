package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/onegreenvn/assign-services-backend/internal/models"
)

// APIKeyValidator resolves an API key to its owner
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, key string) (*models.User, error)
}

// APIKeyMiddleware handles API key authentication
type APIKeyMiddleware struct {
	validator APIKeyValidator
}

// NewAPIKeyMiddleware creates a new API key middleware
func NewAPIKeyMiddleware(validator APIKeyValidator) *APIKeyMiddleware {
	return &APIKeyMiddleware{validator: validator}
}

// APIKeyAuthMiddleware authenticates "ApiKey <key>" headers and leaves every
// other scheme to the bearer middleware that follows it
func (m *APIKeyMiddleware) APIKeyAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "ApiKey ") {
			c.Next()
			return
		}

		apiKey := strings.TrimSpace(strings.TrimPrefix(authHeader, "ApiKey "))
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key format"})
			c.Abort()
			return
		}

		user, err := m.validator.ValidateAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("is_admin", user.Admin)
		c.Set("auth_type", "api_key")

		c.Next()
	}
}
