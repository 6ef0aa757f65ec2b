package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/onegreenvn/assign-services-backend/internal/models"
	"github.com/onegreenvn/assign-services-backend/internal/utils"
)

// UserLoader resolves the user a token was issued for
type UserLoader interface {
	GetByID(ctx context.Context, id uint64) (*models.User, error)
}

// TokenClaims are the claims of an access token issued by the forum.
// The user id is read from user_id, falling back to the subject.
type TokenClaims struct {
	UserID   uint64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

type BearerTokenMiddleware struct {
	secret []byte
	users  UserLoader
}

func NewBearerTokenMiddleware(secret string, users UserLoader) *BearerTokenMiddleware {
	return &BearerTokenMiddleware{secret: []byte(secret), users: users}
}

// ValidateToken parses an HS256 token and returns the id of its user
func (m *BearerTokenMiddleware) ValidateToken(tokenString string) (uint64, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return 0, errors.New("invalid token claims")
	}

	if claims.UserID != 0 {
		return claims.UserID, nil
	}
	id, err := utils.StringToID(claims.Subject)
	if err != nil {
		return 0, errors.New("token has no user")
	}
	return id, nil
}

// BearerTokenAuthMiddleware validates JWT token and sets user info in context
func (m *BearerTokenMiddleware) BearerTokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// If user_id is already set, skip authentication
		if _, exists := c.Get("user_id"); exists {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		userID, err := m.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		user, err := m.users.GetByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			c.Abort()
			return
		}
		if !user.Active {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is deactivated"})
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("is_admin", user.Admin)

		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil outside the middleware
func CurrentUser(c *gin.Context) *models.User {
	value, ok := c.Get("user")
	if !ok {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}
