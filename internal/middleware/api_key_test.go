package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/onegreenvn/assign-services-backend/internal/models"
)

type stubKeys map[string]*models.User

func (s stubKeys) ValidateAPIKey(ctx context.Context, key string) (*models.User, error) {
	if user, ok := s[key]; ok {
		return user, nil
	}
	return nil, errors.New("invalid API key")
}

func TestAPIKeyMiddlewareFallsThroughToBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keys := stubKeys{"hook-key": {ID: 1, Username: "system", Admin: true, Active: true}}
	users := stubUsers{7: {ID: 7, Username: "sam", Active: true}}

	r := gin.New()
	r.Use(NewAPIKeyMiddleware(keys).APIKeyAuthMiddleware())
	r.Use(NewBearerTokenMiddleware(secret, users).BearerTokenAuthMiddleware())
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"username":  CurrentUser(c).Username,
			"auth_type": c.GetString("auth_type"),
		})
	})

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := call("ApiKey hook-key")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"system","auth_type":"api_key"}`, w.Body.String())

	w = call("Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), TokenClaims{UserID: 7}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"sam","auth_type":""}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call("ApiKey wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, call("ApiKey ").Code)
}
