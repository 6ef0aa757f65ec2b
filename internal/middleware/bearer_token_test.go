package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/onegreenvn/assign-services-backend/internal/models"
)

const secret = "middleware-secret"

type stubUsers map[uint64]*models.User

func (s stubUsers) GetByID(ctx context.Context, id uint64) (*models.User, error) {
	if user, ok := s[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims TokenClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	m := NewBearerTokenMiddleware(secret, stubUsers{})
	expires := jwt.NewNumericDate(time.Now().Add(time.Hour))

	id, err := m.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(secret), TokenClaims{
		UserID:           7,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: expires},
	}))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)

	id, err = m.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(secret), TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "8", ExpiresAt: expires},
	}))
	require.NoError(t, err)
	assert.Equal(t, uint64(8), id)

	_, err = m.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(secret), TokenClaims{
		UserID:           7,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}))
	assert.Error(t, err)

	_, err = m.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte("other"), TokenClaims{UserID: 7}))
	assert.Error(t, err)

	_, err = m.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(secret), TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "sam"},
	}))
	assert.Error(t, err)
}

func TestBearerTokenAuthMiddlewareSetsUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := stubUsers{
		1: {ID: 1, Username: "admin", Admin: true, Active: true},
		2: {ID: 2, Username: "gone", Active: false},
	}
	m := NewBearerTokenMiddleware(secret, users)

	r := gin.New()
	r.GET("/me", m.BearerTokenAuthMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"username": CurrentUser(c).Username,
			"is_admin": c.GetBool("is_admin"),
		})
	})

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := call("Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), TokenClaims{UserID: 1}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"admin","is_admin":true}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+sign(t, jwt.SigningMethodHS256, []byte(secret), TokenClaims{UserID: 2})).Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+sign(t, jwt.SigningMethodHS256, []byte(secret), TokenClaims{UserID: 3})).Code)
}
