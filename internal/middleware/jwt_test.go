package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(auth *service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWTAuth(auth), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": c.GetString(KeyUserID), "jti": Claims(c).ID})
	})
	return r
}

func get(r http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	auth := service.NewAuthService(nil, "secret", 7*24*time.Hour, nil)
	r := newRouter(auth)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "garbage").Code)

	token, err := auth.Issue("u1", "Asha")
	require.NoError(t, err)
	rec := get(r, "/me", token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uid":"u1"`)
	assert.Empty(t, rec.Header().Get("X-New-Token"))

	assert.Equal(t, http.StatusOK, get(r, "/me?access_token="+token, "").Code)
}

func TestJWTAuthRenewsNearExpiry(t *testing.T) {
	short := service.NewAuthService(nil, "secret", time.Hour, nil)
	token, err := short.Issue("u1", "Asha")
	require.NoError(t, err)

	rec := get(newRouter(short), "/me", token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-New-Token"))
}

func TestJWTAuthRejectsRevoked(t *testing.T) {
	auth := service.NewAuthService(nil, "secret", 7*24*time.Hour, nil)
	token, err := auth.Issue("u1", "Asha")
	require.NoError(t, err)
	claims, err := auth.Parse(context.Background(), token)
	require.NoError(t, err)
	require.NoError(t, auth.SignOut(context.Background(), claims))

	assert.Equal(t, http.StatusUnauthorized, get(newRouter(auth), "/me", token).Code)
}
