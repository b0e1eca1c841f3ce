package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/logger"
	"github.com/manish-shre/KKMS/internal/service"
)

// Context keys set by JWTAuth.
const (
	KeyUserID = "user_id"
	KeyName   = "user_name"
	KeyClaims = "claims"
)

func JWTAuth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claims, err := auth.Parse(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(KeyUserID, claims.UID)
		c.Set(KeyName, claims.Name)
		c.Set(KeyClaims, claims)

		// renew when less than a day is left
		if claims.ExpiresAt != nil && time.Until(claims.ExpiresAt.Time) < service.RenewWindow {
			if token, err := auth.Issue(claims.UID, claims.Name); err == nil {
				c.Header("X-New-Token", token)
			} else {
				logger.Warn("token.renew.failed", "uid", claims.UID, "err", err)
			}
		}

		c.Next()
	}
}

// bearer reads the token from the Authorization header, or from the
// access_token query parameter for EventSource clients that cannot set
// headers.
func bearer(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return auth[7:]
	}
	return c.Query("access_token")
}

// Claims returns what JWTAuth stored for the request.
func Claims(c *gin.Context) *service.Claims {
	v, _ := c.Get(KeyClaims)
	claims, _ := v.(*service.Claims)
	return claims
}
