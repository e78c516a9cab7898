package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/response"
)

const (
	contextActorID  = "actor_id"
	contextTenantID = "tenant_id"
)

// Claims are the token claims issued to condominium managers. Every
// manager token is bound to exactly one tenant.
type Claims struct {
	TenantID uint `json:"tenant_id"`
	jwt.RegisteredClaims
}

// RequireAuth returns a middleware that validates the Bearer token and
// injects actor and tenant IDs into the request context
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.UnauthorizedError(c, "missing authorization header")
			c.Abort()
			return
		}

		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			response.UnauthorizedError(c, "authorization header must use the Bearer scheme")
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			logger.Get().Warn("Rejected token", "path", c.Request.URL.Path, "error", err)
			response.UnauthorizedError(c, "invalid or expired token")
			c.Abort()
			return
		}
		if claims.TenantID == 0 {
			response.UnauthorizedError(c, "token is missing tenant binding")
			c.Abort()
			return
		}

		var actorID uint
		if sub := claims.Subject; sub != "" {
			if _, err := fmt.Sscanf(sub, "%d", &actorID); err != nil {
				actorID = 0
			}
		}
		if actorID == 0 {
			response.UnauthorizedError(c, "token is missing subject")
			c.Abort()
			return
		}

		c.Set(contextActorID, actorID)
		c.Set(contextTenantID, claims.TenantID)
		c.Next()
	}
}

// ActorID returns the authenticated manager's ID from the request context
func ActorID(c *gin.Context) uint {
	if v, ok := c.Get(contextActorID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// TenantID returns the authenticated tenant's ID from the request context
func TenantID(c *gin.Context) uint {
	if v, ok := c.Get(contextTenantID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
