package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vidyavichar/models"
	"vidyavichar/services"
)

const principalKey = "principal"

type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (models.Principal, error)
}

// Auth requires a bearer token and attaches the resolved principal to the
// request context.
func Auth(resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "No token, authorization denied"})
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		principal, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			if services.KindOf(err) == services.KindInternal {
				log.Printf("[AUTH] resolving token: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// Principal returns the principal attached by Auth.
func Principal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}
