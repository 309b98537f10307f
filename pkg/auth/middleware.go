package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
)

// ActorContext resolves the bearer credential once per request and stores
// the resulting actor on the context. Requests without a valid token pass
// through with a zero actor; role gates decide what they may reach.
func ActorContext(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw != "" {
			if claims, err := tokens.Verify(raw); err == nil {
				uid := claims.UID
				actor.Set(c, actor.Actor{UserID: &uid, Role: claims.Role})
			}
		}
		c.Next()
	}
}

// RequireRoles aborts the request unless the actor holds one of the
// allowed roles.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := actor.From(c)
		if !a.Known() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
			return
		}
		if !a.Is(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

// RequireAuth aborts the request unless a valid credential was presented,
// regardless of role.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actor.From(c).Known() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
