package auth

import (
	"net/http"
	"strings"

	"github.com/Freeeeeet/office_hours/internal/model"
	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// Authenticate требует bearer токен и кладёт участника в контекст gin
func Authenticate(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "missing bearer token"})
			return
		}

		claims, err := issuer.Parse(strings.TrimSpace(authz[len("bearer "):]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "invalid token"})
			return
		}

		actor, err := claims.Actor()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "invalid token"})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRole пропускает только участников с указанной ролью
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok || actor.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "message": "access restricted to " + string(role) + "s"})
			return
		}
		c.Next()
	}
}

// ActorFrom достаёт участника, положенного Authenticate
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	value, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := value.(model.Actor)
	return actor, ok
}
