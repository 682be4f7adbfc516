package middleware

import (
	"net/http"
	"strings"

	"accreditation-api/models"
	"accreditation-api/services"

	"github.com/gin-gonic/gin"
)

const (
	userKey   = "user"
	claimsKey = "claims"
	actorKey  = "actor"
)

// AuthMiddleware validates the bearer access token and stores the caller in the context.
func AuthMiddleware(identity *services.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authorized to access this route"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authorization header format"})
			return
		}

		user, claims, err := identity.ParseAccessToken(c.Request.Context(), strings.TrimSpace(tokenString))
		if err != nil {
			status := http.StatusUnauthorized
			if services.KindOf(err) == services.KindInternal {
				status = http.StatusInternalServerError
			}
			c.AbortWithStatusJSON(status, gin.H{"success": false, "message": services.MessageOf(err)})
			return
		}

		c.Set(userKey, user)
		c.Set(claimsKey, claims)
		c.Set(actorKey, &services.Actor{ID: user.ID, Role: user.Role, Name: user.Name, Email: user.Email})
		c.Next()
	}
}

// RequireRole lets the request through only when the caller holds one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor(c)
		if actor == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authorized to access this route"})
			return
		}

		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "User role " + string(actor.Role) + " is not authorized to access this route",
		})
	}
}

// Actor returns the authenticated caller, or nil on public routes.
func Actor(c *gin.Context) *services.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*services.Actor)
	return actor
}

func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func Claims(c *gin.Context) *services.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*services.Claims)
	return claims
}
