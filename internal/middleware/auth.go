package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"telepharmacy-server/internal/config"
	"telepharmacy-server/internal/models"
	"telepharmacy-server/internal/scheduling"
	"telepharmacy-server/internal/utils"
)

const sessionKey = "session"

// Session is the authenticated caller. It is built once per request from the
// access token and passed explicitly to the service layer.
type Session struct {
	UserID      string
	Role        models.Role
	DisplayName string
	Token       string
}

// Actor returns the caller as a participant in the appointment lifecycle.
func (s Session) Actor() scheduling.Actor {
	return scheduling.Actor{ID: s.UserID, Party: s.Role.Party()}
}

// AuthMiddleware creates a middleware for JWT authentication.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		tokenString := parts[1]
		claims, err := utils.ValidateToken(tokenString, cfg.JWTSecret)
		if err != nil {
			utils.Unauthorized(c, "Invalid token: "+err.Error())
			c.Abort()
			return
		}
		if claims.UserID == "" || !claims.Role.Valid() {
			utils.Unauthorized(c, "Invalid token: missing identity")
			c.Abort()
			return
		}

		c.Set(sessionKey, Session{
			UserID:      claims.UserID,
			Role:        claims.Role,
			DisplayName: claims.DisplayName,
			Token:       tokenString,
		})

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := GetSession(c)
		if !ok {
			utils.InternalServerError(c, "Session not found in context. AuthMiddleware might be missing.")
			c.Abort()
			return
		}

		isAllowed := false
		for _, allowedRole := range allowedRoles {
			if session.Role == allowedRole {
				isAllowed = true
				break
			}
		}

		if !isAllowed {
			utils.Forbidden(c, "You do not have permission to access this resource.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetSession returns the session stored by AuthMiddleware.
func GetSession(c *gin.Context) (Session, bool) {
	value, exists := c.Get(sessionKey)
	if !exists {
		return Session{}, false
	}
	session, ok := value.(Session)
	return session, ok
}

// SetSession stores s on the context. Used by tests and internal callers.
func SetSession(c *gin.Context, s Session) {
	c.Set(sessionKey, s)
}
