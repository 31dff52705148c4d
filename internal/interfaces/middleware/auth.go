package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/internal/application/services"
	"github.com/docuflow/backend/pkg/auth"
)

// ContextKeyUser is the gin context key carrying the authenticated session
const ContextKeyUser = "user"

// RequireAuth is a middleware that validates JWT tokens
func RequireAuth(authSvc *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "No authorization token provided",
				"code":    "UNAUTHORIZED",
				"data":    nil,
			})
			c.Abort()
			return
		}

		// Extract token (format: "Bearer <token>")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "Invalid authorization header format",
				"code":    "UNAUTHORIZED",
				"data":    nil,
			})
			c.Abort()
			return
		}

		claims, err := authSvc.ValidateSession(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": err.Error(),
				"code":    "UNAUTHORIZED",
				"data":    nil,
			})
			c.Abort()
			return
		}

		c.Set(ContextKeyUser, claims.User)
		c.Next()
	}
}

// RequireAdmin checks if the user carries the admin role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userInterface, exists := c.Get(ContextKeyUser)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "User not authenticated",
				"code":    "UNAUTHORIZED",
				"data":    nil,
			})
			c.Abort()
			return
		}

		user := userInterface.(auth.UserSession)
		if !user.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "Only administrators can perform this action",
				"code":    "FORBIDDEN",
				"data":    nil,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
