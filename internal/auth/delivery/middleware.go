package delivery

import (
	"log"
	"strings"

	authdomain "lighthouse/internal/auth/domain"
	"lighthouse/internal/auth/usecase"
	"lighthouse/pkg/callable"

	"github.com/gin-gonic/gin"
)

const userContextKey = "user"

// AuthMiddleware resolves the caller from a Firebase ID token. Requests without an
// Authorization header pass through with no caller; operations decide whether one is required.
// A header carrying a malformed or invalid token is rejected before the operation runs.
func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			callable.Fail(c, callable.NewError(callable.CodeUnauthenticated, "Invalid authorization header format"))
			return
		}

		user, err := authUsecase.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			log.Printf("[Auth] Rejected ID token on %s: %v", c.FullPath(), err)
			callable.Fail(c, callable.NewError(callable.CodeUnauthenticated, "Invalid or expired ID token"))
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// UserFromContext returns the caller set by AuthMiddleware, or nil.
func UserFromContext(c *gin.Context) *authdomain.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := v.(*authdomain.User)
	return user
}
