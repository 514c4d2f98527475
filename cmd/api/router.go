package api

import (
	"log"
	"net/http"
	"time"

	"lighthouse/internal/auth/delivery"
	authUsecase "lighthouse/internal/auth/usecase"
	emailDelivery "lighthouse/internal/email/delivery"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, emailHandler *emailDelivery.EmailHandler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Callable operations. The caller is optional at this layer; each operation
		// decides whether it requires one.
		callables := api.Group("")
		callables.Use(delivery.AuthMiddleware(authUsecase))
		{
			callables.POST("/processUserLogin", emailHandler.ProcessUserLogin)
			callables.POST("/getUserEmails", emailHandler.GetUserEmails)
			callables.POST("/refreshUserTokens", emailHandler.RefreshUserTokens)
			callables.POST("/deleteUserData", emailHandler.DeleteUserData)
		}
	}
}

// RequestID tags each request with an id, reusing one supplied by the client, and logs its outcome
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Writer.Header().Set(requestIDHeader, id)

		start := time.Now()
		c.Next()

		log.Printf("[HTTP] %s %s %d %s rid=%s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond), id)
	}
}
