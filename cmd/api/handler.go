package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	authUsecase "lighthouse/internal/auth/usecase"
	emailDelivery "lighthouse/internal/email/delivery"
	emailUsecasePkg "lighthouse/internal/email/usecase"
	"lighthouse/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase  authUsecase.AuthUsecase
	emailUsecase emailUsecasePkg.EmailUsecase
	config       *config.Config
	emailHandler *emailDelivery.EmailHandler
}

func NewHandler(authUc authUsecase.AuthUsecase, emailUc emailUsecasePkg.EmailUsecase, cfg *config.Config) *Handler {
	return &Handler{
		authUsecase:  authUc,
		emailUsecase: emailUc,
		config:       cfg,
		emailHandler: emailDelivery.NewEmailHandler(emailUc),
	}
}

// Engine builds the gin engine with middleware and routes installed
func (h *Handler) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Setup routes
	SetupRoutes(r, h.authUsecase, h.emailHandler)
	return r
}

// Start serves on addr until ctx is cancelled, then drains in-flight requests.
func (h *Handler) Start(ctx context.Context, addr string) error {
	gin.SetMode(gin.ReleaseMode)

	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("Server stopped cleanly")
	return nil
}
