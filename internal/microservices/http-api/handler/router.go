package handler

import (
	"log/slog"
	"net/http"

	"libraryhub/internal/microservices/http-api/middleware"

	"github.com/gin-gonic/gin"
)

// Router is everything the HTTP surface is assembled from.
type Router struct {
	Logger        *slog.Logger
	Tokens        middleware.TokenValidator
	RateLimiter   *middleware.RateLimiter
	Metrics       http.Handler // nil disables /metrics
	Loans         *LoanHandler
	Reservations  *ReservationHandler
	Fines         *FineHandler
	Books         *BookHandler
	Notifications *NotificationHandler
}

func (rt Router) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(rt.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if rt.Metrics != nil {
		r.GET("/metrics", gin.WrapH(rt.Metrics))
	}

	auth := middleware.AuthMiddleware(rt.Tokens)
	if rt.Notifications != nil {
		r.GET("/ws/notifications", auth, rt.Notifications.Stream)
	}

	api := r.Group("/api/v1", auth)
	if rt.RateLimiter != nil {
		api.Use(rt.RateLimiter.Middleware())
	}

	rt.Loans.RegisterRoutes(api.Group("/loans"))
	rt.Reservations.RegisterRoutes(api.Group("/reservations"))
	rt.Fines.RegisterRoutes(api.Group("/fines"))
	rt.Books.RegisterRoutes(api.Group("/books"))
	if rt.Notifications != nil {
		rt.Notifications.RegisterRoutes(api.Group("/notifications"))
	}
	return r
}
