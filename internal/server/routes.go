package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"usersvc/internal/apperror"
	"usersvc/internal/auth"
	"usersvc/internal/metrics"
	"usersvc/internal/users"
)

// HealthCheck reports the status of one dependency. The map must carry a
// "status" key of "up" or "down".
type HealthCheck func(ctx context.Context) map[string]string

// Deps are the collaborators the router needs
type Deps struct {
	Users       *users.Handler
	Tokens      auth.TokenVerifier
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Checks      map[string]HealthCheck
}

// Server holds the dependencies for the HTTP server
type Server struct {
	deps Deps
}

// New creates a Server
func New(deps Deps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{deps: deps}
}

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(
		RecoveryMiddleware(),
		RequestIDMiddleware(),
		LoggingMiddleware(),
		s.deps.HTTPMetrics.Handler(),
		cors.New(corsConfig(s.deps.CORSOrigins)),
	)

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	h := s.deps.Users
	requireAuth := auth.RequireAuth(s.deps.Tokens)

	api := r.Group("/api")

	usersGroup := api.Group("/users")
	{
		usersGroup.POST("", h.Register)
		usersGroup.POST("/login", h.Login)

		protected := usersGroup.Group("", requireAuth)
		protected.GET("", h.List)
		protected.DELETE("", auth.WithIdentity(h.DeleteProfile))
		protected.GET("/profile", auth.WithIdentity(h.Profile))
		protected.PUT("/profile", auth.WithIdentity(h.UpdateProfile))
		protected.DELETE("/profile", auth.WithIdentity(h.DeleteProfile))
	}

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/forgot-password", h.NotImplemented)
		authGroup.POST("/reset-password", h.NotImplemented)
		authGroup.GET("/profile", requireAuth, auth.WithIdentity(h.Profile))
	}

	r.NoRoute(func(c *gin.Context) {
		apperror.Respond(c, apperror.NotFound("route_not_found", "route not found", nil))
	})
	r.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, apperror.Response{
			Error:   "method_not_allowed",
			Message: "method not allowed",
		})
	})

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) healthHandler(c *gin.Context) {
	response := gin.H{"status": "up"}
	status := http.StatusOK

	for name, check := range s.deps.Checks {
		result := check(c.Request.Context())
		response[name] = result
		if result["status"] != "up" {
			response["status"] = "down"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, response)
}
