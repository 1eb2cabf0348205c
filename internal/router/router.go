package router // package router wires HTTP routes to their handlers and middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/yassineqb/si-releves/internal/config"
	"github.com/yassineqb/si-releves/internal/handler"
	"github.com/yassineqb/si-releves/internal/middleware"
	"github.com/yassineqb/si-releves/internal/model"
)

// Handlers groups everything the router needs to mount the API.
type Handlers struct {
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Meters   *handler.MeterHandler
	Readings *handler.ReadingHandler
	Clients  *handler.ClientHandler
}

// Register mounts all routes under /api. The role matrix mirrors how the
// utility operates: SUPERADMIN manages meters and corrects readings, ADMIN
// manages accounts, AGENT submits readings, USER consults their own meters
// and readings. List and stats GETs go through the Redis response cache;
// everything authenticated goes through the rate limiter.
func Register(e *echo.Echo, cfg config.Config, h Handlers, rdb *redis.Client) {
	e.GET("/api/health", handler.Health)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	// Unauthenticated auth endpoints.
	auth := e.Group("/api/auth")
	auth.POST("/login", h.Auth.Login, limiter)
	auth.POST("/refresh", h.Auth.Refresh, limiter)
	auth.POST("/logout", h.Auth.Logout)

	// Everything below requires a valid access token.
	api := e.Group("/api", middleware.JWTAuth(cfg.JWTSecret), limiter)

	api.GET("/auth/me", h.Auth.Me)
	api.PUT("/auth/change-password", h.Auth.ChangePassword)

	// Account administration.
	users := api.Group("/users", middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin))
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.GET("/:id", h.Users.Get)
	users.PUT("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)
	users.POST("/:id/reset-password", h.Users.ResetPassword)

	// Meter registry. Reads are open to every authenticated role (the
	// handler scopes USER callers to their own meters); writes are
	// SUPERADMIN only.
	api.GET("/compteurs", h.Meters.List, cache)
	api.GET("/compteurs/stats", h.Meters.Stats, cache)
	api.GET("/compteurs/:id", h.Meters.Get)
	superadmin := middleware.RequireRole(model.RoleSuperAdmin)
	api.POST("/compteurs", h.Meters.Create, superadmin)
	api.PUT("/compteurs/:id", h.Meters.Update, superadmin)
	api.DELETE("/compteurs/:id", h.Meters.Delete, superadmin)

	// Reading ledger. Submission is for field agents and SUPERADMIN;
	// corrections and deletions are SUPERADMIN only.
	api.GET("/releves", h.Readings.List, cache)
	api.GET("/releves/stats", h.Readings.Stats, cache)
	api.GET("/releves/:id", h.Readings.Get)
	api.POST("/releves", h.Readings.Create, middleware.RequireRole(model.RoleSuperAdmin, model.RoleAgent))
	api.PUT("/releves/:id", h.Readings.Update, superadmin)
	api.DELETE("/releves/:id", h.Readings.Delete, superadmin)

	// Subscriber dossiers, managed by the back office.
	clients := api.Group("/clients", middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin))
	clients.GET("", h.Clients.List)
	clients.POST("", h.Clients.Create)
	clients.GET("/:id", h.Clients.Get)
	clients.PUT("/:id", h.Clients.Update)
	clients.DELETE("/:id", h.Clients.Delete)
}
