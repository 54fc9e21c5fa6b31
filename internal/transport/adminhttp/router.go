// Package adminhttp exposes the admin config store and stat collector over
// HTTP, generalizing the teacher's gin router/JWT-middleware pattern
// (internal/transport/http/router.go) from job/schedule CRUD onto uSched's
// category/property store and entry execution telemetry.
package adminhttp

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/usched-go/usched/internal/adminstore"
	"github.com/usched-go/usched/internal/stat"
	"github.com/usched-go/usched/internal/transport/http/middleware"
)

// NewRouter builds the admin HTTP surface: property show/stage/commit/
// rollback, user management, and read-only execution stats. Every route
// but /healthz requires a bearer JWT.
func NewRouter(store *adminstore.Store, users *adminstore.UserStore, collector *stat.Collector, jwtKey []byte, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	h := NewHandler(store, users, collector, logger)

	r.GET("/healthz", h.Healthz)

	admin := r.Group("/admin", middleware.Auth(jwtKey))
	{
		admin.GET("/:category/:property", h.ShowProperty)
		admin.PUT("/:category/:property", h.StageProperty)
		admin.POST("/:category/commit", h.Commit)
		admin.POST("/:category/rollback", h.Rollback)

		admin.POST("/users", h.AddUser)
		admin.GET("/users/:username", h.ShowUser)
		admin.PUT("/users/:username", h.ChangeUser)
		admin.DELETE("/users/:username", h.DeleteUser)
	}

	stats := r.Group("/stat", middleware.Auth(jwtKey))
	{
		stats.GET("", h.ListStats)
		stats.GET("/:id", h.GetStat)
	}

	return r
}
