package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/whitedemon938/Turnstile-Solver/api/handler"
	"github.com/whitedemon938/Turnstile-Solver/api/middleware"
	"github.com/whitedemon938/Turnstile-Solver/config"
	"github.com/whitedemon938/Turnstile-Solver/solver"
	"github.com/whitedemon938/Turnstile-Solver/taskstore"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and the index page stay outside auth so monitoring probes and
// humans always get through.
func NewRouter(sv *solver.Solver, ts *taskstore.Store, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/", handler.Index())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(sv, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Synchronous solve.
	protected.POST("/solve", handler.Solve(sv))

	// Task surface kept at the root for compatibility with existing clients.
	tasks := r.Group("")
	if cfg.Auth.Enabled {
		tasks.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	tasks.Use(middleware.RateLimit(cfg.RateLimit))
	tasks.GET("/turnstile", handler.Turnstile(sv, ts, cfg.Webhook))
	tasks.GET("/result", handler.Result(ts))

	return r
}
