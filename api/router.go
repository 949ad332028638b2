// Package api wires the HTTP surface of the scraper.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sigillum/api/handler"
	"github.com/use-agent/sigillum/api/middleware"
	"github.com/use-agent/sigillum/cache"
	"github.com/use-agent/sigillum/config"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Runner    handler.Runner
	Cache     *cache.Cache
	Jobs      *handler.JobStore
	Limiter   *middleware.Limiter
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	Scrape:  Auth (if enabled) → RateLimit
//
// The banner and health endpoints are outside auth so monitoring probes
// always work.
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/", handler.Root())

	guard := func(allowQuery bool) []gin.HandlerFunc {
		var chain []gin.HandlerFunc
		if cfg.Auth.Enabled {
			chain = append(chain, middleware.Auth(cfg.Auth.APIKeys, allowQuery))
		}
		if d.Limiter != nil {
			chain = append(chain, d.Limiter.Middleware())
		}
		return chain
	}

	// Original single-endpoint interface.
	legacy := r.Group("", guard(true)...)
	legacy.GET("/scrapper", handler.Legacy(d.Runner, d.Cache))

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(d.Runner, d.StartTime))

	protected := v1.Group("", guard(false)...)
	protected.POST("/scrape", handler.Scrape(d.Runner, d.Cache, d.Jobs))
	protected.GET("/jobs/:id", handler.GetJob(d.Jobs))

	return r
}
