// Package handler holds the HTTP handlers of the scraping API.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sigillum/cache"
	"github.com/use-agent/sigillum/models"
)

// Runner runs the scraping pipeline for one identifier.
// *scraper.Scraper satisfies it.
type Runner interface {
	Run(ctx context.Context, identifier string) *models.ScrapeOutcome
	Stats() models.SessionStats
}

// lookup serves an outcome from cc when one younger than maxAgeMs exists,
// otherwise runs the pipeline and stores a reusable result. The returned
// cache status is "hit", "miss" or "" when caching was not requested.
func lookup(ctx context.Context, r Runner, cc *cache.Cache, casCode string, maxAgeMs int) (*models.ScrapeOutcome, string) {
	if cc == nil || maxAgeMs <= 0 {
		return r.Run(ctx, casCode), ""
	}
	key := cache.Key(casCode)
	if cached, hit := cc.Get(key, maxAgeMs); hit {
		return cached, "hit"
	}
	out := r.Run(ctx, casCode)
	cc.Set(key, out)
	return out, "miss"
}

// respondOutcome writes a finished outcome. Every terminal status is a
// well-formed answer and is returned with 200.
func respondOutcome(c *gin.Context, out *models.ScrapeOutcome, cacheStatus string) {
	if cacheStatus != "" {
		c.Header("X-Cache", cacheStatus)
	}
	c.JSON(http.StatusOK, out)
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, e *models.ScrapeError) {
	c.JSON(mapErrorToStatus(e), models.ErrorResponse{Error: e.ToDetail()})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeJobNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
