package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sigillum/cache"
	"github.com/use-agent/sigillum/models"
	"github.com/use-agent/sigillum/webhook"
)

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. With a webhook URL: register a job, run in the background, answer 202.
//  3. Otherwise: cache lookup, run the pipeline, return the outcome.
func Scrape(r Runner, cc *cache.Cache, jobs *JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}
		req.Defaults()
		if req.CASCode == "" {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "cas_code must not be blank", nil))
			return
		}

		// ── 2. Asynchronous job ─────────────────────────────────────
		if req.WebhookURL != "" {
			job := jobs.Create()
			go runJob(context.WithoutCancel(c.Request.Context()), r, cc, jobs, job.ID, req)
			c.JSON(http.StatusAccepted, job)
			return
		}

		// ── 3. Synchronous run ──────────────────────────────────────
		out, cacheStatus := lookup(c.Request.Context(), r, cc, req.CASCode, req.MaxAge)
		respondOutcome(c, out, cacheStatus)
	}
}

// runJob runs one asynchronous scrape and delivers the outcome.
func runJob(ctx context.Context, r Runner, cc *cache.Cache, jobs *JobStore, id string, req models.ScrapeRequest) {
	out, _ := lookup(ctx, r, cc, req.CASCode, req.MaxAge)
	jobs.Complete(id, out)

	webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
		Type:      webhook.EventScrapeCompleted,
		JobID:     id,
		Timestamp: time.Now().Unix(),
		Data:      out,
	}, nil)
}

// Legacy returns a handler for GET /scrapper?cas_code=..., the original
// single-endpoint interface. It always runs synchronously.
func Legacy(r Runner, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}
		req.Defaults()
		if req.CASCode == "" {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "cas_code must not be blank", nil))
			return
		}

		out, cacheStatus := lookup(c.Request.Context(), r, cc, req.CASCode, req.MaxAge)
		respondOutcome(c, out, cacheStatus)
	}
}

// Root returns the banner handler for GET /.
func Root() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.RootResponse{Message: "SigillumScraper API"})
	}
}
