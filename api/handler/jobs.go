package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/sigillum/models"
)

const (
	jobProcessing = "processing"
	jobCompleted  = "completed"
)

// JobStore holds asynchronous scrape jobs. Jobs older than the retention
// window are dropped by a background goroutine. It is safe for concurrent use.
type JobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*models.JobResponse
	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewJobStore creates a store keeping jobs for retention (1 hour when <= 0).
func NewJobStore(retention time.Duration) *JobStore {
	if retention <= 0 {
		retention = time.Hour
	}
	s := &JobStore{
		jobs:      make(map[string]*models.JobResponse),
		retention: retention,
		stop:      make(chan struct{}),
	}

	// Background goroutine to expire old jobs.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.expire(time.Now().Add(-s.retention))
			}
		}
	}()
	return s
}

// Create registers a new processing job and returns a snapshot of it.
func (s *JobStore) Create() models.JobResponse {
	job := &models.JobResponse{
		ID:        uuid.NewString(),
		Status:    jobProcessing,
		CreatedAt: time.Now().Unix(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return *job
}

// Complete attaches the outcome to a job.
func (s *JobStore) Complete(id string, out *models.ScrapeOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = jobCompleted
		job.Outcome = out
	}
}

// Get returns a snapshot of a job.
func (s *JobStore) Get(id string) (models.JobResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.JobResponse{}, false
	}
	return *job, true
}

// Close stops the expiry goroutine.
func (s *JobStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *JobStore) expire(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if job.CreatedAt < cutoff.Unix() {
			delete(s.jobs, id)
		}
	}
}

// GetJob returns a handler for GET /api/v1/jobs/:id.
func GetJob(jobs *JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeJobNotFound, "job not found", nil))
			return
		}
		c.JSON(http.StatusOK, job)
	}
}
