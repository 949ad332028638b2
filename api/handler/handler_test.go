package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/sigillum/cache"
	"github.com/use-agent/sigillum/models"
)

type fakeRunner struct {
	mu     sync.Mutex
	calls  []string
	status models.Status
}

func (f *fakeRunner) Run(_ context.Context, id string) *models.ScrapeOutcome {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	status := f.status
	f.mu.Unlock()

	out := models.NewOutcome(id)
	data := &models.ExtractionResult{
		ToxicologyAccessed: true,
		Summary: &models.SummaryData{
			IframeFound:      true,
			ContentExtracted: true,
			KeyInfo:          &models.KeyInfo{HTMLContent: "<p>LD50 &gt; 2000 mg/kg</p>", TextContent: "LD50 > 2000 mg/kg"},
		},
	}
	out.Finish(status, string(status), data)
	return out
}

func (f *fakeRunner) Stats() models.SessionStats {
	return models.SessionStats{MaxSessions: 2, ActiveSessions: 2, TotalRuns: 7}
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestEngine(r Runner, cc *cache.Cache, jobs *JobStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.GET("/", Root())
	e.GET("/scrapper", Legacy(r, cc))
	e.GET("/api/v1/health", Health(r, time.Now()))
	e.POST("/api/v1/scrape", Scrape(r, cc, jobs))
	e.GET("/api/v1/jobs/:id", GetJob(jobs))
	return e
}

func serve(e http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestRoot(t *testing.T) {
	w := serve(newTestEngine(&fakeRunner{}, nil, nil), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"SigillumScraper API"}`, w.Body.String())
}

func TestLegacy(t *testing.T) {
	r := &fakeRunner{status: models.StatusSuccess}
	e := newTestEngine(r, nil, nil)

	w := serve(e, http.MethodGet, "/scrapper?cas_code=627-83-8", "")
	require.Equal(t, http.StatusOK, w.Code)

	var out models.ScrapeOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, models.StatusSuccess, out.Status)
	assert.Equal(t, "627-83-8", out.CASCode)
	assert.Equal(t, "LD50 > 2000 mg/kg", out.Data.Summary.KeyInfo.TextContent)
}

func TestLegacy_MissingIdentifier(t *testing.T) {
	r := &fakeRunner{status: models.StatusSuccess}
	e := newTestEngine(r, nil, nil)

	for _, target := range []string{"/scrapper", "/scrapper?cas_code=%20%20"} {
		w := serve(e, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, w.Body.String(), models.ErrCodeInvalidInput)
	}
	assert.Zero(t, r.callCount())
}

func TestScrape_OutcomesAreOK(t *testing.T) {
	for _, status := range []models.Status{models.StatusSuccess, models.StatusNoResults, models.StatusError} {
		t.Run(string(status), func(t *testing.T) {
			e := newTestEngine(&fakeRunner{status: status}, nil, nil)
			w := serve(e, http.MethodPost, "/api/v1/scrape", `{"cas_code":"627-83-8"}`)

			assert.Equal(t, http.StatusOK, w.Code)
			var out models.ScrapeOutcome
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
			assert.Equal(t, status, out.Status)
			assert.Equal(t, status == models.StatusSuccess, out.Data != nil)
		})
	}
}

func TestScrape_InvalidBody(t *testing.T) {
	e := newTestEngine(&fakeRunner{}, nil, nil)
	for _, body := range []string{`{}`, `{"cas_code":"1","webhook_url":"not a url"}`, `nope`} {
		w := serve(e, http.MethodPost, "/api/v1/scrape", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestScrape_Cache(t *testing.T) {
	r := &fakeRunner{status: models.StatusSuccess}
	cc := cache.New(8, time.Hour)
	defer cc.Close()
	e := newTestEngine(r, cc, nil)

	w := serve(e, http.MethodPost, "/api/v1/scrape", `{"cas_code":"627-83-8","max_age":60000}`)
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))
	w = serve(e, http.MethodPost, "/api/v1/scrape", `{"cas_code":" 627-83-8 ","max_age":60000}`)
	assert.Equal(t, "hit", w.Header().Get("X-Cache"))
	assert.Equal(t, 1, r.callCount())

	w = serve(e, http.MethodPost, "/api/v1/scrape", `{"cas_code":"627-83-8"}`)
	assert.Empty(t, w.Header().Get("X-Cache"))
	assert.Equal(t, 2, r.callCount())
}

func TestScrape_ErrorsAreNotCached(t *testing.T) {
	r := &fakeRunner{status: models.StatusError}
	cc := cache.New(8, time.Hour)
	defer cc.Close()
	e := newTestEngine(r, cc, nil)

	serve(e, http.MethodPost, "/api/v1/scrape", `{"cas_code":"627-83-8","max_age":60000}`)
	w := serve(e, http.MethodPost, "/api/v1/scrape", `{"cas_code":"627-83-8","max_age":60000}`)
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))
	assert.Equal(t, 2, r.callCount())
}

func TestScrape_AsyncJob(t *testing.T) {
	delivered := make(chan string, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev struct {
			Type  string `json:"type"`
			JobID string `json:"job_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&ev)
		delivered <- ev.Type + " " + ev.JobID
	}))
	defer hook.Close()

	jobs := NewJobStore(time.Hour)
	defer jobs.Close()
	e := newTestEngine(&fakeRunner{status: models.StatusSuccess}, nil, jobs)

	w := serve(e, http.MethodPost, "/api/v1/scrape", `{"cas_code":"627-83-8","webhook_url":"`+hook.URL+`"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var job models.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "processing", job.Status)
	require.NotEmpty(t, job.ID)

	select {
	case got := <-delivered:
		assert.Equal(t, "scrape.completed "+job.ID, got)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}

	w = serve(e, http.MethodGet, "/api/v1/jobs/"+job.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "completed", job.Status)
	require.NotNil(t, job.Outcome)
	assert.Equal(t, models.StatusSuccess, job.Outcome.Status)
}

func TestGetJob_NotFound(t *testing.T) {
	jobs := NewJobStore(time.Hour)
	defer jobs.Close()
	w := serve(newTestEngine(&fakeRunner{}, nil, jobs), http.MethodGet, "/api/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeJobNotFound)
}

func TestHealth(t *testing.T) {
	w := serve(newTestEngine(&fakeRunner{}, nil, nil), http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var h models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, int64(7), h.SessionStats.TotalRuns)
	assert.Equal(t, Version, h.Version)
}

func TestJobStore_Expire(t *testing.T) {
	jobs := NewJobStore(time.Hour)
	defer jobs.Close()
	job := jobs.Create()

	jobs.expire(time.Now().Add(time.Minute))
	_, ok := jobs.Get(job.ID)
	assert.False(t, ok)
}
