package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/use-agent/sigillum/models"
)

func outcome(status models.Status) *models.ScrapeOutcome {
	o := models.NewOutcome("627-83-8")
	o.Finish(status, string(status), &models.ExtractionResult{})
	return o
}

func TestCache_OnlyReusableOutcomes(t *testing.T) {
	c := New(8, time.Hour)
	defer c.Close()

	assert.True(t, c.Set("a", outcome(models.StatusSuccess)))
	assert.True(t, c.Set("b", outcome(models.StatusNoResults)))
	assert.False(t, c.Set("c", outcome(models.StatusError)))
	assert.False(t, c.Set("d", models.NewOutcome("x")))
	assert.Equal(t, 2, c.Len())
}

func TestCache_MaxAge(t *testing.T) {
	c := New(8, time.Hour)
	defer c.Close()
	c.Set(Key("627-83-8"), outcome(models.StatusSuccess))

	_, hit := c.Get(Key(" 627-83-8 "), 0)
	assert.False(t, hit, "max age 0 disables lookup")

	got, hit := c.Get(Key("627-83-8"), 60_000)
	assert.True(t, hit)
	assert.Equal(t, models.StatusSuccess, got.Status)

	c.mu.Lock()
	c.store[Key("627-83-8")].createdAt = time.Now().Add(-2 * time.Minute)
	c.mu.Unlock()
	_, hit = c.Get(Key("627-83-8"), 60_000)
	assert.False(t, hit)
}

func TestCache_EvictsAtCapacity(t *testing.T) {
	c := New(2, time.Hour)
	defer c.Close()

	c.Set("a", outcome(models.StatusSuccess))
	c.Set("b", outcome(models.StatusSuccess))
	c.Set("b", outcome(models.StatusSuccess))
	assert.Equal(t, 2, c.Len())

	c.Set("c", outcome(models.StatusSuccess))
	assert.Equal(t, 2, c.Len())
	_, hit := c.Get("c", 60_000)
	assert.True(t, hit)
}

func TestCache_EvictBefore(t *testing.T) {
	c := New(8, time.Hour)
	defer c.Close()
	c.Set("old", outcome(models.StatusSuccess))
	c.Set("new", outcome(models.StatusSuccess))

	c.mu.Lock()
	c.store["old"].createdAt = time.Now().Add(-2 * time.Hour)
	c.mu.Unlock()

	c.evictBefore(time.Now().Add(-time.Hour))
	assert.Equal(t, 1, c.Len())
}
