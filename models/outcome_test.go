package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome_FirstTerminalWins(t *testing.T) {
	o := NewOutcome("627-83-8")
	assert.Equal(t, StatusStarted, o.Status)

	assert.False(t, o.Finish(StatusStarted, "ignored", nil))
	assert.True(t, o.Fail(NewScrapeError(ErrCodeNoResults, "no results found for the search", nil)))
	assert.False(t, o.Finish(StatusSuccess, "late", &ExtractionResult{}))

	assert.Equal(t, StatusNoResults, o.Status)
	assert.Equal(t, "no results found for the search", o.Message)
	assert.Nil(t, o.Data)
}

func TestOutcome_DataOnlyOnSuccess(t *testing.T) {
	o := NewOutcome("627-83-8")
	o.Finish(StatusError, "boom", &ExtractionResult{ToxicologyAccessed: true})
	assert.Nil(t, o.Data)

	o = NewOutcome("627-83-8")
	o.Finish(StatusSuccess, "done", &ExtractionResult{ToxicologyAccessed: true})
	require.NotNil(t, o.Data)
	assert.True(t, o.Data.ToxicologyAccessed)
}

func TestScrapeErrorStatus(t *testing.T) {
	assert.Equal(t, StatusNoResults, NewScrapeError(ErrCodeNoResults, "", nil).Status())
	assert.Equal(t, StatusError, NewScrapeError(ErrCodeTimeout, "", nil).Status())
	assert.Equal(t, StatusError, NewScrapeError(ErrCodeStructural, "", nil).Status())
}

func TestOutcome_JSONRoundTrip(t *testing.T) {
	in := &ScrapeOutcome{
		Status:     StatusSuccess,
		CASCode:    "627-83-8",
		Message:    "scrape completed",
		DurationMs: 4210,
		Data: &ExtractionResult{
			ToxicologyAccessed: true,
			Summary: &SummaryData{
				IframeFound:      true,
				ContentExtracted: true,
				KeyInfo: &KeyInfo{
					HTMLContent: "<p>LD50 &gt; 2000 mg/kg</p>",
					TextContent: "LD50 > 2000 mg/kg",
					Markdown:    "LD50 > 2000 mg/kg",
				},
			},
		},
	}

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Contains(t, fields, "cas_code")
	assert.Contains(t, fields["data"], "summary_data")

	var out ScrapeOutcome
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, &out)
}
