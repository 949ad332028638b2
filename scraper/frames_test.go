package scraper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/use-agent/sigillum/engine"
)

func frameList(urls ...string) []engine.Frame {
	out := make([]engine.Frame, len(urls))
	for i, u := range urls {
		out[i] = newFakeFrame(u)
	}
	return out
}

func TestResolveFrame(t *testing.T) {
	const src = "https://example.org/view?id=1"

	tests := []struct {
		name     string
		urls     []string
		chain    []FrameStrategy
		wantURL  string
		strategy string
	}{
		{
			name:     "exact wins over an earlier partial",
			urls:     []string{"about:blank", src + "#top", src},
			chain:    dossierFrameChain,
			wantURL:  src,
			strategy: "exact",
		},
		{
			name:     "partial when no exact match",
			urls:     []string{"https://example.org/", src + "&lang=en"},
			chain:    dossierFrameChain,
			wantURL:  src + "&lang=en",
			strategy: "partial",
		},
		{
			name:     "index 1 as last resort",
			urls:     []string{"https://example.org/", "https://cdn.example.org/other", "https://x/"},
			chain:    dossierFrameChain,
			wantURL:  "https://cdn.example.org/other",
			strategy: "index",
		},
		{
			name:  "single frame has no fallback",
			urls:  []string{"https://example.org/"},
			chain: dossierFrameChain,
		},
		{
			name:  "document chain stops after partial",
			urls:  []string{"https://example.org/", "https://cdn.example.org/other"},
			chain: documentFrameChain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, how := resolveFrame(frameList(tt.urls...), src, tt.chain)
			if tt.wantURL == "" {
				assert.Nil(t, f)
				assert.Empty(t, how)
				return
			}
			if assert.NotNil(t, f) {
				assert.Equal(t, tt.wantURL, f.URL())
			}
			assert.Equal(t, tt.strategy, how)
		})
	}
}

func TestPartialMatch_EmptySource(t *testing.T) {
	assert.Equal(t, -1, PartialMatch.Match([]string{"https://example.org/"}, ""))
}

func TestFindLead(t *testing.T) {
	cells := func(roles ...string) []engine.Element {
		out := make([]engine.Element, len(roles))
		for i, r := range roles {
			el := newFakeElement("role")
			el.text = r
			out[i] = el
		}
		return out
	}

	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{"lead last", []string{"Co-registrant", "Member", "Lead"}, 2},
		{"case and padding", []string{"Member", "  LEAD registrant \n"}, 1},
		{"first of several", []string{"Lead", "Lead"}, 0},
		{"none", []string{"Co-registrant", "Member"}, -1},
		{"empty table", nil, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := findLead(context.Background(), cells(tt.roles...), "lead")
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
