package scraper

import (
	"strings"

	"github.com/use-agent/sigillum/engine"
)

// FrameStrategy picks a frame for an iframe source from the page's frame
// URLs, returning its index or -1.
type FrameStrategy struct {
	Name  string
	Match func(urls []string, src string) int
}

// ExactMatch selects the first frame whose URL equals src.
var ExactMatch = FrameStrategy{
	Name: "exact",
	Match: func(urls []string, src string) int {
		for i, u := range urls {
			if u == src {
				return i
			}
		}
		return -1
	},
}

// PartialMatch selects the first frame whose URL contains src. It absorbs
// small differences such as an added query string or fragment.
var PartialMatch = FrameStrategy{
	Name: "partial",
	Match: func(urls []string, src string) int {
		if src == "" {
			return -1
		}
		for i, u := range urls {
			if strings.Contains(u, src) {
				return i
			}
		}
		return -1
	},
}

// IndexFallback selects the frame at position i when the page has more than
// i frames. It assumes a fixed frame layout and is only a last resort.
func IndexFallback(i int) FrameStrategy {
	return FrameStrategy{
		Name: "index",
		Match: func(urls []string, _ string) int {
			if i >= 0 && len(urls) > i {
				return i
			}
			return -1
		},
	}
}

// dossierFrameChain resolves the dossier view frame.
var dossierFrameChain = []FrameStrategy{ExactMatch, PartialMatch, IndexFallback(1)}

// documentFrameChain resolves the document view frame; the caller falls back
// to the iframe element itself when both miss.
var documentFrameChain = []FrameStrategy{ExactMatch, PartialMatch}

// resolveFrame tries each strategy in order; the first hit wins. It returns
// the frame and the winning strategy's name.
func resolveFrame(frames []engine.Frame, src string, chain []FrameStrategy) (engine.Frame, string) {
	urls := make([]string, len(frames))
	for i, f := range frames {
		urls[i] = f.URL()
	}
	for _, s := range chain {
		if i := s.Match(urls, src); i >= 0 {
			return frames[i], s.Name
		}
	}
	return nil, ""
}
