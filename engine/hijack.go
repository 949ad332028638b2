package engine

import (
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockableTypes are the resource types a session may drop. Documents
// (pages and every nested frame), scripts and XHR/fetch are absent: the
// registry is a client-rendered app and the dossier view lives in frames.
var blockableTypes = map[string]proto.NetworkResourceType{
	"image":      proto.NetworkResourceTypeImage,
	"stylesheet": proto.NetworkResourceTypeStylesheet,
	"font":       proto.NetworkResourceTypeFont,
	"media":      proto.NetworkResourceTypeMedia,
	"ping":       proto.NetworkResourceTypePing,
	"manifest":   proto.NetworkResourceTypeManifest,
}

// resourceFilter decides which intercepted requests fail.
type resourceFilter map[proto.NetworkResourceType]struct{}

// newResourceFilter builds a filter from configured type names, matched
// case-insensitively. Names that are unknown or must never be blocked are
// returned as rejected.
func newResourceFilter(names []string) (resourceFilter, []string) {
	f := resourceFilter{}
	var rejected []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		rt, ok := blockableTypes[strings.ToLower(name)]
		if !ok {
			rejected = append(rejected, name)
			continue
		}
		f[rt] = struct{}{}
	}
	return f, rejected
}

func (f resourceFilter) blocks(rt proto.NetworkResourceType) bool {
	_, ok := f[rt]
	return ok
}

// setupHijack fails requests of the blocked resource types on page and lets
// everything else through, including sub-frame documents.
//
// Returns nil when nothing is blocked; otherwise the caller stops the
// returned router on session close.
func setupHijack(page *rod.Page, blockedTypes []string) *rod.HijackRouter {
	filter, rejected := newResourceFilter(blockedTypes)
	if len(rejected) > 0 {
		slog.Warn("ignoring resource types that cannot be blocked", "types", rejected)
	}
	if len(filter) == 0 {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if filter.blocks(h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()

	return router
}
