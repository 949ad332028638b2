package engine

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
)

func TestNewResourceFilter(t *testing.T) {
	f, rejected := newResourceFilter([]string{"Image", " font ", "Document", "Script", "xhr", ""})

	assert.Equal(t, []string{"Document", "Script", "xhr"}, rejected)
	assert.True(t, f.blocks(proto.NetworkResourceTypeImage))
	assert.True(t, f.blocks(proto.NetworkResourceTypeFont))
	assert.False(t, f.blocks(proto.NetworkResourceTypeStylesheet))
}

func TestResourceFilter_NeverBlocksFramesOrScripts(t *testing.T) {
	var all []string
	for name := range blockableTypes {
		all = append(all, name)
	}
	f, rejected := newResourceFilter(all)
	assert.Empty(t, rejected)

	for _, rt := range []proto.NetworkResourceType{
		proto.NetworkResourceTypeDocument,
		proto.NetworkResourceTypeScript,
		proto.NetworkResourceTypeXHR,
		proto.NetworkResourceTypeFetch,
	} {
		assert.False(t, f.blocks(rt), rt)
	}
}

func TestNewResourceFilter_Empty(t *testing.T) {
	f, rejected := newResourceFilter(nil)
	assert.Empty(t, f)
	assert.Empty(t, rejected)
}
