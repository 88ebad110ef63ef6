package injector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func originals(tag *Tag) []string {
	out := make([]string, 0, len(tag.Entries))
	for _, e := range tag.Entries {
		out = append(out, e.OriginalPath)
	}

	return out
}

func TestRegistryGroupsByExtension(t *testing.T) {
	r := NewRegistry(DefaultStartTag, DefaultEndTag, nil)

	r.Add("", "b.js", "/b.js", "B")
	r.Add("", "site.css", "/site.css", "S")
	r.Add("", "a.js", "/a.js", "A")
	r.Add("bower:", "lib/jquery.js", "/lib/jquery.js", "J")

	tags := r.Tags()
	require.Len(t, tags, 3)
	assert.Equal(t, 3, r.Len())

	assert.Equal(t, "js", tags[0].Key)
	assert.Equal(t, "<!-- injector:js -->", tags[0].StartMarker)
	assert.Equal(t, "<!-- endinjector -->", tags[0].EndMarker)
	assert.Equal(t, []string{"b.js", "a.js"}, originals(tags[0]), "discovery order")

	assert.Equal(t, "css", tags[1].Key)
	assert.Equal(t, "bower:js", tags[2].Key)
	assert.Equal(t, "<!-- injector:bower:js -->", tags[2].StartMarker)
}

func TestRegistryKeyIsRenderedStartMarker(t *testing.T) {
	r := NewRegistry("<!-- inject -->", "<!-- end:{{ext}} -->", nil)

	first := r.Add("", "a.js", "/a.js", "A")
	second := r.Add("", "b.css", "/b.css", "B")

	// Without {{ext}} in the start pattern every extension shares one tag.
	assert.Same(t, first, second)
	assert.Equal(t, "<!-- end:js -->", first.EndMarker)
	assert.Len(t, first.Entries, 2)
}

func TestRegistryEntryFields(t *testing.T) {
	r := NewRegistry(DefaultStartTag, DefaultEndTag, nil)
	tag := r.Add("", `lib\app.js`, "/lib/app.js", "<script>")

	assert.Equal(t, SourceEntry{
		OriginalPath:   `lib\app.js`,
		NormalizedPath: "/lib/app.js",
		Rendered:       "<script>",
	}, tag.Entries[0])
}

func TestRegistrySortIsStableAndPerTag(t *testing.T) {
	byLength := func(a, b string) int {
		return len(a) - len(b)
	}
	r := NewRegistry(DefaultStartTag, DefaultEndTag, byLength)

	r.Add("", "ccc.js", "/ccc.js", "")
	r.Add("", "x.css", "/x.css", "")
	r.Add("", "bb.js", "/bb.js", "")
	r.Add("", "aa.js", "/aa.js", "")
	r.Add("", "a.js", "/a.js", "")

	tags := r.Tags()
	require.Len(t, tags, 2)
	assert.Equal(t, []string{"a.js", "bb.js", "aa.js", "ccc.js"}, originals(tags[0]))
	assert.Equal(t, []string{"x.css"}, originals(tags[1]))
}

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry(DefaultStartTag, DefaultEndTag, nil)
	assert.Empty(t, r.Tags())
	assert.Zero(t, r.Len())
}
