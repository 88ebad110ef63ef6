package injector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTransform(t *testing.T) {
	tests := []struct {
		path     string
		expected string
		ok       bool
	}{
		{"/css/site.css", `<link rel="stylesheet" href="/css/site.css">`, true},
		{"/js/app.js", `<script src="/js/app.js"></script>`, true},
		{"/parts/nav.html", `<link rel="import" href="/parts/nav.html">`, true},
		{"/img/logo.svg", "", false},
		{"/README", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rendered, ok := DefaultTransform(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, rendered)
		})
	}
}

func TestTemplateTransform(t *testing.T) {
	transform := TemplateTransform(map[string]string{
		"js":   `<script src="{{path}}" defer></script>`,
		".svg": `<img src="{{path}}" alt="{{ext}}">`,
		"txt":  "",
	})

	rendered, ok := transform("/app.js")
	assert.True(t, ok)
	assert.Equal(t, `<script src="/app.js" defer></script>`, rendered)

	rendered, ok = transform("/logo.svg")
	assert.True(t, ok)
	assert.Equal(t, `<img src="/logo.svg" alt="svg">`, rendered)

	rendered, ok = transform("/site.css")
	assert.True(t, ok, "falls back to the default transform")
	assert.Equal(t, `<link rel="stylesheet" href="/site.css">`, rendered)

	rendered, ok = transform("/notes.txt")
	assert.True(t, ok, "an empty format is a deliberate empty line")
	assert.Equal(t, "", rendered)

	_, ok = transform("/data.bin")
	assert.False(t, ok)
}
