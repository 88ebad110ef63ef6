package inspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultOptions = Options{
	StartTag: "<!-- injector:{{ext}} -->",
	EndTag:   "<!-- endinjector -->",
	HTML:     true,
}

func kinds(problems []Problem) []Kind {
	out := make([]Kind, 0, len(problems))
	for _, p := range problems {
		out = append(out, p.Kind)
	}

	return out
}

func TestScanFindsRegions(t *testing.T) {
	text := `<html>
<head>
  <!-- injector:css -->
  <link rel="stylesheet" href="/site.css">
  <!-- endinjector -->
</head>
<body>
  <!-- injector:js -->
  <!-- endinjector -->
</body>
</html>`

	report := Scan(text, defaultOptions)

	assert.Empty(t, report.Problems)
	require.Len(t, report.Regions, 2)
	assert.Equal(t, Region{Key: "css", StartLine: 3, EndLine: 5}, report.Regions[0])
	assert.Equal(t, Region{Key: "js", StartLine: 8, EndLine: 9, Empty: true}, report.Regions[1])
	assert.False(t, report.HasErrors())
}

func TestScanReportsMarkerProblems(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected []Kind
		lines    []int
	}{
		{
			name:     "unterminated start",
			text:     "<body>\n<!-- injector:js -->\n</body>",
			expected: []Kind{Unterminated},
			lines:    []int{2},
		},
		{
			name:     "orphan end",
			text:     "<body>\n<!-- endinjector -->\n</body>",
			expected: []Kind{OrphanEnd},
			lines:    []int{2},
		},
		{
			name:     "second end after a closed region",
			text:     "<!-- injector:js -->\n<!-- endinjector -->\n<!-- endinjector -->",
			expected: []Kind{OrphanEnd},
			lines:    []int{3},
		},
		{
			name:     "repeated start inside the open region",
			text:     "<!-- injector:js -->\n<!-- injector:js -->\n<!-- endinjector -->",
			expected: []Kind{Overlapping},
			lines:    []int{2},
		},
		{
			name:     "regions sharing one end marker",
			text:     "<!-- injector:js -->\n<!-- injector:css -->\n<!-- endinjector -->",
			expected: []Kind{Overlapping},
			lines:    []int{2},
		},
		{
			name:     "nested region with its own end",
			text:     "<!-- injector:js -->\n<!-- injector:css -->\n<!-- endinjector -->\n<!-- endinjector -->",
			expected: []Kind{Overlapping, OrphanEnd},
			lines:    []int{2, 4},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			report := Scan(tc.text, defaultOptions)

			assert.Equal(t, tc.expected, kinds(report.Problems))
			for i, line := range tc.lines {
				assert.Equal(t, line, report.Problems[i].Line)
			}
			assert.Equal(t, len(tc.expected) > 0, report.HasErrors())
		})
	}
}

func TestScanOverlappingRegionNamesInnerKey(t *testing.T) {
	text := "<!-- injector:js -->\n<!-- injector:css -->\n<!-- endinjector -->"

	report := Scan(text, defaultOptions)

	require.Len(t, report.Regions, 2)
	require.Len(t, report.Problems, 1)
	assert.Equal(t, "css", report.Problems[0].Key)
	assert.Equal(t, SeverityError, report.Problems[0].Severity)
	assert.True(t, report.HasErrors())
}

func TestScanIgnoresMarkersOutsideComments(t *testing.T) {
	text := `<!-- injector:js -->
<!-- endinjector -->
<script>
  var s = "<!-- injector:css -->";
</script>
<div title="<!-- endinjector -->"></div>`

	report := Scan(text, defaultOptions)
	assert.Empty(t, report.Problems)
	require.Len(t, report.Regions, 1)
	assert.Equal(t, "js", report.Regions[0].Key)

	plain := defaultOptions
	plain.HTML = false
	report = Scan(text, plain)
	assert.Empty(t, report.Problems)
	require.Len(t, report.Regions, 2)
	assert.Equal(t, "css", report.Regions[1].Key)
}

func TestScanNonHTMLMarkers(t *testing.T) {
	text := "// inject:js\nrequire('./a');\n// endinject:js\n// endinject:css\n"

	report := Scan(text, Options{StartTag: "// inject:{{ext}}", EndTag: "// endinject:{{ext}}", HTML: true})

	require.Len(t, report.Regions, 1)
	assert.Equal(t, Region{Key: "js", StartLine: 1, EndLine: 3}, report.Regions[0])
	assert.Equal(t, []Kind{OrphanEnd}, kinds(report.Problems))
	assert.Equal(t, "css", report.Problems[0].Key)
}

func TestScanMarkersAreCaseInsensitive(t *testing.T) {
	text := "<!-- INJECTOR:JS -->\n<!-- EndInjector -->"

	report := Scan(text, defaultOptions)

	assert.Empty(t, report.Problems)
	require.Len(t, report.Regions, 1)
	assert.Equal(t, "JS", report.Regions[0].Key)

	report.CheckKeys([]string{"js"})
	assert.Empty(t, report.Problems)
}

func TestCheckKeys(t *testing.T) {
	text := `<!-- injector:js -->
<!-- endinjector -->
<!-- injector:html -->
<!-- endinjector -->`

	report := Scan(text, defaultOptions)
	report.CheckKeys([]string{"js", "css", "bower:js"})

	require.Len(t, report.Problems, 3)
	assert.Equal(t, Problem{
		Kind:     UnusedRegion,
		Severity: SeverityWarning,
		Key:      "html",
		Line:     3,
		Message:  "no files map to region html",
	}, report.Problems[0])
	assert.Equal(t, MissingRegion, report.Problems[1].Kind)
	assert.Equal(t, "css", report.Problems[1].Key)
	assert.Equal(t, "bower:js", report.Problems[2].Key)
	assert.False(t, report.HasErrors())
}

func TestIsHTML(t *testing.T) {
	assert.True(t, IsHTML("dist/index.html"))
	assert.True(t, IsHTML("INDEX.HTM"))
	assert.False(t, IsHTML("app.js"))
	assert.False(t, IsHTML("README"))
}
