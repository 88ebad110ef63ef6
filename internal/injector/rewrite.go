package injector

import (
	"regexp"
	"strings"
)

// regionPattern matches a marker region: indentation on the marker line, the
// start marker, anything up to the nearest end marker. Markers are literal.
func regionPattern(start, end string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)([\t ]*)(` + regexp.QuoteMeta(start) + `)(?s:.*?)(` + regexp.QuoteMeta(end) + `)`)
}

// Rewrite replaces the body of every region delimited by tag's markers with
// the tag's rendered entries, one per line at the marker's indentation. It
// returns the new text and the number of regions replaced. Text outside the
// regions is left byte-identical; a template without the markers is returned
// unchanged.
func Rewrite(text string, tag *Tag) (string, int) {
	re := regionPattern(tag.StartMarker, tag.EndMarker)
	matches := 0

	out := re.ReplaceAllStringFunc(text, func(match string) string {
		matches++
		groups := re.FindStringSubmatch(match)
		indent, start, end := groups[1], groups[2], groups[3]

		var b strings.Builder
		b.WriteString(indent)
		b.WriteString(start)
		for _, entry := range tag.Entries {
			b.WriteString("\n")
			b.WriteString(indent)
			b.WriteString(entry.Rendered)
		}
		b.WriteString("\n")
		b.WriteString(indent)
		b.WriteString(end)

		return b.String()
	})

	return out, matches
}
