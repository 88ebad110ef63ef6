// Package inspect finds the marker regions of a template and reports the
// ones an injection run would trip over: start markers that are never
// closed, end markers that close nothing, start markers buried in another
// region, regions no file will be injected into, and tags whose files have
// nowhere to go.
//
// HTML templates with comment markers are tokenized, so marker text inside
// script bodies or attribute values is not mistaken for a marker.
package inspect

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
)

// ExtPlaceholder is replaced with the tag key in marker patterns.
const ExtPlaceholder = "{{ext}}"

// Severity of a problem.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Kind identifies a class of problem.
type Kind string

const (
	// Unterminated is a start marker with no end marker after it.
	Unterminated Kind = "unterminated"
	// OrphanEnd is an end marker that closes no region.
	OrphanEnd Kind = "orphan-end"
	// Overlapping is a start marker inside another region's body. Rewriting
	// the outer region removes it.
	Overlapping Kind = "overlapping"
	// UnusedRegion is a region whose key no file maps to.
	UnusedRegion Kind = "unused-region"
	// MissingRegion is a tag with files but no region in the template.
	MissingRegion Kind = "missing-region"
)

// Problem is one finding, located by 1-based line.
type Problem struct {
	Kind     Kind     `json:"kind" yaml:"kind"`
	Severity Severity `json:"severity" yaml:"severity"`
	Key      string   `json:"key,omitempty" yaml:"key,omitempty"`
	Line     int      `json:"line,omitempty" yaml:"line,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

// Region is a matched start/end marker pair.
type Region struct {
	Key       string `json:"key" yaml:"key"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
	// Empty is true when only whitespace sits between the markers.
	Empty bool `json:"empty" yaml:"empty"`
}

// Report is the outcome of scanning one template.
type Report struct {
	Template string    `json:"template" yaml:"template"`
	Regions  []Region  `json:"regions" yaml:"regions"`
	Problems []Problem `json:"problems,omitempty" yaml:"problems,omitempty"`
}

// HasErrors reports whether any problem is an error.
func (r *Report) HasErrors() bool {
	return slices.ContainsFunc(r.Problems, func(p Problem) bool {
		return p.Severity == SeverityError
	})
}

// Options select the marker patterns to look for.
type Options struct {
	StartTag string
	EndTag   string
	// HTML tokenizes the template and only considers comments. It is
	// ignored unless the start pattern is itself an HTML comment.
	HTML bool
}

// IsHTML reports whether path names an HTML document.
func IsHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	}

	return false
}

type markerKind int

const (
	startMarker markerKind = iota
	endMarker
)

type marker struct {
	kind   markerKind
	key    string
	offset int
	length int
}

// Scan finds every region in text and reports unterminated and orphaned
// markers. Regions are matched the way injection matches them: each start
// marker pairs with the nearest following end marker for the same key, and
// anything in between is region body.
func Scan(text string, opts Options) *Report {
	report := &Report{}

	starts := markerRegexp(opts.StartTag)
	ends := markerRegexp(opts.EndTag)
	endKeyed := strings.Contains(opts.EndTag, ExtPlaceholder)

	markers := findMarkers(text, starts, ends, opts.HTML && isComment(opts.StartTag))
	fold := cases.Fold()

	var keys []string
	for _, m := range markers {
		if m.kind == startMarker && !slices.Contains(keys, fold.String(m.key)) {
			keys = append(keys, fold.String(m.key))
		}
	}

	used := make(map[int]bool)
	var spans [][2]int
	for _, key := range keys {
		var open *marker
		for i := range markers {
			m := &markers[i]
			switch {
			case m.kind == startMarker && fold.String(m.key) == key:
				if open == nil {
					open = m
				}
			case m.kind == endMarker && open != nil && (!endKeyed || fold.String(m.key) == key):
				used[i] = true
				spans = append(spans, [2]int{open.offset, m.offset})
				body := text[open.offset+open.length : m.offset]
				report.Regions = append(report.Regions, Region{
					Key:       open.key,
					StartLine: lineOf(text, open.offset),
					EndLine:   lineOf(text, m.offset),
					Empty:     strings.TrimSpace(body) == "",
				})
				open = nil
			}
		}
		if open != nil {
			report.Problems = append(report.Problems, Problem{
				Kind:     Unterminated,
				Severity: SeverityError,
				Key:      open.key,
				Line:     lineOf(text, open.offset),
				Message:  "start marker for " + open.key + " has no end marker",
			})
		}
	}

	for _, m := range markers {
		if m.kind != startMarker {
			continue
		}
		if slices.ContainsFunc(spans, func(span [2]int) bool {
			return span[0] < m.offset && m.offset < span[1]
		}) {
			report.Problems = append(report.Problems, Problem{
				Kind:     Overlapping,
				Severity: SeverityError,
				Key:      m.key,
				Line:     lineOf(text, m.offset),
				Message:  "start marker for " + m.key + " sits inside another region and would be overwritten",
			})
		}
	}

	for i, m := range markers {
		if m.kind != endMarker || used[i] {
			continue
		}
		report.Problems = append(report.Problems, Problem{
			Kind:     OrphanEnd,
			Severity: SeverityError,
			Key:      m.key,
			Line:     lineOf(text, m.offset),
			Message:  "end marker closes no region",
		})
	}

	slices.SortStableFunc(report.Regions, func(a, b Region) int { return a.StartLine - b.StartLine })
	slices.SortStableFunc(report.Problems, func(a, b Problem) int { return a.Line - b.Line })

	return report
}

// CheckKeys compares the report's regions with the tag keys a run would
// produce. Keys compare case-insensitively, as markers do.
func (r *Report) CheckKeys(keys []string) {
	fold := cases.Fold()

	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[fold.String(k)] = true
	}

	found := make(map[string]bool, len(r.Regions))
	for _, region := range r.Regions {
		k := fold.String(region.Key)
		if found[k] {
			continue
		}
		found[k] = true
		if !wanted[k] {
			r.Problems = append(r.Problems, Problem{
				Kind:     UnusedRegion,
				Severity: SeverityWarning,
				Key:      region.Key,
				Line:     region.StartLine,
				Message:  "no files map to region " + region.Key,
			})
		}
	}

	for _, k := range keys {
		if found[fold.String(k)] {
			continue
		}
		found[fold.String(k)] = true
		r.Problems = append(r.Problems, Problem{
			Kind:     MissingRegion,
			Severity: SeverityWarning,
			Key:      k,
			Message:  "files for " + k + " have no region in the template",
		})
	}
}

// markerRegexp compiles a marker pattern. The {{ext}} placeholder captures
// the key; a pattern without it captures nothing.
func markerRegexp(pattern string) *regexp.Regexp {
	before, after, ok := strings.Cut(pattern, ExtPlaceholder)
	if !ok {
		return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(pattern) + `()`)
	}

	key := `(\S+?)`
	if after == "" {
		key = `(\S+)`
	}

	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(before) + key + regexp.QuoteMeta(after))
}

func isComment(pattern string) bool {
	p := strings.TrimSpace(pattern)
	return strings.HasPrefix(p, "<!--") && strings.HasSuffix(p, "-->")
}

// findMarkers returns start and end markers in document order.
func findMarkers(text string, starts, ends *regexp.Regexp, htmlMode bool) []marker {
	var markers []marker

	for _, seg := range segments(text, htmlMode) {
		endSpans := make(map[[2]int]bool)
		for _, loc := range ends.FindAllStringSubmatchIndex(seg.text, -1) {
			endSpans[[2]int{loc[0], loc[1]}] = true
			markers = append(markers, marker{
				kind:   endMarker,
				key:    seg.text[loc[2]:loc[3]],
				offset: seg.offset + loc[0],
				length: loc[1] - loc[0],
			})
		}
		for _, loc := range starts.FindAllStringSubmatchIndex(seg.text, -1) {
			// A loose start pattern can also match an end marker.
			if endSpans[[2]int{loc[0], loc[1]}] {
				continue
			}
			markers = append(markers, marker{
				kind:   startMarker,
				key:    seg.text[loc[2]:loc[3]],
				offset: seg.offset + loc[0],
				length: loc[1] - loc[0],
			})
		}
	}

	slices.SortStableFunc(markers, func(a, b marker) int { return a.offset - b.offset })

	return markers
}

type segment struct {
	offset int
	text   string
}

// segments returns the parts of text that may hold markers: the whole text,
// or in HTML mode each comment.
func segments(text string, htmlMode bool) []segment {
	if !htmlMode {
		return []segment{{text: text}}
	}

	var segs []segment
	z := html.NewTokenizer(strings.NewReader(text))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		if tt == html.CommentToken {
			segs = append(segs, segment{offset: offset, text: string(raw)})
		}
		offset += len(raw)
	}

	return segs
}

func lineOf(text string, offset int) int {
	return 1 + strings.Count(text[:offset], "\n")
}
