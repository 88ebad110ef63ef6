package injector

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExpandSources turns source patterns into an ordered, de-duplicated file
// list. Patterns are processed left to right: globs (including **) append
// their matches, a pattern starting with "!" removes matching paths gathered
// so far, and a literal path is kept as is so a missing file can be reported
// later.
func ExpandSources(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}

		if negated, ok := strings.CutPrefix(pattern, "!"); ok {
			files = excludeMatches(files, negated, seen)
			continue
		}

		if !hasMeta(pattern) {
			if !seen[pattern] {
				seen[pattern] = true
				files = append(files, pattern)
			}
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				files = append(files, match)
			}
		}
	}

	return files, nil
}

func excludeMatches(files []string, pattern string, seen map[string]bool) []string {
	pattern = filepath.ToSlash(pattern)
	kept := files[:0]
	for _, f := range files {
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(f)); ok {
			delete(seen, f)
			continue
		}
		kept = append(kept, f)
	}

	return kept
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
