package injector

import (
	"path"
	"strings"
)

// NormalizePath converts a raw source path into the form handed to a
// Transform: forward slashes, optional minified variant, base paths stripped
// and exactly one leading slash.
//
// basePaths are applied in order, each to the result of the previous strip.
// Empty entries are ignored. fs is only consulted when min is true.
func NormalizePath(raw string, min bool, basePaths []string, fs FileSystem) string {
	p := strings.ReplaceAll(raw, `\`, "/")

	if min {
		p = minifiedVariant(p, fs)
	}

	p = stripBasePaths(p, basePaths)

	return addRootSlash(p)
}

// minifiedVariant returns name.min.ext when that file exists, p otherwise.
func minifiedVariant(p string, fs FileSystem) string {
	if fs == nil {
		return p
	}

	ext := path.Ext(p)
	candidate := strings.TrimSuffix(p, ext) + ".min" + ext
	if fs.Exists(candidate) {
		return candidate
	}

	return p
}

func stripBasePaths(p string, basePaths []string) string {
	for _, base := range basePaths {
		if base != "" && strings.HasPrefix(p, base) {
			p = p[len(base):]
		}
	}

	return p
}

// addRootSlash collapses leading slashes to one, or prepends one. A path made
// only of slashes is returned untouched.
func addRootSlash(p string) string {
	trimmed := strings.TrimLeft(p, "/")
	if trimmed == "" {
		return p
	}

	return "/" + trimmed
}

// extensionOf returns the extension of p without its leading dot.
func extensionOf(p string) string {
	return strings.TrimPrefix(path.Ext(strings.ReplaceAll(p, `\`, "/")), ".")
}
