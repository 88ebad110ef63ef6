package injector

import "strings"

// Transform maps a normalized path to the text injected for it. The boolean
// is false when no rendering is known for the path; such files are skipped
// with a warning. An empty string with true is a deliberate empty line.
type Transform func(path string) (string, bool)

// DefaultTransform renders stylesheets, scripts and HTML imports.
func DefaultTransform(path string) (string, bool) {
	switch extensionOf(path) {
	case "css":
		return `<link rel="stylesheet" href="` + path + `">`, true
	case "js":
		return `<script src="` + path + `"></script>`, true
	case "html":
		return `<link rel="import" href="` + path + `">`, true
	default:
		return "", false
	}
}

// TemplateTransform renders extensions found in formats by substituting
// {{path}} and {{ext}}, and falls back to DefaultTransform for the rest.
// Keys may be written with or without the leading dot.
func TemplateTransform(formats map[string]string) Transform {
	normalized := make(map[string]string, len(formats))
	for ext, format := range formats {
		normalized[strings.TrimPrefix(ext, ".")] = format
	}

	return func(path string) (string, bool) {
		ext := extensionOf(path)
		format, ok := normalized[ext]
		if !ok {
			return DefaultTransform(path)
		}

		r := strings.NewReplacer("{{path}}", path, "{{ext}}", ext)

		return r.Replace(format), true
	}
}
