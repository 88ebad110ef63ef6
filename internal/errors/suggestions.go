package errors

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

// Suggest returns hints for the known error codes in err. Errors without an
// InjectorError in their chain get no suggestions.
func Suggest(err error) []ErrorSuggestion {
	var ie *InjectorError
	if !errors.As(err, &ie) {
		return nil
	}

	switch ie.Code {
	case ErrCodeTemplateNotFound:
		return []ErrorSuggestion{
			{
				Title:       "Create the template",
				Description: "Without a template option the destination itself is used as the template",
				Command:     "touch " + ie.FilePath,
			},
			{
				Title:       "Point the target at an existing template",
				Description: "Set the template on the target or in the global options",
				Example:     "targets:\n  - name: app\n    template: src/index.html\n    dest: dist/index.html",
			},
		}
	case ErrCodeSourceNotFound:
		return []ErrorSuggestion{
			{
				Title:       "Check the source pattern",
				Description: "Literal paths are kept even when missing; use a glob to only match existing files",
				Example:     filepath.ToSlash(filepath.Join(filepath.Dir(ie.FilePath), "*"+filepath.Ext(ie.FilePath))),
			},
		}
	case ErrCodeTransformUnknown:
		return []ErrorSuggestion{
			{
				Title:       "Add a transform for the extension",
				Description: "Only css, js and html are rendered by default",
				Example:     "options:\n  transform:\n    " + strings.TrimPrefix(filepath.Ext(ie.FilePath), ".") + ": '<link href=\"{{path}}\">'",
			},
		}
	case ErrCodeTargetNotFound:
		return []ErrorSuggestion{
			{
				Title:   "List configured targets",
				Command: "injector list",
			},
		}
	}

	return nil
}
