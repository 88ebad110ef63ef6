package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectorErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *InjectorError
		expected string
	}{
		{
			name:     "template not found",
			err:      ErrTemplateNotFound("index.html").WithTarget("app"),
			expected: `[TEMPLATE_NOT_FOUND] target:app index.html could not find template "index.html", injection not possible`,
		},
		{
			name:     "with cause",
			err:      ErrWriteFailed("dist/index.html", errors.New("disk full")),
			expected: "[WRITE_FAILED] dist/index.html failed to write destination: disk full",
		},
		{
			name:     "bare config error",
			err:      NewConfigError("", "bad"),
			expected: "bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestInjectorErrorIsAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", ErrWriteFailed("out.html", cause))

	assert.True(t, errors.Is(err, ErrWriteFailed("other.html", nil)))
	assert.False(t, errors.Is(err, ErrTemplateNotFound("out.html")))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, HasCode(err, ErrCodeWriteFailed))
	assert.True(t, IsType(err, ErrorTypeIO))
	assert.False(t, IsRecoverable(err))
	assert.True(t, IsRecoverable(ErrSourceNotFound("a.js")))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestFieldsAreSorted(t *testing.T) {
	err := ErrTransformUnknown("a.txt", "txt").WithTarget("app").WithContext("alpha", 1)

	assert.Equal(t, []interface{}{
		"type", "transform",
		"code", ErrCodeTransformUnknown,
		"target", "app",
		"file", "a.txt",
		"alpha", 1,
		"tag", "txt",
	}, err.Fields())
}

func TestValidationErrorCollection(t *testing.T) {
	var vec ValidationErrorCollection
	assert.Nil(t, vec.ToInjectorError())
	assert.Equal(t, "no validation errors", vec.Error())

	vec.AddField("options.sort", "sideways", "unknown sort")
	assert.Equal(t, "validation error in field 'options.sort': unknown sort", vec.Error())

	vec.AddField("targets[0].dest", "", "dest is required")
	assert.Equal(t, "validation failed with 2 errors", vec.Error())

	ie := vec.ToInjectorError()
	require.NotNil(t, ie)
	assert.Equal(t, ErrCodeConfigInvalid, ie.Code)
	assert.Contains(t, ie.Message, "unknown sort")
	assert.Contains(t, ie.Message, "dest is required")
	assert.Equal(t, "sideways", ie.Context["options.sort"])
}

func TestSuggest(t *testing.T) {
	assert.Nil(t, Suggest(errors.New("plain")))
	assert.NotEmpty(t, Suggest(ErrTemplateNotFound("index.html")))

	s := Suggest(ErrTransformUnknown("assets/logo.svg", "svg"))
	require.Len(t, s, 1)
	assert.Contains(t, s[0].Example, "svg:")
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.errors = append(r.errors, msg)
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.warns = append(r.warns, msg)
}

func TestErrorHandlerUnpacksJoinedErrors(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)

	h.Handle(context.Background(), nil)
	h.Handle(context.Background(), errors.Join(
		ErrTemplateNotFound("a.html"),
		ErrSourceNotFound("b.js"),
		errors.New("plain"),
	))

	assert.Len(t, logger.errors, 2)
	assert.Equal(t, []string{`source file "b.js" not found`}, logger.warns)
}
