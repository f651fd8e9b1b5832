package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is returned when a required field is missing.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnavailable marks a failed call to an external service.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedResponse marks an upstream payload that does not match the expected schema.
	ErrMalformedResponse = errors.New("malformed upstream response")
	// ErrConflict is returned on slug or subscriber uniqueness violations.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned when an article does not exist or is not visible.
	ErrNotFound = errors.New("not found")
	// ErrOptimizationFailed is returned by the SEO optimizer when it cannot produce any result.
	ErrOptimizationFailed = errors.New("seo optimization failed")
)

// FieldError describes one invalid field with a message meant for the editor.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects field errors. It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	Items []FieldError `json:"fields"`
}

func (e ValidationError) Error() string {
	if len(e.Items) == 0 {
		return "validation failed"
	}
	if len(e.Items) == 1 {
		return e.Items[0].Message
	}

	msgs := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		msgs = append(msgs, item.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Add(field, msg string) {
	e.Items = append(e.Items, FieldError{Field: field, Message: msg})
}

func (e ValidationError) HasAny() bool {
	return len(e.Items) > 0
}

func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Invalid builds a single-field validation error.
func Invalid(field, msg string) error {
	return ValidationError{Items: []FieldError{{Field: field, Message: msg}}}
}
