package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the addressed record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyConverted indicates a conversion was attempted on a converted scope.
	ErrAlreadyConverted = errors.New("scope already converted")

	// ErrGenerationFailed is the client-facing generation error. Provider detail
	// is captured in the diagnostic log only, never in this message.
	ErrGenerationFailed = errors.New("AI generation failed — please try again")
)

// ValidationError reports a rejected request field. It is surfaced to the
// caller immediately and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("'%s' %s", e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func requiredError(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

func enumError(field string, allowed []string) error {
	sorted := append([]string(nil), allowed...)
	sort.Strings(sorted)
	return &ValidationError{
		Field:   field,
		Message: "must be one of: " + strings.Join(sorted, ", "),
	}
}

// validateEnum accepts empty values; optional fields validate only when present.
func validateEnum(value, field string, allowed []string) error {
	if value == "" {
		return nil
	}
	for _, v := range allowed {
		if value == v {
			return nil
		}
	}
	return enumError(field, allowed)
}

func validateProgress(value int) error {
	for _, v := range ValidProgressValues {
		if value == v {
			return nil
		}
	}
	return &ValidationError{Field: "progress_percent", Message: "must be one of: 0, 25, 50, 75, 100"}
}

func validateDate(value, field string) error {
	if value == "" {
		return nil
	}
	if _, err := parseDate(value); err != nil {
		return &ValidationError{Field: field, Message: "must be a YYYY-MM-DD date"}
	}
	return nil
}
