package patch

import (
	"errors"
	"fmt"
)

// Validation failure reasons. Stable, machine-readable strings.
const (
	ReasonInvalidKey    = "invalid_patch_key"
	ReasonInvalidEnum   = "invalid_enum"
	ReasonInvalidType   = "invalid_type"
	ReasonMissingField  = "missing_field"
	ReasonInvalidLength = "invalid_length"
	ReasonInvalidValue  = "invalid_value"
	ReasonInvalidPage   = "invalid_page"
)

// ValidationError identifies the offending key and value of a rejected patch.
type ValidationError struct {
	Page   Page
	Key    string
	Reason string
	Value  any
}

func (e *ValidationError) Error() string {
	prefix := "patch"
	if e.Page != 0 {
		prefix = e.Page.String()
	}
	if e.Value != nil {
		return fmt.Sprintf("%s: %s %q (value %v)", prefix, e.Reason, e.Key, e.Value)
	}
	return fmt.Sprintf("%s: %s %q", prefix, e.Reason, e.Key)
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ReasonOf returns the Reason of a wrapped *ValidationError, or "".
func ReasonOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ""
}

func invalid(page Page, key, reason string, value any) *ValidationError {
	return &ValidationError{Page: page, Key: key, Reason: reason, Value: value}
}
