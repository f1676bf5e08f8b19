package canon

import (
	"errors"
	"fmt"
)

// Serialization failure reasons.
const (
	ReasonNonFiniteFloat  = "non_finite_float"
	ReasonUnsupportedType = "unsupported_type"
	ReasonDuplicateKey    = "duplicate_key"
)

// SerializationError reports a value that has no canonical encoding.
// Path is a JSONPath-like locator ("$.state.mass", "$.ops[2]").
type SerializationError struct {
	Path   string
	Reason string
	Detail string
}

func (e *SerializationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("canonical json: %s at %s: %s", e.Reason, e.Path, e.Detail)
	}
	return fmt.Sprintf("canonical json: %s at %s", e.Reason, e.Path)
}

// IsSerializationError reports whether err wraps a *SerializationError.
func IsSerializationError(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}
