package workflow

import (
	"errors"
	"fmt"
)

// ValidationError rejects a submission synchronously; nothing is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidationError unwraps the typed validation failure for API responses.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ExtractionError is a frame-extraction tool failure. It is fatal to the
// recording: the row transitions to failed and is not retried.
type ExtractionError struct {
	Reason string
	Cause  error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("frame extraction: %s: %v", e.Reason, e.Cause)
	}
	return "frame extraction: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// AdapterError aggregates vision-adapter failures. Single-frame failures are
// tolerated upstream; this error is raised only when no frame produced any
// usable measurement.
type AdapterError struct {
	Reason string
}

func (e *AdapterError) Error() string {
	return "vision extraction: " + e.Reason
}
