package pipelines

import (
	"errors"
	"fmt"
)

// Error represents a domain-specific error
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeMalformedSpec      = "MALFORMED_SPEC"
	ErrCodeConstructionFailed = "CONSTRUCTION_FAILED"
	ErrCodePipelineNotFound   = "PIPELINE_NOT_FOUND"
	ErrCodeElementNotFound    = "ELEMENT_NOT_FOUND"
	ErrCodePropertyRejected   = "PROPERTY_REJECTED"
	ErrCodeQueryFailed        = "QUERY_FAILED"
	ErrCodeUnknownCommand     = "UNKNOWN_COMMAND"
	ErrCodeEngineError        = "ENGINE_ERROR"
)

// NewError creates a new domain error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the domain error code, or UNKNOWN_COMMAND for errors
// that did not originate in this package.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeUnknownCommand
}

// MessageOf extracts the human-readable part of a domain error without
// the code prefix.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		if de.Cause != nil {
			return fmt.Sprintf("%s: %v", de.Message, de.Cause)
		}
		return de.Message
	}
	return err.Error()
}
