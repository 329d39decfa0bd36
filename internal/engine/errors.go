// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/travelsaas/ratescrape/pkg/models"
)

// ErrorCode discriminates pipeline failures.
type ErrorCode string

const (
	ErrCodeFetch         ErrorCode = "FETCH"
	ErrCodeStructure     ErrorCode = "STRUCTURE"
	ErrCodeEmptyResult   ErrorCode = "EMPTY_RESULT"
	ErrCodeValidation    ErrorCode = "VALIDATION"
	ErrCodeMissingConfig ErrorCode = "MISSING_CONFIG"
)

// EngineError wraps errors with a code and structured details
type EngineError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is matches another EngineError by code
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// GetStatusCode returns the HTTP status of a fetch failure, 0 otherwise.
func (e *EngineError) GetStatusCode() int {
	if s, ok := e.Details["status"].(int); ok {
		return s
	}
	return 0
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Message:    message,
		Underlying: err,
		Details:    make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons by code.
var (
	ErrFetch         = &EngineError{Code: ErrCodeFetch}
	ErrStructure     = &EngineError{Code: ErrCodeStructure}
	ErrEmptyResult   = &EngineError{Code: ErrCodeEmptyResult}
	ErrValidation    = &EngineError{Code: ErrCodeValidation}
	ErrMissingConfig = &EngineError{Code: ErrCodeMissingConfig}
)

// NewFetchError reports a non-success response (status > 0) or a transport
// failure (status 0). The message carries both the URL and the status.
func NewFetchError(url string, status int, err error) *EngineError {
	msg := fmt.Sprintf("Failed to fetch %s", url)
	if status > 0 {
		msg = fmt.Sprintf("Failed to fetch %s: %d %s", url, status, http.StatusText(status))
	}
	return NewEngineError(ErrCodeFetch, strings.TrimSpace(msg), err).
		WithDetail("url", url).
		WithDetail("status", status)
}

// NewStructureError reports a page missing an element extraction depends on.
func NewStructureError(format string, args ...interface{}) *EngineError {
	return NewEngineError(ErrCodeStructure, fmt.Sprintf(format, args...), nil)
}

// NewEmptyResultError reports an extraction that produced no usable rows.
func NewEmptyResultError(format string, args ...interface{}) *EngineError {
	return NewEngineError(ErrCodeEmptyResult, fmt.Sprintf(format, args...), nil)
}

// NewValidationError wraps a schema failure from the builder.
func NewValidationError(err error) *EngineError {
	e := NewEngineError(ErrCodeValidation, "table failed schema validation", err)
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		e.WithDetail("problems", verr.Problems)
	}
	return e
}

// NewConfigError reports that a source endpoint was never supplied.
func NewConfigError(envVar string) *EngineError {
	return NewEngineError(ErrCodeMissingConfig, fmt.Sprintf("%s is not configured", envVar), nil).
		WithDetail("env", envVar)
}

// CodeOf returns the code of the first EngineError in err's chain.
func CodeOf(err error) ErrorCode {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsMissingConfig reports whether err is a missing-configuration failure.
func IsMissingConfig(err error) bool {
	return CodeOf(err) == ErrCodeMissingConfig
}
