package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNavigation represents page navigation and browser errors
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeExtraction represents page extraction errors
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeQueue represents work queue errors
	ErrorTypeQueue ErrorType = "queue"
	// ErrorTypeBlob represents object storage errors
	ErrorTypeBlob ErrorType = "blob"
	// ErrorTypeStorage represents record sink errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// EstateError represents a component-specific error
type EstateError struct {
	Type      ErrorType
	Component string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *EstateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *EstateError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is a transient external failure
func (e *EstateError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNavigation, ErrorTypeQueue, ErrorTypeBlob, ErrorTypeStorage:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err, or any error it wraps, is a retryable EstateError.
func IsRetryable(err error) bool {
	var ee *EstateError
	if stderrors.As(err, &ee) {
		return ee.IsRetryable()
	}
	return false
}

// IsType reports whether err wraps an EstateError of the given type.
func IsType(err error, t ErrorType) bool {
	var ee *EstateError
	return stderrors.As(err, &ee) && ee.Type == t
}

// New creates a new EstateError
func New(errType ErrorType, component, message string, err error) *EstateError {
	return &EstateError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewNavigation creates a new navigation error
func NewNavigation(component, message string, err error) *EstateError {
	return New(ErrorTypeNavigation, component, message, err)
}

// NewExtraction creates a new extraction error
func NewExtraction(component, message string, err error) *EstateError {
	return New(ErrorTypeExtraction, component, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(component string, retryAfter string) *EstateError {
	message := fmt.Sprintf("rate limited; retry after %s", retryAfter)
	return New(ErrorTypeRateLimit, component, message, nil)
}

// NewQueue creates a new queue error
func NewQueue(component, message string, err error) *EstateError {
	return New(ErrorTypeQueue, component, message, err)
}

// NewBlob creates a new blob storage error
func NewBlob(component, message string, err error) *EstateError {
	return New(ErrorTypeBlob, component, message, err)
}

// NewStorage creates a new record sink error
func NewStorage(component, message string, err error) *EstateError {
	return New(ErrorTypeStorage, component, message, err)
}

// NewValidation creates a new validation error
func NewValidation(component, message string) *EstateError {
	return New(ErrorTypeValidation, component, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *EstateError {
	return New(ErrorTypeConfiguration, "", message, err)
}
