package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	ErrorCategoryConfiguration  ErrorCategory = "configuration"
	ErrorCategoryNetwork        ErrorCategory = "network"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryProcessing     ErrorCategory = "processing"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryStorage        ErrorCategory = "storage"
)

// ServiceError represents a standardized error with additional context
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Details     interface{}   `json:"details,omitempty"`
	StatusCode  int           `json:"status_code,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Cause       error         `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(category ErrorCategory, code, message, serviceName, operation string, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Cause:       cause,
	}
}

// WithDetails adds additional details to the error
func (e *ServiceError) WithDetails(details interface{}) *ServiceError {
	e.Details = details
	return e
}

// WithStatus records the HTTP status that produced the error
func (e *ServiceError) WithStatus(statusCode int) *ServiceError {
	e.StatusCode = statusCode
	return e
}

// GetCategory returns the error category
func (e *ServiceError) GetCategory() ErrorCategory {
	return e.Category
}

// LogError logs the error with structured fields
func (e *ServiceError) LogError() {
	logrus.WithFields(logrus.Fields{
		"error_category":   e.Category,
		"error_code":       e.Code,
		"error_message":    e.Message,
		"status_code":      e.StatusCode,
		"service_name":     e.ServiceName,
		"operation":        e.Operation,
		"timestamp":        e.Timestamp,
		"details":          e.Details,
		"underlying_error": e.Cause,
	}).Error("Service error occurred")
}

// FieldErrors maps a form field to the messages the server reported for it
type FieldErrors map[string][]string

// Message joins field errors into one display string. A top-level "error"
// entry wins; otherwise every message is joined in field order.
func (f FieldErrors) Message() string {
	if messages, ok := f["error"]; ok && len(messages) > 0 {
		return strings.Join(messages, ", ")
	}

	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var parts []string
	for _, field := range fields {
		parts = append(parts, f[field]...)
	}
	return strings.Join(parts, ", ")
}

// NewAuthError reports rejected credentials
func NewAuthError(operation string, statusCode int, cause error) *ServiceError {
	return NewServiceError(ErrorCategoryAuthentication, "INVALID_CREDENTIALS",
		"authentication failed", "api-gateway", operation, cause).WithStatus(statusCode)
}

// NewValidationError reports field-level rejections from the server or form
func NewValidationError(operation string, statusCode int, fields FieldErrors) *ServiceError {
	message := fields.Message()
	if message == "" {
		message = "request rejected by validation"
	}
	return NewServiceError(ErrorCategoryValidation, "VALIDATION_FAILED",
		message, "api-gateway", operation, nil).WithStatus(statusCode).WithDetails(fields)
}

// NewNetworkError reports a request that never produced a response
func NewNetworkError(operation string, cause error) *ServiceError {
	return NewServiceError(ErrorCategoryNetwork, "NO_RESPONSE",
		"no response from server", "api-gateway", operation, cause)
}

// NewNotFoundError reports a missing update/delete target
func NewNotFoundError(operation string, target string) *ServiceError {
	return NewServiceError(ErrorCategoryNotFound, "NOT_FOUND",
		fmt.Sprintf("%s not found", target), "api-gateway", operation, nil).WithStatus(404)
}

// WrapError wraps an existing error with service error context
func WrapError(err error, category ErrorCategory, code, serviceName, operation string) *ServiceError {
	if err == nil {
		return nil
	}

	// If it's already a ServiceError, just update the context
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		serviceErr.ServiceName = serviceName
		serviceErr.Operation = operation
		return serviceErr
	}

	return NewServiceError(category, code, err.Error(), serviceName, operation, err)
}

// CategoryOf returns the category of a ServiceError anywhere in the chain
func CategoryOf(err error) (ErrorCategory, bool) {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Category, true
	}
	return "", false
}

func hasCategory(err error, category ErrorCategory) bool {
	actual, ok := CategoryOf(err)
	return ok && actual == category
}

// IsAuthError reports an authentication failure
func IsAuthError(err error) bool { return hasCategory(err, ErrorCategoryAuthentication) }

// IsValidationError reports a validation failure
func IsValidationError(err error) bool { return hasCategory(err, ErrorCategoryValidation) }

// IsNetworkError reports a transport failure
func IsNetworkError(err error) bool { return hasCategory(err, ErrorCategoryNetwork) }

// IsNotFound reports a missing target
func IsNotFound(err error) bool { return hasCategory(err, ErrorCategoryNotFound) }

// FieldErrorsOf extracts server field errors from a validation error
func FieldErrorsOf(err error) (FieldErrors, bool) {
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		return nil, false
	}
	fields, ok := serviceErr.Details.(FieldErrors)
	return fields, ok
}
