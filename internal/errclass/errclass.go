// Package errclass classifies errors for retry decisions. Errors fall into
// transient (retryable with backoff), permanent (validation failures, never
// retried), and conflict (a resource was claimed concurrently; retry with
// different input) classes. The engine itself never retries; classification
// is guidance for callers.
package errclass

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// TransientError is implemented by error types that are temporary by
// construction, such as provider timeouts and index unavailability.
type TransientError interface {
	error
	Transient() bool
}

// ConflictError is implemented by error types signalling that a resource
// (typically a meeting slot) was taken between decision and commit.
type ConflictError interface {
	error
	IsConflict() bool
}

// ErrorClass represents the category of error for retry decisions.
type ErrorClass int

const (
	// Examples: provider timeout, index unavailable, network failure.
	ErrorClassTransient ErrorClass = iota

	// Examples: dimension mismatch, invalid step, bad configuration.
	ErrorClassPermanent

	// Examples: slot already booked at commit time.
	ErrorClassConflict
)

// String returns the string representation of ErrorClass.
func (e ErrorClass) String() string {
	switch e {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassPermanent:
		return "permanent"
	case ErrorClassConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps an error with its classification and retry guidance.
type ClassifiedError struct {
	Original   error
	ActionHint string
	Class      ErrorClass
	RetryAfter time.Duration
}

// Error returns a formatted error message.
func (c *ClassifiedError) Error() string {
	if c.Original == nil {
		return fmt.Sprintf("classified error: class=%s", c.Class)
	}
	return fmt.Sprintf("%s: %v", c.Class, c.Original)
}

// Unwrap returns the original error for errors.Is/As.
func (c *ClassifiedError) Unwrap() error {
	return c.Original
}

// IsTransient returns true if the error is temporary and should be retried.
func (c *ClassifiedError) IsTransient() bool {
	return c.Class == ErrorClassTransient
}

// IsPermanent returns true if the error is non-retryable.
func (c *ClassifiedError) IsPermanent() bool {
	return c.Class == ErrorClassPermanent
}

// IsConflict returns true if the error is a conflict.
func (c *ClassifiedError) IsConflict() bool {
	return c.Class == ErrorClassConflict
}

// Classify analyzes an error and determines its class and retry strategy.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var conflictErr ConflictError
	if errors.As(err, &conflictErr) && conflictErr.IsConflict() {
		return &ClassifiedError{
			Class:      ErrorClassConflict,
			Original:   err,
			ActionHint: "retry_excluding_slot",
		}
	}

	var transientErr TransientError
	if errors.As(err, &transientErr) && transientErr.Transient() {
		return &ClassifiedError{
			Class:      ErrorClassTransient,
			Original:   err,
			RetryAfter: 2 * time.Second,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || isTimeoutError(err) {
		return &ClassifiedError{
			Class:      ErrorClassTransient,
			Original:   err,
			RetryAfter: 3 * time.Second,
		}
	}

	if isNetworkError(err) {
		return &ClassifiedError{
			Class:      ErrorClassTransient,
			Original:   err,
			RetryAfter: 2 * time.Second,
		}
	}

	// Validation errors surface with stable message prefixes.
	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "invalid") ||
		strings.Contains(errMsg, "mismatch") ||
		strings.Contains(errMsg, "not found") ||
		strings.Contains(errMsg, "required") {
		return &ClassifiedError{
			Class:    ErrorClassPermanent,
			Original: err,
		}
	}

	// Default to permanent for unknown errors (fail safe).
	return &ClassifiedError{
		Class:    ErrorClassPermanent,
		Original: err,
	}
}

// isNetworkError checks if an error is network-related (transient).
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"network is unreachable",
		"no such host",
		"temporary failure",
		"dial tcp",
		"eof",
	}

	for _, pattern := range networkPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}

// isTimeoutError checks if an error is timeout-related (transient).
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	timeoutPatterns := []string{
		"timeout",
		"deadline exceeded",
		"i/o timeout",
		"operation timed out",
	}

	for _, pattern := range timeoutPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}

// ShouldRetry returns true if the error warrants a retry attempt.
func ShouldRetry(err error) bool {
	classified := Classify(err)
	return classified != nil && classified.IsTransient()
}

// RetryDelay returns the suggested delay before retry, or 0 if not retryable.
func RetryDelay(err error) time.Duration {
	classified := Classify(err)
	if classified != nil && classified.IsTransient() && classified.RetryAfter > 0 {
		return classified.RetryAfter
	}
	return 0
}

// ActionHint returns the suggested action for handling the error.
func ActionHint(err error) string {
	classified := Classify(err)
	if classified != nil && classified.IsConflict() && classified.ActionHint != "" {
		return classified.ActionHint
	}
	return ""
}
