package ai

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Package ai provides common types and utilities shared by the call components.
// It defines the error taxonomy, retry configuration and helpers used across
// the meter, recognizer, synthesizer and chat relay packages.

// Common error types used across components
var (
	// ErrRecoverable indicates a temporary failure that may succeed if retried.
	// Examples: network timeout, rate limiting, a dropped chat stream.
	ErrRecoverable = errors.New("recoverable error")

	// ErrFatal indicates a permanent failure that will not succeed if retried.
	// Examples: microphone permission denied, missing speech capability.
	ErrFatal = errors.New("fatal error")

	// ErrPermissionDenied is returned when the user rejects microphone access.
	ErrPermissionDenied = NewFatalError(errors.New("permission denied"), "microphone access denied")

	// ErrCapabilityUnsupported is returned when the platform has no usable
	// speech recognition or synthesis capability.
	ErrCapabilityUnsupported = NewFatalError(errors.New("capability unsupported"), "speech capability not supported")
)

// RetryConfig configures retry behavior for recoverable errors
type RetryConfig struct {
	MaxRetries    int           // Maximum number of retry attempts
	InitialDelay  time.Duration // Initial delay before first retry
	MaxDelay      time.Duration // Maximum delay between retries
	BackoffFactor float64       // Exponential backoff multiplier
	JitterPercent float32       // Random jitter percentage (0.0-1.0)
}

// DefaultRetryConfig provides sensible defaults for chat transport retries
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    2,
	InitialDelay:  200 * time.Millisecond,
	MaxDelay:      2 * time.Second,
	BackoffFactor: 2.0,
	JitterPercent: 0.1,
}

// Delay returns the backoff delay before the given retry attempt (1-based).
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt <= 0 || c.InitialDelay <= 0 {
		return 0
	}
	factor := c.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	d := float64(c.InitialDelay) * math.Pow(factor, float64(attempt-1))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.JitterPercent > 0 {
		d += d * float64(c.JitterPercent) * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

// IsRecoverable checks if an error is recoverable and should be retried
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal checks if an error is fatal and should not be retried
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// RetryableError wraps an underlying error with retry classification
type RetryableError struct {
	Underlying error
	Retryable  bool
	Message    string
}

func (e *RetryableError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Underlying.Error()
}

// Is matches the classification sentinel as well as the underlying error.
func (e *RetryableError) Is(target error) bool {
	if e.Retryable && target == ErrRecoverable {
		return true
	}
	if !e.Retryable && target == ErrFatal {
		return true
	}
	return false
}

func (e *RetryableError) Unwrap() error {
	return e.Underlying
}

// NewRecoverableError creates a recoverable error with context
func NewRecoverableError(underlying error, message string) error {
	return &RetryableError{
		Underlying: underlying,
		Retryable:  true,
		Message:    message,
	}
}

// NewFatalError creates a fatal error with context
func NewFatalError(underlying error, message string) error {
	return &RetryableError{
		Underlying: underlying,
		Retryable:  false,
		Message:    message,
	}
}

// RecognitionError is a non-transient speech engine error. It is reported to
// the caller once; the recognizer still schedules a restart.
type RecognitionError struct {
	Code string
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("speech error: %s", e.Code)
}

// NetworkError is a transport failure while talking to the chat backend.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrRecoverable }

// RateLimitedError is returned when the chat backend throttles the caller.
type RateLimitedError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited - wait %ds", e.Seconds())
}

// Seconds returns the wait rounded up to whole seconds, at least one.
func (e *RateLimitedError) Seconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRecoverable }

// APIError is a non-throttling error status from the chat backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat backend returned status %d", e.Status)
	}
	return fmt.Sprintf("chat backend returned status %d: %s", e.Status, e.Message)
}

// IsRateLimited reports whether err carries a rate limit and returns it.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
