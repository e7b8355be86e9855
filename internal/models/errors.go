package models

import (
	"errors"
	"fmt"
	"time"
)

// Custom errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateKey      = errors.New("duplicate key violation")
	ErrInvalidID         = errors.New("invalid ID format")
	ErrGameCompleted     = errors.New("completed game is immutable")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrCircuitOpen       = errors.New("circuit breaker open")
	ErrInsufficientData  = errors.New("sample below minimum size")
	ErrWriteConflict     = errors.New("catalog write conflict")
	ErrNoOddsAvailable   = errors.New("no odds source reporting")
	ErrPredicateRequired = errors.New("edge predicate is required")
	ErrClassifierFailed  = errors.New("classifier unavailable")
)

// SourceErrorKind classifies collector failures for retry decisions
type SourceErrorKind string

const (
	SourceErrorTransient SourceErrorKind = "transient"
	SourceErrorPermanent SourceErrorKind = "permanent"
)

// Source error codes
const (
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeConnection   = "CONNECTION_FAILED"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeServerError  = "SERVER_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeSchema       = "SCHEMA_MISMATCH"
	ErrCodeUnauthorized = "UNAUTHORIZED"
)

// SourceError wraps a failure from an external collector with enough
// context for the orchestrator to decide whether to retry.
type SourceError struct {
	CollectorKey string
	Code         string
	Kind         SourceErrorKind
	StatusCode   int
	Message      string
	Err          error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.CollectorKey, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.CollectorKey, e.Code, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a retryable source error (429, 5xx, timeouts).
func NewTransientError(collectorKey, code, message string, err error) *SourceError {
	return &SourceError{
		CollectorKey: collectorKey,
		Code:         code,
		Kind:         SourceErrorTransient,
		Message:      message,
		Err:          err,
	}
}

// NewPermanentError creates a non-retryable source error (4xx, schema mismatch).
func NewPermanentError(collectorKey, code, message string, err error) *SourceError {
	return &SourceError{
		CollectorKey: collectorKey,
		Code:         code,
		Kind:         SourceErrorPermanent,
		Message:      message,
		Err:          err,
	}
}

// IsTransient reports whether err is a retryable source failure.
func IsTransient(err error) bool {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind == SourceErrorTransient
	}
	return false
}

// IsPermanent reports whether err is a non-retryable source failure.
func IsPermanent(err error) bool {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind == SourceErrorPermanent
	}
	return false
}

// LookAheadViolation is raised when a feature input's timestamp is not
// strictly before the requested as-of instant. It is always fatal to the
// recommendation being built.
type LookAheadViolation struct {
	Field      string
	SourceTime time.Time
	AsOf       time.Time
}

func (e *LookAheadViolation) Error() string {
	return fmt.Sprintf("look-ahead violation on %q: source %s >= as-of %s",
		e.Field, e.SourceTime.UTC().Format(time.RFC3339), e.AsOf.UTC().Format(time.RFC3339))
}

// IsLookAheadViolation reports whether err carries a look-ahead violation.
func IsLookAheadViolation(err error) bool {
	var v *LookAheadViolation
	return errors.As(err, &v)
}
