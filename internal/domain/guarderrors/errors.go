// Package guarderrors defines the typed error taxonomy for the guardrail pipeline.
package guarderrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "VALIDATION"
	ErrorTypePolicyDenied     ErrorType = "POLICY_DENIED"
	ErrorTypeCircuitOpen      ErrorType = "CIRCUIT_OPEN"
	ErrorTypeRateLimited      ErrorType = "RATE_LIMITED"
	ErrorTypeKillSwitchActive ErrorType = "KILL_SWITCH_ACTIVE"
	ErrorTypeToolTransient    ErrorType = "TOOL_TRANSIENT"
	ErrorTypeToolPermanent    ErrorType = "TOOL_PERMANENT"
	ErrorTypeHashMismatch     ErrorType = "HASH_MISMATCH"
	ErrorTypeTemplateNotFound ErrorType = "TEMPLATE_NOT_FOUND"
	ErrorTypeNotFound         ErrorType = "NOT_FOUND"
	ErrorTypeConflict         ErrorType = "CONFLICT"
	ErrorTypeExpired          ErrorType = "EXPIRED"
	ErrorTypeInternal         ErrorType = "INTERNAL"
)

// Layer represents the application layer where the error occurred.
type Layer string

const (
	LayerPipeline       Layer = "pipeline"
	LayerDomain         Layer = "domain"
	LayerRepository     Layer = "repository"
	LayerHandler        Layer = "handler"
	LayerInfrastructure Layer = "infrastructure"
)

// GuardError carries the structured context the audit log needs to reconstruct
// a decision without replaying the request.
type GuardError struct {
	Code      string // stable identifier, e.g. "refine-model-call-001"
	Type      ErrorType
	Message   string
	Err       error
	RequestID string
	Layer     Layer
	Timestamp time.Time
	Context   map[string]any
}

// Error implements the error interface.
func (e *GuardError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s][%s][%s] %s: %v", e.Layer, e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s][%s][%s] %s", e.Layer, e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *GuardError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the error type.
func (e *GuardError) GetErrorType() ErrorType {
	return e.Type
}

// WithContext attaches additional structured fields.
func (e *GuardError) WithContext(fields map[string]any) *GuardError {
	if e.Context == nil {
		e.Context = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		e.Context[k] = v
	}
	return e
}

type requestIDKey struct{}

// WithRequestID stores the request identifier for error correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext extracts the request identifier, if present.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// New creates a GuardError with the given classification and stable code.
func New(ctx context.Context, layer Layer, errorType ErrorType, message string, err error, code string) *GuardError {
	return &GuardError{
		Code:      code,
		Type:      errorType,
		Message:   message,
		Err:       err,
		RequestID: RequestIDFromContext(ctx),
		Layer:     layer,
		Timestamp: time.Now().UTC(),
	}
}

// AsError wraps an arbitrary error, preserving the type of an existing GuardError.
func AsError(ctx context.Context, layer Layer, err error, message string) *GuardError {
	if err == nil {
		return nil
	}
	var ge *GuardError
	if errors.As(err, &ge) {
		return New(ctx, layer, ge.Type, fmt.Sprintf("%s: %s", message, ge.Message), ge, ge.Code)
	}
	return New(ctx, layer, ErrorTypeInternal, message, err, "")
}

// IsType checks whether err is a GuardError with the given type.
func IsType(err error, errorType ErrorType) bool {
	var ge *GuardError
	if errors.As(err, &ge) {
		return ge.Type == errorType
	}
	return false
}

// IsTransient reports whether a failed backend call may be retried. Circuit
// open errors are never transient: retrying them would defeat the breaker.
func IsTransient(err error) bool {
	var ge *GuardError
	if errors.As(err, &ge) {
		return ge.Type == ErrorTypeToolTransient
	}
	return false
}

// ErrorTypeToHTTPStatus maps error types to HTTP status codes. Kill switch and
// rate limiting get distinct statuses so clients can differentiate "disabled"
// from "try later".
func ErrorTypeToHTTPStatus(errorType ErrorType) int {
	switch errorType {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypePolicyDenied:
		return http.StatusForbidden
	case ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case ErrorTypeCircuitOpen:
		return http.StatusServiceUnavailable
	case ErrorTypeKillSwitchActive:
		return http.StatusLocked
	case ErrorTypeNotFound, ErrorTypeTemplateNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict, ErrorTypeExpired:
		return http.StatusConflict
	case ErrorTypeToolTransient:
		return http.StatusBadGateway
	case ErrorTypeToolPermanent:
		return http.StatusUnprocessableEntity
	case ErrorTypeHashMismatch:
		return http.StatusInternalServerError
	case ErrorTypeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// LogError logs a guard error with its structured context.
func LogError(logger zerolog.Logger, err *GuardError) {
	if err == nil {
		return
	}
	event := logger.Error().
		Str("error_code", err.Code).
		Str("error_type", string(err.Type)).
		Str("layer", string(err.Layer)).
		Time("timestamp_utc", err.Timestamp)
	if err.RequestID != "" {
		event = event.Str("request_id", err.RequestID)
	}
	for k, v := range err.Context {
		event = event.Interface(k, v)
	}
	if err.Err != nil {
		event = event.Err(err.Err)
	}
	event.Msg(err.Message)
}
