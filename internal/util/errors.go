package util

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common sentinel errors.
var (
	ErrUnknownService      = errors.New("unknown service")
	ErrRouteNotFound       = errors.New("route not found")
	ErrMissingCredential   = errors.New("missing credential")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrAuthUnavailable     = errors.New("authentication unavailable")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrCircuitOpen         = errors.New("circuit breaker open")
	ErrConfigInvalid       = errors.New("invalid configuration")
)

// StatusCoder is implemented by errors that carry their own HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// ServiceError is returned when a logical service name is not registered.
type ServiceError struct {
	Name string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("unknown service %q", e.Name)
}

// Is checks if the error matches the target.
func (e *ServiceError) Is(target error) bool {
	if target == ErrUnknownService {
		return true
	}
	_, ok := target.(*ServiceError)
	return ok
}

// NewServiceError creates a new ServiceError.
func NewServiceError(name string) *ServiceError {
	return &ServiceError{Name: name}
}

// RouteNotFoundError is returned when no rule matches a request.
type RouteNotFoundError struct {
	Method string
	Path   string
}

// Error implements the error interface.
func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route for %s %s", e.Method, e.Path)
}

// Is checks if the error matches the target.
func (e *RouteNotFoundError) Is(target error) bool {
	if target == ErrRouteNotFound {
		return true
	}
	_, ok := target.(*RouteNotFoundError)
	return ok
}

// StatusCode implements StatusCoder.
func (e *RouteNotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// NewRouteNotFoundError creates a new RouteNotFoundError.
func NewRouteNotFoundError(method, path string) *RouteNotFoundError {
	return &RouteNotFoundError{Method: method, Path: path}
}

// AuthError describes a failed admin verification. Kind is one of
// ErrMissingCredential, ErrInvalidCredential or ErrAuthUnavailable.
type AuthError struct {
	Kind   error
	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("auth: %v: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("auth: %v", e.Kind)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *AuthError) Is(target error) bool {
	if e.Kind != nil && target == e.Kind {
		return true
	}
	_, ok := target.(*AuthError)
	return ok || errors.Is(e.Cause, target)
}

// StatusCode implements StatusCoder.
func (e *AuthError) StatusCode() int {
	if e.Kind == ErrMissingCredential {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

// NewAuthError creates a new AuthError.
func NewAuthError(kind error, detail string, cause error) *AuthError {
	return &AuthError{Kind: kind, Detail: detail, Cause: cause}
}

// UpstreamError is returned when a request cannot be delivered to the
// target service.
type UpstreamError struct {
	Service string
	Target  string
	Cause   error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream %s (%s) unavailable: %v", e.Service, e.Target, e.Cause)
	}
	return fmt.Sprintf("upstream %s (%s) unavailable", e.Service, e.Target)
}

// Unwrap returns the underlying error.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *UpstreamError) Is(target error) bool {
	if target == ErrUpstreamUnavailable {
		return true
	}
	_, ok := target.(*UpstreamError)
	return ok || errors.Is(e.Cause, target)
}

// StatusCode implements StatusCoder.
func (e *UpstreamError) StatusCode() int {
	return http.StatusServiceUnavailable
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(service, target string, cause error) *UpstreamError {
	return &UpstreamError{Service: service, Target: target, Cause: cause}
}

// RateLimitError represents a rate limit exceeded error.
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %d, retry after: %v)", e.Limit, e.RetryAfter)
}

// Is checks if the error matches the target.
func (e *RateLimitError) Is(target error) bool {
	if target == ErrRateLimited {
		return true
	}
	_, ok := target.(*RateLimitError)
	return ok
}

// StatusCode implements StatusCoder.
func (e *RateLimitError) StatusCode() int {
	return http.StatusTooManyRequests
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(limit int, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Limit: limit, RetryAfter: retryAfter}
}

// CircuitOpenError represents a circuit breaker open error.
type CircuitOpenError struct {
	Name  string
	State string
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %s is %s", e.Name, e.State)
}

// Is checks if the error matches the target.
func (e *CircuitOpenError) Is(target error) bool {
	if target == ErrCircuitOpen {
		return true
	}
	_, ok := target.(*CircuitOpenError)
	return ok
}

// NewCircuitOpenError creates a new CircuitOpenError.
func NewCircuitOpenError(name, state string) *CircuitOpenError {
	return &CircuitOpenError{Name: name, State: state}
}

// StatusError attaches an HTTP status to an arbitrary failure.
type StatusError struct {
	Status int
	Cause  error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Cause == nil {
		return http.StatusText(e.Status)
	}
	return e.Cause.Error()
}

// Unwrap returns the underlying error.
func (e *StatusError) Unwrap() error {
	return e.Cause
}

// StatusCode implements StatusCoder.
func (e *StatusError) StatusCode() int {
	return e.Status
}

// NewStatusError creates a new StatusError.
func NewStatusError(status int, cause error) *StatusError {
	return &StatusError{Status: status, Cause: cause}
}

// StatusFromError returns the status carried by err, or fallback when
// none of the wrapped errors implements StatusCoder.
func StatusFromError(err error, fallback int) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	return fallback
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
