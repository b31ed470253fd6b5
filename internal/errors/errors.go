// Package errors provides the structured error kinds used across warble.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout          = errors.New("operation timed out")
	ErrNotFound         = errors.New("not found")
	ErrUnsupportedEvent = errors.New("no outbound handler for event type")
	ErrRateLimit        = errors.New("rate limit exceeded")
	ErrUnavailable      = errors.New("service unavailable")
	ErrFrozen           = errors.New("table is frozen")
)

// ConfigError is a malformed or missing configuration value. Fatal at startup.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config: %s: %s", e.Key, e.Message)
	}
	return "config: " + e.Message
}

// NewConfigError creates a ConfigError for the given key.
func NewConfigError(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Message: fmt.Sprintf(format, args...)}
}

// RegistryError is a duplicate or unknown event variant. Fatal at startup.
type RegistryError struct {
	Variant string
	Message string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("event registry: %s: %s", e.Variant, e.Message)
}

// TransportError is a network or HTTP failure talking to a connector or an
// NLU vendor. Recovered locally by the calling component.
type TransportError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transport error (status %d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a TransportError for the named service.
func NewTransportError(service string, statusCode int, err error) *TransportError {
	return &TransportError{Service: service, StatusCode: statusCode, Err: err}
}

// AuthError means credentials were rejected. The affected connector or
// parser is disabled for the rest of the run.
type AuthError struct {
	Service string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Service, e.Message)
}

// SkillError wraps an error (or recovered panic) that escaped a skill
// handler. Caught by the runner; never propagates past it.
type SkillError struct {
	Skill string
	Err   error
}

func (e *SkillError) Error() string {
	return fmt.Sprintf("skill %q: %v", e.Skill, e.Err)
}

func (e *SkillError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var terr *TransportError
	if errors.As(err, &terr) {
		switch terr.StatusCode {
		case 0, 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}

// IsFatal returns true for errors that must abort startup.
func IsFatal(err error) bool {
	var cerr *ConfigError
	var rerr *RegistryError
	return errors.As(err, &cerr) || errors.As(err, &rerr)
}

// IsAuth returns true if err is an AuthError anywhere in its chain.
func IsAuth(err error) bool {
	var aerr *AuthError
	return errors.As(err, &aerr)
}
