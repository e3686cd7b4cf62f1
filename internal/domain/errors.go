package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig signals a bad schema or configuration; fatal at start-up.
	ErrConfig = errors.New("config error")
	// ErrMapping signals a field that could not be coerced into its declared kind.
	ErrMapping = errors.New("mapping error")
	// ErrBackendUnavailable signals a transient connectivity or timeout failure.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrQuery signals a query the active backend cannot express.
	ErrQuery = errors.New("query error")
	// ErrRebuildInProgress signals a rejected concurrent rebuild of the same object type.
	ErrRebuildInProgress = errors.New("rebuild in progress")
	// ErrNotFound signals a missing object.
	ErrNotFound = errors.New("not found")
)

// ConfigError describes an invalid schema registration or configuration value.
type ConfigError struct {
	Subject string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfig.Error(), e.Subject, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// NewConfigError creates a ConfigError.
func NewConfigError(subject, format string, args ...any) error {
	return &ConfigError{Subject: subject, Reason: fmt.Sprintf(format, args...)}
}

// MappingError is a field-level coercion failure. The field is dropped from the document.
type MappingError struct {
	ObjectType string
	Field      string
	Err        error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: %s.%s: %v", ErrMapping.Error(), e.ObjectType, e.Field, e.Err)
}

func (e *MappingError) Unwrap() []error { return []error{ErrMapping, e.Err} }

// QueryError names the query node a backend rejected.
type QueryError struct {
	Node   string
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrQuery.Error(), e.Node, e.Reason)
}

func (e *QueryError) Unwrap() error { return ErrQuery }

// NewQueryError creates a QueryError for the given node name.
func NewQueryError(node, format string, args ...any) error {
	return &QueryError{Node: node, Reason: fmt.Sprintf(format, args...)}
}

// BackendError wraps a transport or engine failure with the backend and operation names.
// It always reports ErrBackendUnavailable.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() []error { return []error{ErrBackendUnavailable, e.Err} }

// Unavailable wraps err as a BackendError.
func Unavailable(backend, op string, err error) error {
	return &BackendError{Backend: backend, Op: op, Err: err}
}
