// Package dberrors defines the engine-agnostic error taxonomy of the
// gateway and the per-engine classifiers that map vendor errors into it.
// No raw driver error and no credential-bearing string crosses the
// connector boundary without going through this package first.
package dberrors

import (
	"fmt"
	"net/http"
)

// Category is the fixed classification of an underlying vendor failure.
type Category string

const (
	ConnectionRefused    Category = "CONNECTION_REFUSED"
	AuthenticationFailed Category = "AUTHENTICATION_FAILED"
	DatabaseNotFound     Category = "DATABASE_NOT_FOUND"
	InvalidHost          Category = "INVALID_HOST"
	InvalidPort          Category = "INVALID_PORT"
	MaxConnections       Category = "MAX_CONNECTIONS"
	Timeout              Category = "TIMEOUT"
	PermissionDenied     Category = "PERMISSION_DENIED"
	Unknown              Category = "UNKNOWN"
)

// Record is the structured error shape produced by classification.
// It is the only error information allowed to leave a connector.
type Record struct {
	Category  Category `json:"category"`
	Message   string   `json:"message"`
	ErrorCode string   `json:"error_code"`
	Details   string   `json:"details,omitempty"`
}

// Kind tags a gateway failure for exhaustive matching by callers.
type Kind int

const (
	// KindConfiguration covers bad definition input, unsupported engines
	// and name conflicts, detected before any network I/O.
	KindConfiguration Kind = iota
	// KindConnection covers classified connectivity failures.
	KindConnection
	// KindSecurity covers queries rejected by sqlguard. Always fatal,
	// never retried.
	KindSecurity
	// KindQuery covers execution failures other than security policy.
	KindQuery
	// KindSchema covers catalog introspection failures.
	KindSchema
	// KindNotFound covers lookups of definitions that do not exist.
	KindNotFound
	// KindInactive covers operations against definitions whose last
	// connectivity test failed.
	KindInactive
)

var kindNames = map[Kind]string{
	KindConfiguration: "configuration_error",
	KindConnection:    "connection_error",
	KindSecurity:      "security_error",
	KindQuery:         "query_error",
	KindSchema:        "schema_extraction_error",
	KindNotFound:      "not_found",
	KindInactive:      "database_inactive",
}

// GatewayError is the tagged error surfaced by all gateway operations.
// Callers match on Kind (and Category for connection failures) instead
// of on concrete error types.
type GatewayError struct {
	Kind     Kind
	Category Category
	Message  string
	// Pattern names the validation rule or vendor code that triggered the
	// failure. Logged for diagnostics, never echoed verbatim to callers.
	Pattern string
	Err     error
}

func (e *GatewayError) Error() string {
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// KindName returns the stable string tag for the error kind.
func (e *GatewayError) KindName() string {
	if name, ok := kindNames[e.Kind]; ok {
		return name
	}
	return "unknown_error"
}

// HTTPStatus maps the error kind to the response status the controllers
// should use.
func (e *GatewayError) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindSecurity:
		return http.StatusForbidden
	case KindConfiguration, KindInactive:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// Configuration builds a configuration-stage error.
func Configuration(format string, args ...any) *GatewayError {
	return &GatewayError{Kind: KindConfiguration, Category: Unknown, Message: fmt.Sprintf(format, args...)}
}

// Security builds a validation rejection carrying the triggering rule.
func Security(message, pattern string) *GatewayError {
	return &GatewayError{Kind: KindSecurity, Category: PermissionDenied, Message: message, Pattern: pattern}
}

// Connection wraps a classified connectivity failure.
func Connection(rec Record, err error) *GatewayError {
	return &GatewayError{Kind: KindConnection, Category: rec.Category, Message: rec.Message, Pattern: rec.ErrorCode, Err: err}
}

// Query wraps an execution failure that is not security policy.
func Query(message string, err error) *GatewayError {
	return &GatewayError{Kind: KindQuery, Category: Unknown, Message: message, Err: err}
}

// Schema wraps a catalog introspection failure.
func Schema(message string, err error) *GatewayError {
	return &GatewayError{Kind: KindSchema, Category: Unknown, Message: message, Err: err}
}

// NotFound builds a missing-definition error.
func NotFound(format string, args ...any) *GatewayError {
	return &GatewayError{Kind: KindNotFound, Category: Unknown, Message: fmt.Sprintf(format, args...)}
}

// Inactive builds the rejection for operations on inactive definitions.
func Inactive(name string) *GatewayError {
	return &GatewayError{
		Kind:     KindInactive,
		Category: Unknown,
		Message:  fmt.Sprintf("database '%s' is inactive; update its configuration and re-test the connection", name),
	}
}
