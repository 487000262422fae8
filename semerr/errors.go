// Package semerr defines the tagged error taxonomy surfaced by the
// compiler facade: ValidationError, SecurityContextError,
// JoinResolutionError, UnsupportedFeatureError and DatabaseExecutionError.
// Each type carries a stable Code and StatusCode so an HTTP/RPC adapter
// layer (outside this module's scope) can translate it directly into the
// wire shape {error, code, statusCode}.
package semerr

import (
	"errors"
	"fmt"
)

// WireError is the {error, code, statusCode} shape described by the
// external interface contract. It never carries parameter values.
type WireError struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
}

// ValidationError reports one or more semantically invalid fields of a
// SemanticQuery. It never short-circuits: Fields collects every offense.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

func (e *ValidationError) Code() string    { return "VALIDATION_ERROR" }
func (e *ValidationError) StatusCode() int { return 400 }

func (e *ValidationError) Wire() WireError {
	return WireError{Error: e.Error(), Code: e.Code(), StatusCode: e.StatusCode()}
}

func NewValidationError(fields []string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// SecurityContextError reports an empty/invalid security context, or a
// cube's BaseQueryFn panicking/erroring while reading it.
type SecurityContextError struct {
	Cube string
	Err  error
}

func (e *SecurityContextError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("security context error for cube %q: %v", e.Cube, e.Err)
	}
	return fmt.Sprintf("security context error for cube %q", e.Cube)
}

func (e *SecurityContextError) Unwrap() error { return e.Err }
func (e *SecurityContextError) Code() string  { return "SECURITY_CONTEXT_ERROR" }
func (e *SecurityContextError) StatusCode() int {
	return 403
}

func (e *SecurityContextError) Wire() WireError {
	return WireError{Error: e.Error(), Code: e.Code(), StatusCode: e.StatusCode()}
}

func NewSecurityContextError(cube string, err error) *SecurityContextError {
	return &SecurityContextError{Cube: cube, Err: err}
}

// JoinResolutionError reports that the planner could not reach a
// required cube from the primary cube via any declared join.
type JoinResolutionError struct {
	Primary      string
	Unreachable  string
}

func (e *JoinResolutionError) Error() string {
	return fmt.Sprintf("no join path from %q to %q", e.Primary, e.Unreachable)
}

func (e *JoinResolutionError) Code() string    { return "JOIN_RESOLUTION_ERROR" }
func (e *JoinResolutionError) StatusCode() int { return 400 }

func (e *JoinResolutionError) Wire() WireError {
	return WireError{Error: e.Error(), Code: e.Code(), StatusCode: e.StatusCode()}
}

func NewJoinResolutionError(primary, unreachable string) *JoinResolutionError {
	return &JoinResolutionError{Primary: primary, Unreachable: unreachable}
}

// UnsupportedFeatureError reports a feature requested by the query that
// the target dialect cannot render, e.g. a window measure against a
// dialect without window-function support.
type UnsupportedFeatureError struct {
	Dialect string
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("dialect %q does not support %s", e.Dialect, e.Feature)
}

func (e *UnsupportedFeatureError) Code() string    { return "UNSUPPORTED_FEATURE_ERROR" }
func (e *UnsupportedFeatureError) StatusCode() int { return 400 }

func (e *UnsupportedFeatureError) Wire() WireError {
	return WireError{Error: e.Error(), Code: e.Code(), StatusCode: e.StatusCode()}
}

func NewUnsupportedFeatureError(dialect, feature string) *UnsupportedFeatureError {
	return &UnsupportedFeatureError{Dialect: dialect, Feature: feature}
}

// DatabaseExecutionError wraps a driver error. It deliberately carries
// only the templated SQL text, never bound parameter values, so that
// surfaced errors cannot leak PII (spec §7 safety invariant).
type DatabaseExecutionError struct {
	SQL string
	Err error
}

func (e *DatabaseExecutionError) Error() string {
	return fmt.Sprintf("database execution failed: %v\nsql: %s", e.Err, e.SQL)
}

func (e *DatabaseExecutionError) Unwrap() error { return e.Err }
func (e *DatabaseExecutionError) Code() string  { return "DATABASE_EXECUTION_ERROR" }
func (e *DatabaseExecutionError) StatusCode() int {
	return 500
}

func (e *DatabaseExecutionError) Wire() WireError {
	return WireError{Error: e.Error(), Code: e.Code(), StatusCode: e.StatusCode()}
}

func NewDatabaseExecutionError(sqlText string, err error) *DatabaseExecutionError {
	return &DatabaseExecutionError{SQL: sqlText, Err: err}
}

// Coded is implemented by every error in this taxonomy.
type Coded interface {
	error
	Code() string
	StatusCode() int
	Wire() WireError
}

// As is a thin convenience wrapper around errors.As for extracting a
// Coded error out of an error chain.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
