package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrToolNotFound    = fmt.Errorf("tool not found")
	ErrInvalidParams   = fmt.Errorf("invalid tool parameters")
	ErrToolFailure     = fmt.Errorf("tool execution failed")
	ErrActorNotFound   = fmt.Errorf("actor not initialized")
	ErrIndexOutOfRange = fmt.Errorf("entry index out of range")
	ErrMaxIterations   = fmt.Errorf("agent reached max iterations")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrSnapshotStore   = fmt.Errorf("snapshot store failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Council.AddDeliberation")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeToolNotFound  ErrorCode = "TOOL_NOT_FOUND"
	CodeInvalidParams ErrorCode = "INVALID_PARAMS"
	CodeToolFailure   ErrorCode = "TOOL_FAILURE"
	CodeActorNotFound ErrorCode = "ACTOR_NOT_FOUND"
	CodeIndexRange    ErrorCode = "INDEX_OUT_OF_RANGE"
	CodeMaxIterations ErrorCode = "MAX_ITERATIONS"
	CodeRateLimit     ErrorCode = "RATE_LIMIT"
	CodeSnapshotStore ErrorCode = "SNAPSHOT_STORE"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrToolNotFound:    CodeToolNotFound,
	ErrInvalidParams:   CodeInvalidParams,
	ErrToolFailure:     CodeToolFailure,
	ErrActorNotFound:   CodeActorNotFound,
	ErrIndexOutOfRange: CodeIndexRange,
	ErrMaxIterations:   CodeMaxIterations,
	ErrRateLimit:       CodeRateLimit,
	ErrSnapshotStore:   CodeSnapshotStore,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}
