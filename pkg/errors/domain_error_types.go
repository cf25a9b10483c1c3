package errors

import (
	"fmt"
)

// DomainErrorType represents the category of domain error
type DomainErrorType string

const (
	// DomainValidationError indicates input validation failure
	DomainValidationError DomainErrorType = "VALIDATION_ERROR"

	// DomainBusinessRuleError indicates a business rule violation
	DomainBusinessRuleError DomainErrorType = "BUSINESS_RULE_ERROR"

	// DomainNotFoundError indicates a resource was not found
	DomainNotFoundError DomainErrorType = "NOT_FOUND"

	// DomainConflictError indicates a conflict with existing state
	DomainConflictError DomainErrorType = "CONFLICT"

	// DomainInvariantError indicates stored state violates an invariant
	// the write path is supposed to make impossible
	DomainInvariantError DomainErrorType = "INVARIANT_VIOLATION"

	// DomainInfrastructureError indicates an infrastructure-level failure
	DomainInfrastructureError DomainErrorType = "INFRASTRUCTURE_ERROR"
)

// DomainError represents a domain-specific error with rich context
type DomainError struct {
	Type       DomainErrorType        `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

// NewDomainError creates a new domain error
func NewDomainError(errorType DomainErrorType, code string, message string) *DomainError {
	return &DomainError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: domainErrorTypeToStatusCode(errorType),
	}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// clone returns a copy so the predefined errors stay immutable.
func (e *DomainError) clone() *DomainError {
	out := *e
	if e.Details != nil {
		out.Details = make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			out.Details[k] = v
		}
	}
	return &out
}

// WithCause returns a copy of the error with a cause attached
func (e *DomainError) WithCause(cause error) *DomainError {
	out := e.clone()
	out.Cause = cause
	return out
}

// WithDetail returns a copy of the error with a detail attached
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	out := e.clone()
	if out.Details == nil {
		out.Details = make(map[string]interface{})
	}
	out.Details[key] = value
	return out
}

// WithRetryable returns a copy with the retryable flag set
func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	out := e.clone()
	out.Retryable = retryable
	return out
}

// Is checks if the error is of a specific type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// domainErrorTypeToStatusCode maps error types to HTTP status codes
func domainErrorTypeToStatusCode(errorType DomainErrorType) int {
	switch errorType {
	case DomainValidationError:
		return 400
	case DomainNotFoundError:
		return 404
	case DomainConflictError:
		return 409
	case DomainBusinessRuleError:
		return 422
	case DomainInvariantError, DomainInfrastructureError:
		return 500
	default:
		return 500
	}
}

// Predefined domain errors for the dependency graph.
//
// The admissibility rejections map onto the conditions a client can
// cause and must resolve; ErrGraphCorrupted is the one fatal kind and
// signals that acyclicity was violated outside the guarded write path.

var (
	ErrSelfDependency = NewDomainError(
		DomainValidationError,
		"SELF_DEPENDENCY",
		"A task cannot depend on itself",
	)

	ErrDuplicateEdge = NewDomainError(
		DomainConflictError,
		"DUPLICATE_EDGE",
		"This dependency already exists",
	)

	ErrCrossProjectEdge = NewDomainError(
		DomainValidationError,
		"CROSS_PROJECT_EDGE",
		"Both tasks must belong to the same project",
	)

	ErrCycleDetected = NewDomainError(
		DomainConflictError,
		"CYCLE_DETECTED",
		"Creating this dependency would form a cycle",
	).WithStatus(409)

	ErrEdgeNotFound = NewDomainError(
		DomainNotFoundError,
		"EDGE_NOT_FOUND",
		"The requested dependency edge does not exist",
	)

	ErrTaskNotFound = NewDomainError(
		DomainNotFoundError,
		"TASK_NOT_FOUND",
		"The requested task does not exist",
	)

	ErrGraphCorrupted = NewDomainError(
		DomainInvariantError,
		"GRAPH_CORRUPTED",
		"The dependency graph contains a cycle and cannot be ordered",
	)

	ErrEdgeLimitExceeded = NewDomainError(
		DomainBusinessRuleError,
		"EDGE_LIMIT_EXCEEDED",
		"Maximum number of dependency edges exceeded",
	)

	ErrProjectLockHeld = NewDomainError(
		DomainConflictError,
		"PROJECT_LOCK_HELD",
		"Another mutation for this project is in progress",
	).WithRetryable(true)
)

// WithStatus returns a copy with an explicit HTTP status code
func (e *DomainError) WithStatus(code int) *DomainError {
	out := e.clone()
	out.StatusCode = code
	return out
}

// DomainErrorResponse represents the API error response format for domain errors
type DomainErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      DomainErrorType        `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	RequestID string                 `json:"request_id,omitempty"`
}

// NewDomainErrorResponse creates an error response from a domain error
func NewDomainErrorResponse(err *DomainError, requestID string) *DomainErrorResponse {
	return &DomainErrorResponse{
		Error:     true,
		Type:      err.Type,
		Code:      err.Code,
		Message:   err.Message,
		Details:   err.Details,
		Retryable: err.Retryable,
		RequestID: requestID,
	}
}
