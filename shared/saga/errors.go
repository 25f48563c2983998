package saga

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies why a step or its compensation failed.
type ErrorKind string

const (
	// KindDomain marks a failed business precondition (e.g. product missing).
	KindDomain ErrorKind = "domain"
	// KindOperation marks an underlying I/O or dependent-call failure.
	KindOperation ErrorKind = "operation"
	// KindCompensation marks a failure inside a compensation itself.
	KindCompensation ErrorKind = "compensation"
)

// DomainError signals that a step's business precondition was not met.
type DomainError struct {
	msg string
}

func (e *DomainError) Error() string {
	return e.msg
}

// NewDomainError creates a DomainError with a formatted message
func NewDomainError(format string, args ...interface{}) error {
	return &DomainError{msg: fmt.Sprintf(format, args...)}
}

// IsDomainError reports whether err is (or wraps) a DomainError
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// OperationError signals that an underlying operation inside a step failed.
type OperationError struct {
	msg   string
	cause error
}

func (e *OperationError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *OperationError) Unwrap() error {
	return e.cause
}

// NewOperationError wraps an underlying failure as an OperationError
func NewOperationError(cause error, msg string) error {
	return &OperationError{msg: msg, cause: cause}
}

// CompensationError signals that a compensation failed while rolling back.
type CompensationError struct {
	Step  string
	cause error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation for step %q failed: %v", e.Step, e.cause)
}

func (e *CompensationError) Unwrap() error {
	return e.cause
}

// ExecutionError is returned by Run when a saga does not complete.
// Status distinguishes a fully rolled-back failure (StatusCompensated)
// from one where rollback itself partially failed (StatusFailed).
type ExecutionError struct {
	SagaName   string
	FailedStep string
	Status     Status
	cause      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("saga %q %s after step %q failed: %v", e.SagaName, e.Status, e.FailedStep, e.cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.cause
}

func classifyError(err error) ErrorKind {
	if IsDomainError(err) {
		return KindDomain
	}
	return KindOperation
}
