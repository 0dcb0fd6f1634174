package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeUnsupportedCredential indicates a credential source with no backing implementation
	ErrCodeUnsupportedCredential ErrorCode = "UNSUPPORTED_CREDENTIAL"

	// ErrCodeInvalidKeystore indicates a keystore document that cannot be unlocked or decoded
	ErrCodeInvalidKeystore ErrorCode = "INVALID_KEYSTORE"

	// ErrCodeCallDecode indicates call data that does not match the runtime metadata
	ErrCodeCallDecode ErrorCode = "CALL_DECODE"

	// ErrCodeSubmissionRejected indicates the node or transport rejected the extrinsic
	ErrCodeSubmissionRejected ErrorCode = "SUBMISSION_REJECTED"

	// ErrCodeDispatchFailed indicates a finalized extrinsic whose dispatch failed on chain
	ErrCodeDispatchFailed ErrorCode = "DISPATCH_FAILED"

	// ErrCodeValidation indicates input validation errors
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNetwork indicates network-related errors
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeRPC indicates RPC-related errors
	ErrCodeRPC ErrorCode = "RPC"

	// ErrCodeConfig indicates configuration errors
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeTimeout indicates timeout errors
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// ChainError is the error type shared by every component. Chain carries the
// runtime spec name once a connection is open, and is empty before that.
type ChainError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Chain    string                 `json:"chain,omitempty"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// NewChainError creates a new ChainError
func NewChainError(code ErrorCode, chain, message string, cause error) *ChainError {
	return &ChainError{
		Code:     code,
		Message:  message,
		Chain:    chain,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *ChainError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Chain != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Chain, e.Code, e.Severity, msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, msg)
}

// Unwrap returns the underlying cause
func (e *ChainError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *ChainError) WithContext(key string, value interface{}) *ChainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable reports whether the operation that produced the error may be
// attempted again. Only connection establishment is ever retried.
func (e *ChainError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityCritical
	case ErrCodeInvalidKeystore, ErrCodeSubmissionRejected, ErrCodeDispatchFailed:
		return SeverityHigh
	case ErrCodeCallDecode, ErrCodeNetwork, ErrCodeRPC, ErrCodeTimeout:
		return SeverityMedium
	case ErrCodeUnsupportedCredential, ErrCodeValidation, ErrCodeConfig:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// ErrorGroup collects errors from the cleanup paths of one invocation.
type ErrorGroup struct {
	Errors []error
}

// NewErrorGroup creates a new error group
func NewErrorGroup() *ErrorGroup {
	return &ErrorGroup{
		Errors: make([]error, 0),
	}
}

// Add adds an error to the group
func (eg *ErrorGroup) Add(err error) {
	if err != nil {
		eg.Errors = append(eg.Errors, err)
	}
}

// Err returns nil for an empty group, the single error for a group of one,
// and the group itself otherwise.
func (eg *ErrorGroup) Err() error {
	switch len(eg.Errors) {
	case 0:
		return nil
	case 1:
		return eg.Errors[0]
	default:
		return eg
	}
}

// Error implements the error interface
func (eg *ErrorGroup) Error() string {
	if len(eg.Errors) == 0 {
		return ""
	}
	if len(eg.Errors) == 1 {
		return eg.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred: %v", len(eg.Errors), eg.Errors[0])
}

// Unwrap exposes the grouped errors to errors.Is and errors.As.
func (eg *ErrorGroup) Unwrap() []error {
	return eg.Errors
}

// NewUnsupportedCredentialError creates an error for credential sources that
// are recognised but not implemented.
func NewUnsupportedCredentialError(message string) *ChainError {
	return NewChainError(ErrCodeUnsupportedCredential, "", message, nil)
}

// NewInvalidKeystoreError creates a keystore decoding error
func NewInvalidKeystoreError(message string, cause error) *ChainError {
	return NewChainError(ErrCodeInvalidKeystore, "", message, cause)
}

// NewCallDecodeError creates a call decoding error
func NewCallDecodeError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeCallDecode, chain, message, cause)
}

// NewSubmissionRejectedError creates a submission rejection error
func NewSubmissionRejectedError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeSubmissionRejected, chain, message, cause)
}

// NewDispatchFailedError creates a dispatch failure error
func NewDispatchFailedError(chain, message string) *ChainError {
	return NewChainError(ErrCodeDispatchFailed, chain, message, nil)
}

// NewValidationError creates a validation error
func NewValidationError(chain, message string) *ChainError {
	return NewChainError(ErrCodeValidation, chain, message, nil)
}

// NewNetworkError creates a network error
func NewNetworkError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeNetwork, chain, message, cause)
}

// NewRPCError creates an RPC error
func NewRPCError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeRPC, chain, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string) *ChainError {
	return NewChainError(ErrCodeConfig, "", message, nil)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeTimeout, chain, message, cause)
}

// NewInternalError creates an internal error
func NewInternalError(chain, message string, cause error) *ChainError {
	return NewChainError(ErrCodeInternal, chain, message, cause)
}
