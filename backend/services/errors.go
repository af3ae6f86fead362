package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeConflict           ErrorType = "conflict"
	ErrorTypeForbidden          ErrorType = "forbidden"
	ErrorTypeInvalidState       ErrorType = "invalid_state_transition"
	ErrorTypeUnsupportedStorage ErrorType = "unsupported_storage_type"
	ErrorTypeInternal           ErrorType = "internal"
	ErrorTypeExternal           ErrorType = "external"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// WithDetail returns a copy of the error carrying the extra detail. The
// receiver is never mutated, so the package-level sentinels stay immutable
// and safe for concurrent use.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{
		Type:    e.Type,
		Message: e.Message,
		Err:     e.Err,
		Details: details,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrDatasetNotFound         = NewDomainError(ErrorTypeNotFound, "dataset not found", nil)
	ErrAccessRequestNotFound   = NewDomainError(ErrorTypeNotFound, "access request not found", nil)
	ErrContractNotFound        = NewDomainError(ErrorTypeNotFound, "contract not found", nil)
	ErrNegotiationTypeNotFound = NewDomainError(ErrorTypeNotFound, "negotiation type not found", nil)

	// Validation Errors
	ErrInvalidInput        = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrDatasetNotPublished = NewDomainError(ErrorTypeValidation, "dataset does not exist or is not published", nil)

	// Conflict Errors
	ErrDuplicatePendingRequest = NewDomainError(ErrorTypeConflict, "a pending access request already exists for this dataset", nil)

	// Forbidden Errors
	ErrNotDatasetProvider   = NewDomainError(ErrorTypeForbidden, "caller does not own the dataset", nil)
	ErrNotRequestConsumer   = NewDomainError(ErrorTypeForbidden, "caller does not own the access request", nil)
	ErrNotContractProvider  = NewDomainError(ErrorTypeForbidden, "caller is not the contract's provider", nil)
	ErrNoContract           = NewDomainError(ErrorTypeForbidden, "no contract exists for this resource", nil)
	ErrContractNotActive    = NewDomainError(ErrorTypeForbidden, "the contract is not active", nil)
	ErrContractNotEffective = NewDomainError(ErrorTypeForbidden, "the contract is not yet effective", nil)
	ErrContractExpired      = NewDomainError(ErrorTypeForbidden, "the contract has expired", nil)
	ErrDatasetUnavailable   = NewDomainError(ErrorTypeForbidden, "dataset unavailable for consumption", nil)

	// Internal Errors
	ErrInternal           = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrMissingStorageURI  = NewDomainError(ErrorTypeInternal, "dataset has no storage URI configured", nil)
	ErrDatasetFileMissing = NewDomainError(ErrorTypeInternal, "dataset file does not exist on the server", nil)
	ErrTransactionFailed  = NewDomainError(ErrorTypeInternal, "transaction failed", nil)

	// External Connector Errors
	ErrConnectorUnavailable = NewDomainError(ErrorTypeExternal, "dataspace connector unavailable", nil)
)

// NewPolicyDenied creates the forbidden error returned when the usage policy
// denies a consumption attempt. The message carries the evaluator's reason.
func NewPolicyDenied(reason string) *DomainError {
	return NewDomainError(ErrorTypeForbidden, reason, nil)
}

// NewInvalidStateTransition creates the error returned when an operation is
// issued from a state it does not accept. The message names the accepted
// source states.
func NewInvalidStateTransition(current string, allowed ...string) *DomainError {
	msg := fmt.Sprintf("operation not allowed from state %s; accepted source states: %s",
		current, strings.Join(allowed, ", "))
	return NewDomainError(ErrorTypeInvalidState, msg, nil).
		WithDetail("current_state", current).
		WithDetail("accepted_states", allowed)
}

// NewUnsupportedStorageType creates the error returned when a dataset's
// storage type has no dispatch path.
func NewUnsupportedStorageType(storageType string) *DomainError {
	return NewDomainError(ErrorTypeUnsupportedStorage,
		fmt.Sprintf("storage type not supported: %s", storageType), nil).
		WithDetail("storage_type", storageType)
}

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConflict
	}
	return false
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeForbidden
	}
	return false
}

// IsInvalidStateError checks if an error is an invalid state transition error
func IsInvalidStateError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInvalidState
	}
	return false
}

// IsUnsupportedStorageError checks if an error is an unsupported storage type error
func IsUnsupportedStorageError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUnsupportedStorage
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// IsExternalError checks if an error is an external connector error
func IsExternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeExternal
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an external connector error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}
