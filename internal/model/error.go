package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string       `json:"error"`
	Message       string       `json:"message"`
	CorrelationID string       `json:"correlationId,omitempty"`
	Details       []FieldError `json:"details,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON       = "INVALID_JSON"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeRuleNotFound      = "RULE_NOT_FOUND"
	ErrCodeUsageNotFound     = "USAGE_NOT_FOUND"
	ErrCodeDuplicateRuleCode = "DUPLICATE_RULE_CODE"
	ErrCodeInvalidRuleID     = "INVALID_RULE_ID"
	ErrCodeUnavailable       = "SERVICE_UNAVAILABLE"
	ErrCodeUnauthorised      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrRuleNotFound       = NewDomainError(ErrCodeRuleNotFound, "Discount rule not found")
	ErrDuplicateRuleCode  = NewDomainError(ErrCodeDuplicateRuleCode, "A discount rule with this code already exists")
	ErrInvalidRuleID      = NewDomainError(ErrCodeInvalidRuleID, "Rule ID must be a valid UUID")
	ErrCustomerIDRequired = NewDomainError(ErrCodeInvalidRequest, "customer_id is required")
	ErrUsageNotFound      = NewDomainError(ErrCodeUsageNotFound, "No usage recorded for this customer and rule")
)

// ValidationErrorKind identifies a single rule validation failure.
type ValidationErrorKind string

// Validation error kinds reported by the rule validator.
const (
	KindDiscountRepresentation   ValidationErrorKind = "INVALID_DISCOUNT_REPRESENTATION"
	KindInvalidAmount            ValidationErrorKind = "INVALID_AMOUNT"
	KindInvalidPercentage        ValidationErrorKind = "INVALID_PERCENTAGE"
	KindMissingUsagePolicyFields ValidationErrorKind = "MISSING_USAGE_POLICY_FIELDS"
	KindInvalidMaxUses           ValidationErrorKind = "INVALID_MAX_USES"
	KindMalformedCooldown        ValidationErrorKind = "MALFORMED_COOLDOWN_PERIOD"
	KindMissingRequiredField     ValidationErrorKind = "MISSING_REQUIRED_FIELD"
	KindInvalidRuleType          ValidationErrorKind = "INVALID_RULE_TYPE"
	KindInvalidSchedule          ValidationErrorKind = "INVALID_SCHEDULE"
)

// FieldError is one validation failure.
type FieldError struct {
	Kind    ValidationErrorKind `json:"kind,omitempty"`
	Field   string              `json:"field,omitempty"`
	Message string              `json:"message"`
}

// ValidationError aggregates every failure found for a rule definition.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Message)
	}
	return "rule validation failed: " + strings.Join(msgs, "; ")
}

// Add records a failure.
func (e *ValidationError) Add(kind ValidationErrorKind, field, message string) {
	e.Errors = append(e.Errors, FieldError{Kind: kind, Field: field, Message: message})
}

// Has reports whether a failure of the given kind was recorded.
func (e *ValidationError) Has(kind ValidationErrorKind) bool {
	for _, fe := range e.Errors {
		if fe.Kind == kind {
			return true
		}
	}
	return false
}

// OrNil returns nil when no failures were recorded.
func (e *ValidationError) OrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// InfrastructureError wraps storage and timeout failures. Callers may retry them.
type InfrastructureError struct {
	Op  string
	Err error
}

// NewInfrastructureError wraps err as a retriable infrastructure failure.
func NewInfrastructureError(op string, err error) *InfrastructureError {
	return &InfrastructureError{Op: op, Err: err}
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// Retriable reports that the failed call may be retried.
func (e *InfrastructureError) Retriable() bool {
	return true
}

// IsInfrastructure reports whether err is or wraps an InfrastructureError.
func IsInfrastructure(err error) bool {
	var infra *InfrastructureError
	return errors.As(err, &infra)
}
