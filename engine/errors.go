/*
errors.go - Error taxonomy for the allocation engine

PURPOSE:
  All error types in one place. Callers classify with errors.Is against the
  sentinels; the structured errors carry the details a form or an administrator
  needs.

ERROR CATEGORIES:
  1. Configuration errors - fatal for a posting workflow (rates, accounts,
     pay periods, duty descriptions)
  2. Validation errors - recoverable, returned to the form with every field
  3. State errors - contract transitions or edits the state machine forbids

NO-DATA POLICY:
  Allocation and entitlement computations never return errors for missing data
  (unconfigured levels, no assignments). They return zero.

SEE ALSO:
  - ratetable.go: Produces ConfigurationError
  - tug.go: Produces ValidationError
  - contract.go: Produces StateError
*/
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfiguration marks a posting that is not configured well enough to
	// create or pay contracts.
	ErrConfiguration = errors.New("posting misconfigured")

	// ErrValidation marks user input that violates a business rule.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when the contract state machine forbids
	// a status change or an edit.
	ErrInvalidTransition = errors.New("invalid contract state transition")

	// ErrNotFound is returned when a posting, offering, contract or description
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateContract is returned when a posting already has a contract for
	// the application.
	ErrDuplicateContract = errors.New("contract already exists for application")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError names the missing configuration of a posting.
type ConfigurationError struct {
	PostingID PostingID
	Missing   string
}

func (e *ConfigurationError) Error() string {
	if e.PostingID == "" {
		return fmt.Sprintf("configuration error: %s", e.Missing)
	}
	return fmt.Sprintf("configuration error in posting %s: %s", e.PostingID, e.Missing)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// FieldError is a violation tied to one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated field of one save.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add records a field violation.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns the error only if at least one field failed.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// StateError describes a forbidden transition or edit.
type StateError struct {
	ContractID ContractID
	From       Status
	Action     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("contract %s: cannot %s from status %s", e.ContractID, e.Action, e.From)
}

func (e *StateError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateContract)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfiguration returns true if the posting workflow must be blocked.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
