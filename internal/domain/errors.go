// Package domain contains the core business entities for Meridian.
package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error matches exactly one of these via errors.Is,
// which is how callers (HTTP layer, CLI) decide how to report a failure.
var (
	// ErrValidation indicates malformed input or a violated value-object rule.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness rule was violated.
	ErrConflict = errors.New("conflict")
)

// kindError is a concrete error that belongs to one of the kinds above.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newValidation(msg string) error { return &kindError{kind: ErrValidation, msg: msg} }

func newNotFound(msg string) error { return &kindError{kind: ErrNotFound, msg: msg} }

func newConflict(msg string) error { return &kindError{kind: ErrConflict, msg: msg} }

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrEmptyUserID indicates a blank user identifier.
	ErrEmptyUserID = newValidation("user ID cannot be empty")

	// ErrInvalidEmail indicates the email does not look like local@domain.tld.
	ErrInvalidEmail = newValidation("invalid email format")

	// ErrInvalidRole indicates a role outside admin, user, moderator.
	ErrInvalidRole = newValidation("invalid user role")

	// ErrInvalidStatus indicates a status outside active, inactive, pending, suspended.
	ErrInvalidStatus = newValidation("invalid user status")

	// ErrInvalidTheme indicates a theme outside light, dark, system.
	ErrInvalidTheme = newValidation("invalid theme")

	// ErrInvalidVisibility indicates a profile visibility outside public, private, friends.
	ErrInvalidVisibility = newValidation("invalid profile visibility")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = newNotFound("user not found")

	// ErrUserAlreadyExists indicates a user with the same email exists.
	ErrUserAlreadyExists = newConflict("user already exists")

	// ErrEmailImmutable indicates a write that would change a stored user's email.
	ErrEmailImmutable = newValidation("email cannot change once assigned")

	// ===========================================
	// Product Errors
	// ===========================================

	// ErrEmptyProductID indicates a blank product identifier.
	ErrEmptyProductID = newValidation("product ID cannot be empty")

	// ErrInvalidProductName indicates a name shorter than 2 or longer than 100 characters.
	ErrInvalidProductName = newValidation("product name must be between 2 and 100 characters")

	// ErrInvalidPrice indicates a non-positive or non-finite amount.
	ErrInvalidPrice = newValidation("price must be a positive finite number")

	// ErrInvalidCurrency indicates a malformed currency code.
	ErrInvalidCurrency = newValidation("currency must be a 3 letter code")

	// ErrCurrencyMismatch indicates arithmetic across different currencies.
	ErrCurrencyMismatch = newValidation("cannot combine prices with different currencies")

	// ErrInvalidCategory indicates a category without id or name.
	ErrInvalidCategory = newValidation("category requires id and name")

	// ErrInvalidInventory indicates a negative quantity, reservation or threshold.
	ErrInvalidInventory = newValidation("inventory values cannot be negative")

	// ErrInvalidQuantity indicates a non-positive reserve or release amount.
	ErrInvalidQuantity = newValidation("quantity must be greater than zero")

	// ErrInsufficientStock indicates a reservation larger than available stock.
	ErrInsufficientStock = newValidation("cannot reserve more than available stock")

	// ErrReleaseExceedsReserved indicates a release larger than the reserved amount.
	ErrReleaseExceedsReserved = newValidation("cannot release more than reserved quantity")

	// ErrInvalidRating indicates an average outside 0..5 or a negative count.
	ErrInvalidRating = newValidation("rating average must be between 0 and 5 and count non-negative")

	// ErrInvalidRatingValue indicates a single rating outside 1..5.
	ErrInvalidRatingValue = newValidation("rating must be an integer between 1 and 5")

	// ErrProductNotFound indicates the requested product does not exist.
	ErrProductNotFound = newNotFound("product not found")

	// ErrProductAlreadyExists indicates a product with the same name exists.
	ErrProductAlreadyExists = newConflict("product already exists")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., user ID, email).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err refers to a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
