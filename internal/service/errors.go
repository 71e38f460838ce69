// Package service provides the application services for Meridian.
package service

import (
	"errors"
	"fmt"

	"github.com/prn-tf/meridian/internal/domain"
)

// Common service errors.
var (
	// ErrMissingRequiredFields is returned when a request omits a required field.
	ErrMissingRequiredFields = domain.NewDomainError(domain.ErrValidation, "missing required fields", "")

	// ErrSuspensionReasonRequired is returned when a suspension has no reason.
	ErrSuspensionReasonRequired = domain.NewDomainError(domain.ErrValidation, "suspension reason is required", "")

	// ErrUnknownCategory is returned when a product names a category outside the catalogue.
	ErrUnknownCategory = domain.NewDomainError(domain.ErrInvalidCategory, "unknown category", "")

	// ErrNoReport is returned when no report has been published yet.
	ErrNoReport = domain.NewDomainError(domain.ErrNotFound, "no report published", "")

	// General errors
	ErrInternalError = errors.New("internal server error")
)

// passThrough keeps domain errors intact and wraps everything else as internal.
func passThrough(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsValidation(err) || domain.IsNotFound(err) || domain.IsConflict(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInternalError, err)
}
