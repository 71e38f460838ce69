package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/service"
)

// Error codes returned in APIError.Code.
const (
	CodeValidation = "validation_error"
	CodeNotFound   = "not_found"
	CodeConflict   = "conflict"
	CodeBadRequest = "bad_request"
	CodeInternal   = "internal_error"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an APIError.
func WriteError(w http.ResponseWriter, status int, code, msg string, details any) {
	WriteJSON(w, status, APIError{Error: msg, Code: code, Details: details})
}

// writeServiceError maps an error kind to its HTTP status.
// Internal errors are logged and reported without their cause.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var fieldErrs *service.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), fieldErrs.Details())
	case domain.IsValidation(err):
		WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
	case domain.IsNotFound(err):
		WriteError(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case domain.IsConflict(err):
		WriteError(w, http.StatusConflict, CodeConflict, err.Error(), nil)
	default:
		logger.Error().Err(err).Msg("request failed")
		WriteError(w, http.StatusInternalServerError, CodeInternal, service.ErrInternalError.Error(), nil)
	}
}

// decodeJSON reads a single JSON document into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("malformed JSON: %v", err)
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON document")
	}
	return nil
}

// bind decodes the body or writes a 400 and reports false.
func bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(r, v); err != nil {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return false
	}
	return true
}
