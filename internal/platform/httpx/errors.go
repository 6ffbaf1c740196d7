// Package httpx provides HTTP response utilities and the error taxonomy shared by the domain layer.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrService           = errors.New("service error")
)

// ValidationError reports a malformed or out-of-range input. Fields maps an input name to the reason
// it was rejected.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError without field details.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidField builds a ValidationError for a single input field.
func InvalidField(field, reason string) error {
	return &ValidationError{
		Message: "validation failed",
		Fields:  map[string]string{field: reason},
	}
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ForbiddenError reports an actor lacking rights on an entity.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Reason == "" {
		return ErrForbidden.Error()
	}
	return e.Reason
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// Forbidden builds a ForbiddenError.
func Forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}

// ConflictError reports a write that collides with existing state, such as a duplicate code.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Conflict builds a ConflictError.
func Conflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ServiceError wraps an unexpected storage or infrastructure failure.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() []error { return []error{ErrService, e.Err} }

// Wrap annotates err with op. Errors already in the taxonomy keep their classification; anything
// else becomes a ServiceError.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &ServiceError{Op: op, Err: err}
}

// Classified reports whether err already maps to a non-500 status.
func Classified(err error) bool {
	for _, target := range []error{ErrNotFound, ErrConflict, ErrValidation, ErrForbidden, ErrUnauthorized, ErrInvalidTransition} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// fieldCarrier is implemented by errors that expose structured details for the response body.
type fieldCarrier interface {
	FieldErrors() map[string]string
}

// RespondError maps domain errors to HTTP responses. The message comes from the innermost typed error,
// so op prefixes added by Wrap stay in the logs.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		JSON(w, status, ErrorBody{Message: "internal server error"})
		return
	}
	body := ErrorBody{Message: publicMessage(err)}
	var verr *ValidationError
	if errors.As(err, &verr) {
		body.Errors = verr.Fields
	}
	var fc fieldCarrier
	if errors.As(err, &fc) {
		body.Errors = fc.FieldErrors()
	}
	JSON(w, status, body)
}

func publicMessage(err error) string {
	var (
		verr *ValidationError
		nf   *NotFoundError
		fb   *ForbiddenError
		cf   *ConflictError
		fc   fieldCarrier
	)
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &nf):
		return nf.Error()
	case errors.As(err, &fb):
		return fb.Error()
	case errors.As(err, &cf):
		return cf.Error()
	case errors.As(err, &fc):
		if e, ok := fc.(error); ok {
			return e.Error()
		}
	}
	for _, sentinel := range []error{ErrNotFound, ErrConflict, ErrValidation, ErrForbidden, ErrUnauthorized, ErrInvalidTransition} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
