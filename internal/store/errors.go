package store

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a store error.
type Kind string

// Error kinds.
const (
	KindDatabase   Kind = "database"
	KindCreation   Kind = "creation"
	KindValidation Kind = "validation"
	KindListing    Kind = "listing"
	KindCount      Kind = "count"
	KindUpdate     Kind = "update"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
)

// Error is a persistence error with an HTTP status code.
//
// Errors derived from a sentinel through WithCause, WithMessage or
// WithDetails still match that sentinel with errors.Is.
type Error struct {
	Kind    Kind
	Code    int    // HTTP status code
	Message string // User-facing message
	Details any    // Structured payload, e.g. missing tag names
	Err     error  // Underlying error (optional)

	sentinel *Error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel this error was derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.root() == t.root()
}

func (e *Error) root() *Error {
	if e.sentinel != nil {
		return e.sentinel
	}
	return e
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

func (e *Error) derive() *Error {
	return &Error{
		Kind:     e.Kind,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Err:      e.Err,
		sentinel: e.root(),
	}
}

// WithMessage returns a new error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	d := e.derive()
	d.Message = msg
	return d
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	d := e.derive()
	d.Err = err
	return d
}

// WithDetails attaches a structured payload.
func (e *Error) WithDetails(details any) *Error {
	d := e.derive()
	d.Details = details
	return d
}

// Sentinel errors.
var (
	// ErrDatabase is a transport or engine failure reported by the backend.
	ErrDatabase = &Error{
		Kind:    KindDatabase,
		Code:    http.StatusInternalServerError,
		Message: "database error",
	}

	ErrPostCreation = &Error{
		Kind:    KindCreation,
		Code:    http.StatusInternalServerError,
		Message: "post could not be created",
	}

	ErrTagCreation = &Error{
		Kind:    KindCreation,
		Code:    http.StatusInternalServerError,
		Message: "tag could not be created",
	}

	// ErrTagsNotFound carries the missing names as Details.
	ErrTagsNotFound = &Error{
		Kind:    KindValidation,
		Code:    http.StatusBadRequest,
		Message: "tags not found",
	}

	// ErrTagFind is returned when a tag lookup yields names that were not asked for.
	ErrTagFind = &Error{
		Kind:    KindValidation,
		Code:    http.StatusInternalServerError,
		Message: "tag lookup returned unexpected tags",
	}

	ErrPostListing = &Error{
		Kind:    KindListing,
		Code:    http.StatusInternalServerError,
		Message: "posts could not be listed",
	}

	ErrPostCount = &Error{
		Kind:    KindCount,
		Code:    http.StatusInternalServerError,
		Message: "posts could not be counted",
	}

	ErrTagListing = &Error{
		Kind:    KindListing,
		Code:    http.StatusInternalServerError,
		Message: "tags could not be listed",
	}

	ErrTagCount = &Error{
		Kind:    KindCount,
		Code:    http.StatusInternalServerError,
		Message: "tags could not be counted",
	}

	ErrPostUpdate = &Error{
		Kind:    KindUpdate,
		Code:    http.StatusInternalServerError,
		Message: "post could not be updated",
	}

	ErrNotFound = &Error{
		Kind:    KindNotFound,
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrAlreadyExists = &Error{
		Kind:    KindConflict,
		Code:    http.StatusConflict,
		Message: "resource already exists",
	}
)

// TagsNotFound builds the validation error for a create or update that
// referenced tags which do not exist.
func TagsNotFound(missing []string) *Error {
	return ErrTagsNotFound.
		WithMessage("tags not found: " + strings.Join(missing, ", ")).
		WithDetails(missing)
}

// MissingTags extracts the missing tag names from a TagsNotFound error.
func MissingTags(err error) []string {
	var storeErr *Error
	if !errors.As(err, &storeErr) || !errors.Is(storeErr, ErrTagsNotFound) {
		return nil
	}
	names, _ := storeErr.Details.([]string)
	return names
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
