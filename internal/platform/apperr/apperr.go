// Package apperr defines the error kinds surfaced by the learning services
// and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies an error for callers.
type Kind int

const (
	Internal Kind = iota
	PermissionDenied
	Unauthenticated
	NotEnrolled
	AlreadyEnrolled
	CourseUnavailable
	AttemptsExhausted
	QuizRequired
	NotCompleted
	NotFound
	Validation
	Conflict
)

var kindNames = map[Kind]string{
	Internal:          "internal",
	PermissionDenied:  "permission_denied",
	Unauthenticated:   "unauthenticated",
	NotEnrolled:       "not_enrolled",
	AlreadyEnrolled:   "already_enrolled",
	CourseUnavailable: "course_unavailable",
	AttemptsExhausted: "attempts_exhausted",
	QuizRequired:      "quiz_required",
	NotCompleted:      "not_completed",
	NotFound:          "not_found",
	Validation:        "validation_error",
	Conflict:          "conflict",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status returns the HTTP status class for the kind.
func (k Kind) Status() int {
	switch k {
	case PermissionDenied, NotEnrolled:
		return http.StatusForbidden
	case Unauthenticated:
		return http.StatusUnauthorized
	case AlreadyEnrolled:
		return http.StatusOK
	case CourseUnavailable, AttemptsExhausted, QuizRequired, NotCompleted, Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	// Fields maps input field names to messages for validation errors.
	Fields map[string]string
	// Details carries a kind-specific payload, e.g. the attempt summary
	// attached to AttemptsExhausted.
	Details any
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s: %s", k, e.Fields[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind with no message,
// which lets the package-level sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrPermissionDenied  = &Error{Kind: PermissionDenied}
	ErrUnauthenticated   = &Error{Kind: Unauthenticated}
	ErrNotEnrolled       = &Error{Kind: NotEnrolled}
	ErrAlreadyEnrolled   = &Error{Kind: AlreadyEnrolled}
	ErrCourseUnavailable = &Error{Kind: CourseUnavailable}
	ErrAttemptsExhausted = &Error{Kind: AttemptsExhausted}
	ErrQuizRequired      = &Error{Kind: QuizRequired}
	ErrNotCompleted      = &Error{Kind: NotCompleted}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrValidation        = &Error{Kind: Validation}
	ErrConflict          = &Error{Kind: Conflict}
)

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Invalid returns a validation error with per-field messages.
func Invalid(message string, fields map[string]string) *Error {
	return &Error{Kind: Validation, Message: message, Fields: fields}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
