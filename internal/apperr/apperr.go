// SPDX-License-Identifier: MIT

// Package apperr defines the closed set of failure kinds shared by the backend
// and the client, and their mapping to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure. Callers branch on Kind, never on message text.
type Kind int

const (
	KindInternal Kind = iota
	KindInputMissing
	KindInvalidInput
	KindRecognitionFailed
	KindNoSearchResults
	KindResolutionFailed
	KindIOFailure
	KindRateLimited
	KindConnectionFailed
)

var kindNames = map[Kind]string{
	KindInternal:          "internal",
	KindInputMissing:      "input_missing",
	KindInvalidInput:      "invalid_input",
	KindRecognitionFailed: "recognition_failed",
	KindNoSearchResults:   "no_search_results",
	KindResolutionFailed:  "resolution_failed",
	KindIOFailure:         "io_failure",
	KindRateLimited:       "rate_limited",
	KindConnectionFailed:  "connection_failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindInternal, false
}

// HTTPStatus maps a kind to the status code used at the API boundary.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInputMissing, KindInvalidInput:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindConnectionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured error carried through the pipeline.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "transcribe.pass2"
	Message string // human readable, safe to show to users
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by kind so that errors.Is(err, apperr.New(KindX, ...)) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && t.Op == "" && t.Message == ""
	}
	return false
}

// Detail is the human string placed into {"detail": ...} responses.
func (e *Error) Detail() string {
	if e.Cause != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Kind.String()
}

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches a kind to cause. A nil cause yields nil.
func Wrap(kind Kind, op, message string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// Sentinel returns a bare kind marker usable as errors.Is target.
func Sentinel(kind Kind) error {
	return &Error{Kind: kind}
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// DetailOf returns the user-facing detail string of err.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
