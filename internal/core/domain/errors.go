package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure that crosses the gateway boundary.
type ErrorKind string

const (
	KindUnauthorized       ErrorKind = "unauthorized"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindForbidden          ErrorKind = "forbidden"
	KindConflict           ErrorKind = "conflict"
	KindValidation         ErrorKind = "validation"
	KindNotFound           ErrorKind = "not_found"
	KindNetwork            ErrorKind = "network"
	KindServer             ErrorKind = "server"
)

// MsgAlreadyLoggedIn is surfaced verbatim when login hits the single-session policy.
const MsgAlreadyLoggedIn = "Already logged in on another device"

// AuthError is the normalized failure returned by the remote gateways.
//
// Detail holds the structured message found in the response body, if any;
// Message is always human readable (Detail, or a text derived from Status).
type AuthError struct {
	Kind    ErrorKind
	Message string
	Detail  string
	Status  int
}

func (e *AuthError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *AuthError of the same kind, so the Err* values below work
// with errors.Is.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized       = &AuthError{Kind: KindUnauthorized, Message: "session is not valid"}
	ErrInvalidCredentials = &AuthError{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrForbidden          = &AuthError{Kind: KindForbidden, Message: "access forbidden"}
	ErrConflict           = &AuthError{Kind: KindConflict, Message: "conflict"}
	ErrValidation         = &AuthError{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound           = &AuthError{Kind: KindNotFound, Message: "not found"}
	ErrNetwork            = &AuthError{Kind: KindNetwork, Message: "could not reach server"}
	ErrServer             = &AuthError{Kind: KindServer, Message: "server error"}
)

// NewAuthError builds an AuthError of the given kind.
func NewAuthError(kind ErrorKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

// KindOf returns the kind of err when it is an AuthError, or "" otherwise.
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
