// Package common defines shared constants and sentinel errors used across
// the server, the admin CLI and their tests. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Credential errors. ErrInvalidCredentials never tells whether the email exists.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrDuplicateEmail     = errors.New("the user with this email already exists in the system")

	// Token and account state errors raised by the identity resolver.
	ErrTokenInvalid          = errors.New("could not validate credentials")
	ErrAccountInactive       = errors.New("inactive user")
	ErrAccountNotFound       = errors.New("user not found")
	ErrInsufficientPrivilege = errors.New("the user doesn't have enough privileges")
)
