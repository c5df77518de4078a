// Package common defines shared constants and sentinel errors used across
// the repository, service and transport layers of gophauth. Callers should
// use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound   = errors.New("not found")
	ErrorConflict   = errors.New("already exists")
	ErrorValidation = errors.New("validation error")

	// Service-level errors. Everything that leaves the auth service is one of these.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Credential errors (bad signature, expired or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
