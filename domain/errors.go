package domain

import "errors"

// Verification and minting errors.
var (
	ErrInvalidToken   = errors.New("id token is invalid or expired")
	ErrInvalidSession = errors.New("session credential is invalid, expired or revoked")
	ErrMintFailed     = errors.New("minting session credential failed")
	ErrRevokeFailed   = errors.New("revoking subject failed")
)

// Primary authentication errors. These are expected branches reported to
// the user through the result envelope, never as raw faults.
var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Directory errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// External service errors.
var (
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)
