package domain

import (
	"context"
	"time"
)

// IdentityProvider is the provider's verification capability. Token and
// credential values are opaque to every other component; only the
// implementation behind this interface ever interprets them.
type IdentityProvider interface {
	// VerifyIDToken checks a short-lived ID token and returns the subject
	// identity, or ErrInvalidToken when the token is malformed, expired or
	// signed by an untrusted key.
	VerifyIDToken(ctx context.Context, idToken string) (*Identity, error)

	// VerifySessionCredential checks a session credential, including its
	// revocation generation. ID tokens presented as credentials are
	// rejected. Expired and revoked credentials both fail with
	// ErrInvalidSession.
	VerifySessionCredential(ctx context.Context, credential string) (*Identity, error)

	// MintSessionCredential exchanges a verified ID token for a session
	// credential with the given validity window.
	MintSessionCredential(ctx context.Context, idToken string, ttl time.Duration) (string, error)

	// RevokeSubject advances the subject's revocation generation so that
	// every credential minted before this call stops verifying.
	RevokeSubject(ctx context.Context, subjectID string) error

	// GetSubject looks up the provider account for a subject id.
	GetSubject(ctx context.Context, subjectID string) (*Identity, error)
}

// PrimaryAuthenticator is the provider's token-issuance surface. The entry
// points use it to turn primary credentials into a fresh ID token.
type PrimaryAuthenticator interface {
	SignUp(ctx context.Context, email, password, displayName string) (*AuthResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthResult, error)
	SignInWithIdP(ctx context.Context, providerID, idpToken string) (*AuthResult, error)
}

// UserRepository is the narrow user-directory contract. Create relies on
// the storage layer's id uniqueness constraint and returns ErrUserExists
// when the subject already has a row.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
}
