package domain

import (
	"strings"
	"time"
)

// Identity is the outcome of a successful provider verification: the
// stable subject id plus the claims embedded in the verified artifact.
type Identity struct {
	SubjectID   string
	Email       string
	DisplayName string
	ExpiresAt   time.Time
	Claims      map[string]any
}

// ProfileHint carries provider-supplied profile data used when a local
// user record has to be created for a verified subject.
type ProfileHint struct {
	Email       string
	DisplayName string
}

// ResolveDisplayName returns the hint's display name, falling back to the
// local part of the email before "@" when the name is absent. The fallback
// is deterministic so repeated reconciliations produce the same record.
func (h ProfileHint) ResolveDisplayName() string {
	if h.DisplayName != "" {
		return h.DisplayName
	}
	if at := strings.Index(h.Email, "@"); at > 0 {
		return h.Email[:at]
	}
	return h.Email
}

// AuthResult is the provider's answer to a primary authentication attempt
// (password sign-in, sign-up, or a federated exchange). The ID token is
// short-lived and consumed exactly once per session establishment.
type AuthResult struct {
	IDToken   string
	SubjectID string
	Profile   ProfileHint
}
