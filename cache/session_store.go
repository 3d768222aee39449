// Package cache holds verified session credentials so repeated requests
// do not pay a provider round-trip on every identity check.
package cache

import (
	"context"
	"time"
)

// SessionEntry is a cached verification result for one session credential.
type SessionEntry struct {
	SubjectID   string    `redis:"subjectId"`
	Email       string    `redis:"email"`
	DisplayName string    `redis:"displayName"`
	ExpiresAt   time.Time `redis:"expiresAt"`
}

// SessionStore caches verification results keyed by credential
// fingerprint. Raw credential values are never used as keys.
//
// DeleteBySubject exists so revocation propagates immediately: a revoked
// subject's cached verifications must not outlive the revoke call.
type SessionStore interface {
	Set(ctx context.Context, credential string, entry *SessionEntry) error
	Get(ctx context.Context, credential string) (*SessionEntry, error)
	Delete(ctx context.Context, credential string) error
	DeleteBySubject(ctx context.Context, subjectID string) error
	Count(ctx context.Context) int
}
