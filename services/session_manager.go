package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/sessiongate/cache"
	"go.pilab.hu/sessiongate/cookie"
	"go.pilab.hu/sessiongate/domain"
	"go.pilab.hu/sessiongate/internal/metrics"
)

// DefaultSessionTTL is the fixed validity window for minted session
// credentials: 5 days.
const DefaultSessionTTL = 5 * 24 * time.Hour

// SessionManager owns the session lifecycle. The only persisted state is
// the session cookie itself; everything else (expired, revoked, logged
// out) is detected lazily through verification.
type SessionManager struct {
	provider   domain.IdentityProvider
	sessions   cache.SessionStore
	cookieName string
	ttl        time.Duration
}

// NewSessionManager creates a SessionManager. A non-positive ttl falls
// back to DefaultSessionTTL.
func NewSessionManager(provider domain.IdentityProvider, sessions cache.SessionStore, cookieName string, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		provider:   provider,
		sessions:   sessions,
		cookieName: cookieName,
		ttl:        ttl,
	}
}

// CookieName returns the session cookie's fixed name.
func (m *SessionManager) CookieName() string {
	return m.cookieName
}

// Establish exchanges a fresh ID token for a session credential and
// writes it to the cookie. Each step aborts the whole transition: an ID
// token that fails verification, a mint refusal, or a cookie write
// failure all leave the caller unauthenticated with no partial state. A
// minted credential whose cookie write fails is discarded.
//
// Re-establishing over an existing session overwrites the cookie with a
// fresh full-length credential; there is no incremental extension.
func (m *SessionManager) Establish(ctx context.Context, ck *cookie.Store, idToken string) (string, error) {
	identity, err := m.provider.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", fmt.Errorf("verifying id token: %w", err)
	}

	credential, err := m.provider.MintSessionCredential(ctx, idToken, m.ttl)
	if err != nil {
		return "", fmt.Errorf("minting session credential: %w", err)
	}

	if err := ck.Set(m.cookieName, credential, cookie.Options{MaxAge: int(m.ttl.Seconds())}); err != nil {
		// The mint result is dropped on the floor; the provider-side
		// credential simply expires unused.
		return "", fmt.Errorf("writing session cookie: %w", err)
	}

	if cacheErr := m.sessions.Set(ctx, credential, &cache.SessionEntry{
		SubjectID:   identity.SubjectID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		ExpiresAt:   time.Now().Add(m.ttl),
	}); cacheErr != nil {
		log.Warn().Err(cacheErr).Msg("failed to cache verified session")
	}

	metrics.SessionsEstablishedTotal.Inc()
	metrics.ActiveSessionsGauge.Inc()
	return identity.SubjectID, nil
}

// Terminate ends the current session. Absent cookie means already logged
// out and is a no-op. Revocation failure is logged but never blocks the
// cookie deletion: the local session must end even when the provider's
// revoke call errors.
func (m *SessionManager) Terminate(ctx context.Context, ck *cookie.Store) {
	credential, ok := ck.Get(m.cookieName)
	if !ok {
		return
	}

	identity, err := m.provider.VerifySessionCredential(ctx, credential)
	if err != nil {
		// Nothing verifiable to revoke; just clear the local artifact.
		log.Debug().Err(err).Msg("terminate: session credential no longer verifiable")
		if cacheErr := m.sessions.Delete(ctx, credential); cacheErr != nil {
			log.Warn().Err(cacheErr).Msg("failed to drop cached session")
		}
	} else {
		if revokeErr := m.provider.RevokeSubject(ctx, identity.SubjectID); revokeErr != nil {
			log.Warn().Err(revokeErr).Str("subjectID", identity.SubjectID).Msg("terminate: revoke failed, deleting cookie anyway")
		} else {
			metrics.SessionsRevokedTotal.Inc()
		}
		if cacheErr := m.sessions.DeleteBySubject(ctx, identity.SubjectID); cacheErr != nil {
			log.Warn().Err(cacheErr).Str("subjectID", identity.SubjectID).Msg("failed to drop cached sessions for subject")
		}
	}

	ck.Delete(m.cookieName)
	metrics.ActiveSessionsGauge.Dec()
}

// Current resolves the identity behind the session cookie. It fails
// closed: any missing, expired, revoked or otherwise unverifiable
// credential reports "no current subject" rather than an error.
func (m *SessionManager) Current(ctx context.Context, ck *cookie.Store) (*domain.Identity, bool) {
	credential, ok := ck.Get(m.cookieName)
	if !ok {
		return nil, false
	}

	if entry, err := m.sessions.Get(ctx, credential); err == nil && time.Now().Before(entry.ExpiresAt) {
		return &domain.Identity{
			SubjectID:   entry.SubjectID,
			Email:       entry.Email,
			DisplayName: entry.DisplayName,
			ExpiresAt:   entry.ExpiresAt,
		}, true
	}

	identity, err := m.provider.VerifySessionCredential(ctx, credential)
	if err != nil {
		log.Debug().Err(err).Msg("current: session credential rejected")
		return nil, false
	}

	if cacheErr := m.sessions.Set(ctx, credential, &cache.SessionEntry{
		SubjectID:   identity.SubjectID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		ExpiresAt:   identity.ExpiresAt,
	}); cacheErr != nil {
		log.Warn().Err(cacheErr).Msg("failed to cache verified session")
	}

	return identity, true
}
