package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/sessiongate/domain"
	"go.pilab.hu/sessiongate/internal/metrics"
)

// AccountReconciler keeps the local user directory aligned with the
// provider: every verified subject gets exactly one directory row keyed
// by its subject id.
type AccountReconciler struct {
	users domain.UserRepository
}

// NewAccountReconciler creates an AccountReconciler.
func NewAccountReconciler(users domain.UserRepository) *AccountReconciler {
	return &AccountReconciler{users: users}
}

// EnsureUserRecord looks up the row for subjectID and creates it from the
// profile hint when absent. The returned created flag reports whether
// this call inserted the row; callers use it to decide whether a failed
// follow-up step must compensate by deleting the record.
//
// Lookup-then-create is not atomic. Two simultaneous first logins race,
// and the storage layer's id uniqueness rejects the loser: that rejection
// is treated as "record already existed" and the lookup retried once.
func (r *AccountReconciler) EnsureUserRecord(ctx context.Context, subjectID string, hint domain.ProfileHint) (*domain.User, bool, error) {
	user, err := r.users.FindByID(ctx, subjectID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, fmt.Errorf("looking up user %s: %w", subjectID, err)
	}

	user = &domain.User{
		ID:          subjectID,
		Email:       hint.Email,
		DisplayName: hint.ResolveDisplayName(),
	}
	err = r.users.Create(ctx, user)
	if err == nil {
		log.Info().Str("subjectID", subjectID).Msg("created user record for new subject")
		return user, true, nil
	}
	if !errors.Is(err, domain.ErrUserExists) {
		return nil, false, fmt.Errorf("creating user %s: %w", subjectID, err)
	}

	// Lost the creation race; the winner's row is authoritative.
	user, err = r.users.FindByID(ctx, subjectID)
	if err != nil {
		return nil, false, fmt.Errorf("re-reading user %s after duplicate create: %w", subjectID, err)
	}
	return user, false, nil
}

// RollbackUserRecord deletes a row that was created earlier in the same
// registration attempt whose session establishment then failed. Best
// effort only: an orphaned profile row is preferable to failing the
// registration flow a second time.
func (r *AccountReconciler) RollbackUserRecord(ctx context.Context, subjectID string) {
	err := r.users.Delete(ctx, subjectID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		log.Warn().Err(err).Str("subjectID", subjectID).Msg("failed to roll back user record, leaving orphan")
		return
	}
	metrics.ReconcilerRollbacksTotal.Inc()
	log.Info().Str("subjectID", subjectID).Msg("rolled back user record after failed session establishment")
}
