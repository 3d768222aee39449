package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStoreRoundTrip(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	entry := &SessionEntry{
		SubjectID: "subj-1",
		Email:     "a@x.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Set(ctx, "credential-a", entry))

	got, err := store.Get(ctx, "credential-a")
	require.NoError(t, err)
	assert.Equal(t, "subj-1", got.SubjectID)
	assert.Equal(t, "a@x.com", got.Email)

	_, err = store.Get(ctx, "credential-unknown")
	assert.Error(t, err)
}

func TestMemorySessionStoreRejectsExpired(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	defer store.Close()

	err := store.Set(context.Background(), "c", &SessionEntry{
		SubjectID: "subj-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	assert.Error(t, err)
}

func TestMemorySessionStoreDeleteBySubject(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	exp := time.Now().Add(time.Hour)
	require.NoError(t, store.Set(ctx, "cred-1", &SessionEntry{SubjectID: "subj-1", ExpiresAt: exp}))
	require.NoError(t, store.Set(ctx, "cred-2", &SessionEntry{SubjectID: "subj-1", ExpiresAt: exp}))
	require.NoError(t, store.Set(ctx, "cred-3", &SessionEntry{SubjectID: "subj-2", ExpiresAt: exp}))

	require.NoError(t, store.DeleteBySubject(ctx, "subj-1"))

	_, err := store.Get(ctx, "cred-1")
	assert.Error(t, err)
	_, err = store.Get(ctx, "cred-2")
	assert.Error(t, err)
	_, err = store.Get(ctx, "cred-3")
	assert.NoError(t, err)
	assert.Equal(t, 1, store.Count(ctx))
}

func TestFingerprintIsStableAndOpaque(t *testing.T) {
	a := Fingerprint("credential")
	b := Fingerprint("credential")
	c := Fingerprint("other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "credential")
}
