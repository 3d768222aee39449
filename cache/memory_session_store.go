package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemorySessionStore implements SessionStore using ttlcache. Entries
// expire together with the credential they cache.
type MemorySessionStore struct {
	cache *ttlcache.Cache[string, *SessionEntry]
}

// NewMemorySessionStore creates an in-memory session store with automatic
// cleanup of expired entries.
//
//nolint:ireturn
func NewMemorySessionStore(cleanupInterval time.Duration) *MemorySessionStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *SessionEntry](cleanupInterval),
		ttlcache.WithDisableTouchOnHit[string, *SessionEntry](),
	)

	go cache.Start()

	return &MemorySessionStore{cache: cache}
}

// Set implements SessionStore.Set.
func (s *MemorySessionStore) Set(_ context.Context, credential string, entry *SessionEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refusing to cache expired session entry")
	}
	s.cache.Set(Fingerprint(credential), entry, ttl)
	return nil
}

// Get implements SessionStore.Get.
func (s *MemorySessionStore) Get(_ context.Context, credential string) (*SessionEntry, error) {
	item := s.cache.Get(Fingerprint(credential))
	if item == nil {
		return nil, fmt.Errorf("session entry not found")
	}
	return item.Value(), nil
}

// Delete removes a single cached verification.
func (s *MemorySessionStore) Delete(_ context.Context, credential string) error {
	s.cache.Delete(Fingerprint(credential))
	return nil
}

// DeleteBySubject removes every cached verification for a subject.
func (s *MemorySessionStore) DeleteBySubject(_ context.Context, subjectID string) error {
	var stale []string
	s.cache.Range(func(item *ttlcache.Item[string, *SessionEntry]) bool {
		if item.Value().SubjectID == subjectID {
			stale = append(stale, item.Key())
		}
		return true
	})
	for _, key := range stale {
		s.cache.Delete(key)
	}
	return nil
}

// Count returns the number of cached entries.
func (s *MemorySessionStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemorySessionStore) Close() error {
	s.cache.Stop()
	return nil
}
