// Package redis provides a Redis-backed session cache for multi-replica
// deployments, where revocation must invalidate every replica at once.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/sessiongate/cache"
)

// SessionStore implements cache.SessionStore using Redis hashes. Keys are
// credential fingerprints under a configurable prefix.
type SessionStore struct {
	client *redis.Client
	prefix string
}

// NewSessionStore creates a new SessionStore instance.
func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix}
}

func (r *SessionStore) redisKey(fingerprint string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, fingerprint)
}

// Set stores a verification result with expiry matching the credential.
func (r *SessionStore) Set(ctx context.Context, credential string, entry *cache.SessionEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refusing to cache expired session entry")
	}
	key := r.redisKey(cache.Fingerprint(credential))

	fields := map[string]interface{}{
		"subject_id":   entry.SubjectID,
		"email":        entry.Email,
		"display_name": entry.DisplayName,
		"expires_at":   entry.ExpiresAt.Unix(),
	}
	if _, err := r.client.HSet(ctx, key, fields).Result(); err != nil {
		return fmt.Errorf("failed to set session entry in Redis: %w", err)
	}
	if _, err := r.client.Expire(ctx, key, ttl).Result(); err != nil {
		return fmt.Errorf("failed to set expiry for session entry in Redis: %w", err)
	}
	return nil
}

// Get retrieves a cached verification result.
func (r *SessionStore) Get(ctx context.Context, credential string) (*cache.SessionEntry, error) {
	key := r.redisKey(cache.Fingerprint(credential))

	res, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session entry from Redis: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("session entry not found")
	}

	expiresAtUnix, err := strconv.ParseInt(res["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed expires_at in cached entry: %w", err)
	}

	return &cache.SessionEntry{
		SubjectID:   res["subject_id"],
		Email:       res["email"],
		DisplayName: res["display_name"],
		ExpiresAt:   time.Unix(expiresAtUnix, 0),
	}, nil
}

// Delete removes a single cached verification.
func (r *SessionStore) Delete(ctx context.Context, credential string) error {
	_, err := r.client.Del(ctx, r.redisKey(cache.Fingerprint(credential))).Result()
	return err
}

// DeleteBySubject scans the prefix and removes every entry whose
// subject_id matches. Scan keeps the operation incremental on large
// keyspaces.
func (r *SessionStore) DeleteBySubject(ctx context.Context, subjectID string) error {
	pattern := r.redisKey("*")
	var cursor uint64

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan session entries: %w", err)
		}

		for _, key := range keys {
			owner, err := r.client.HGet(ctx, key, "subject_id").Result()
			if err == redis.Nil {
				continue // expired between scan and read
			} else if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to read subject for cached session")
				continue
			}
			if owner != subjectID {
				continue
			}
			if _, err := r.client.Del(ctx, key).Result(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to delete cached session")
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Count returns the number of cached entries under the prefix.
func (r *SessionStore) Count(ctx context.Context) int {
	pattern := r.redisKey("*")
	var count int64
	var cursor uint64

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			log.Warn().Err(err).Msg("failed to scan session entries for count")
			break
		}
		count += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return int(count)
}

var _ cache.SessionStore = (*SessionStore)(nil)
