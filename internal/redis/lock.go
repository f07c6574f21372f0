package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis. The visit service locks a
// user's sync stream so two concurrent batch uploads from the same account
// cannot interleave their active-visit reconciliation.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireUserSyncLock attempts to acquire the sync lock for the given user.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireUserSyncLock(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:sync:%s", userID)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseUserSyncLock releases the sync lock for the given user.
func (s *LockStore) ReleaseUserSyncLock(ctx context.Context, userID string) error {
	key := fmt.Sprintf("lock:sync:%s", userID)

	return s.client.Del(ctx, key).Err()
}
