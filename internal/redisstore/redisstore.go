// Package redisstore keeps short-lived shared state in Redis: refresh token
// sessions and per-appointment transition locks.
package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLocked is returned when another request holds the lock.
var ErrLocked = errors.New("resource is locked")

const (
	refreshTokenPrefix = "refresh_token:"
	lockPrefix         = "lock:"
)

// RefreshTokenStore tracks issued refresh tokens. Only a hash of the token is stored.
type RefreshTokenStore struct {
	client *redis.Client
}

// NewRefreshTokenStore creates a RefreshTokenStore.
func NewRefreshTokenStore(client *redis.Client) *RefreshTokenStore {
	return &RefreshTokenStore{client: client}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return refreshTokenPrefix + hex.EncodeToString(sum[:])
}

// Save records token as belonging to userID until ttl elapses.
func (s *RefreshTokenStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, tokenKey(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// Valid reports whether token is live and owned by userID.
func (s *RefreshTokenStore) Valid(ctx context.Context, token, userID string) (bool, error) {
	owner, err := s.client.Get(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup refresh token: %w", err)
	}
	return owner == userID, nil
}

// Revoke deletes token. Revoking an unknown token is not an error.
func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, tokenKey(token)).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Deletes the key only while it still holds the caller's value.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out expiring mutual exclusion locks keyed by name.
type Locker struct {
	client *redis.Client
	log    *zap.Logger
}

// NewLocker creates a Locker. A nil logger disables logging.
func NewLocker(client *redis.Client, log *zap.Logger) *Locker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Locker{client: client, log: log}
}

// Lock is a held lock. Release it with Locker.Unlock.
type Lock struct {
	Key   string
	Value string
}

// TryLock acquires key for at most expiration. It returns ErrLocked when the
// key is already held.
func (l *Locker) TryLock(ctx context.Context, key string, expiration time.Duration) (*Lock, error) {
	lock := &Lock{Key: lockPrefix + key, Value: uuid.NewString()}
	acquired, err := l.client.SetNX(ctx, lock.Key, lock.Value, expiration).Result()
	if err != nil {
		l.log.Error("Locker.TryLock SetNX failed", zap.String("key", lock.Key), zap.Error(err))
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		l.log.Debug("Locker.TryLock not acquired", zap.String("key", lock.Key))
		return nil, ErrLocked
	}
	return lock, nil
}

// Unlock releases lock if it is still owned by the caller. An expired or
// stolen lock is left alone.
func (l *Locker) Unlock(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	deleted, err := unlockScript.Run(ctx, l.client, []string{lock.Key}, lock.Value).Int()
	if err != nil {
		l.log.Error("Locker.Unlock script failed", zap.String("key", lock.Key), zap.Error(err))
		return fmt.Errorf("release lock: %w", err)
	}
	if deleted == 0 {
		l.log.Warn("Locker.Unlock lock no longer owned", zap.String("key", lock.Key))
	}
	return nil
}
