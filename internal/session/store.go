package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dawnmoon/charon/internal/shared"
)

const userTokenKeyPrefix = "user_id_to_token:"

// Store is the session cache over Redis. It owns two index families:
// token → Record and userID → token. A token index entry implies a live
// record for the same user and vice versa; callers maintain that by
// always writing and deleting both together.
type Store struct {
	client      *redis.Client
	tokenPrefix string
}

// NewStore constructs a Store. tokenPrefix namespaces the token keys,
// e.g. "token:".
func NewStore(client *redis.Client, tokenPrefix string) *Store {
	if tokenPrefix == "" {
		tokenPrefix = "token:"
	}
	return &Store{client: client, tokenPrefix: tokenPrefix}
}

// Put stores or overwrites the record under token and resets its TTL.
func (s *Store) Put(ctx context.Context, token string, rec *Record, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal record: %w", err)
	}
	if err := s.client.Set(ctx, s.tokenKey(token), payload, ttl).Err(); err != nil {
		return depErr("put record", err)
	}
	return nil
}

// Get loads the record stored under token. A missing or expired token
// yields (nil, nil).
func (s *Store) Get(ctx context.Context, token string) (*Record, error) {
	payload, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, depErr("get record", err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("session: unmarshal record: %w", err)
	}
	return &rec, nil
}

// Delete removes the record stored under token. Deleting an absent token
// is not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.tokenKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return depErr("delete record", err)
	}
	return nil
}

// PutUserToken stores token as the user's current token with the given TTL.
func (s *Store) PutUserToken(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, userTokenKey(userID), token, ttl).Err(); err != nil {
		return depErr("put user token", err)
	}
	return nil
}

// GetUserToken returns the user's current token, or "" when the user has
// no active session.
func (s *Store) GetUserToken(ctx context.Context, userID int64) (string, error) {
	token, err := s.client.Get(ctx, userTokenKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", depErr("get user token", err)
	}
	return token, nil
}

// DeleteUserToken removes the user's token index entry.
func (s *Store) DeleteUserToken(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, userTokenKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return depErr("delete user token", err)
	}
	return nil
}

// RemainingTTL reports the token's remaining lifetime. ok is false when
// the token is absent or carries no expiry.
func (s *Store) RemainingTTL(ctx context.Context, token string) (ttl time.Duration, ok bool, err error) {
	ttl, err = s.client.TTL(ctx, s.tokenKey(token)).Result()
	if err != nil {
		return 0, false, depErr("remaining ttl", err)
	}
	if ttl <= 0 {
		// -2 means no key, -1 means no expiry set.
		return 0, false, nil
	}
	return ttl, true, nil
}

// Renew extends the token's expiry without rewriting the stored record.
// Both index families are renewed so they keep expiring together. ok is
// false when the token is no longer present.
func (s *Store) Renew(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.Expire(ctx, s.tokenKey(token), ttl).Result()
	if err != nil {
		return false, depErr("renew", err)
	}
	if !ok {
		return false, nil
	}
	rec, err := s.Get(ctx, token)
	if err != nil {
		return false, err
	}
	if rec != nil {
		if err := s.client.Expire(ctx, userTokenKey(rec.UserID), ttl).Err(); err != nil {
			return false, depErr("renew user token", err)
		}
	}
	return true, nil
}

func (s *Store) tokenKey(token string) string {
	return s.tokenPrefix + token
}

func userTokenKey(userID int64) string {
	return fmt.Sprintf("%s%d", userTokenKeyPrefix, userID)
}

func depErr(op string, err error) error {
	return fmt.Errorf("session: %s: %w: %w", op, shared.ErrDependencyUnavailable, err)
}
