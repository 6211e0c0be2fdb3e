package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no live session exists for the ID.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable is returned when the session backend fails.
var ErrRedisUnavailable = errors.New("session redis unavailable")

// deleteSessionScript removes a session and its entry in the owning
// user's index set in one round trip, so the index never references a
// deleted session.
const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
if ARGV[1] ~= "" then
  redis.call("SREM", KEYS[2], ARGV[2])
  if redis.call("SCARD", KEYS[2]) == 0 then
    redis.call("DEL", KEYS[2])
  end
end
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store persists flow sessions in Redis. Authenticated sessions are
// additionally tracked in a per-user index set so a password reset can
// invalidate every live session of that user.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "nxs"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userIndexKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Save writes the session with the given TTL, maintaining the per-user
// index for authenticated sessions.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}

	encoded, err := Encode(sess)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(sess.SessionID), encoded, ttl)
	if sess.UserID != "" {
		indexKey := s.userIndexKey(sess.UserID)
		pipe.SAdd(ctx, indexKey, sess.SessionID)
		pipe.Expire(ctx, indexKey, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get loads a live session. Expired-but-not-yet-evicted records are
// treated as missing.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	// The ID is the key, not part of the encoded record.
	sess.SessionID = sessionID
	if time.Now().Unix() > sess.ExpiresAt {
		return nil, ErrNotFound
	}

	return sess, nil
}

// Delete removes a session and its index entry. Deleting a missing
// session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID, userID string) error {
	keys := []string{s.key(sessionID), s.userIndexKey(userID)}
	if err := deleteSessionLua.Run(ctx, s.redis, keys, userID, sessionID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUser invalidates every live session of the user. Used
// after a completed password reset.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	indexKey := s.userIndexKey(userID)

	ids, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, indexKey)

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}
