package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeRecordVersionV1 = 1

var (
	ErrChallengeNotFound         = errors.New("challenge record not found")
	ErrChallengeCodeMismatch     = errors.New("challenge code mismatch")
	ErrChallengeAttemptsExceeded = errors.New("challenge attempts exceeded")
	ErrChallengeRedisUnavailable = errors.New("challenge redis unavailable")
)

// ChallengeRecord is one pending verification-code challenge. The code
// itself is never stored; only its SHA-256 digest is.
type ChallengeRecord struct {
	UserID   string
	Email    string
	CodeHash [32]byte

	ExpiresAt int64
	Attempts  uint16
}

// ChallengeStore persists code challenges in Redis, keyed by the flow
// session that requested them. Login and password-reset flows use
// separate instances with distinct prefixes, so issuing one kind of
// code never clobbers a pending code of the other kind.
type ChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewChallengeStore(redisClient redis.UniversalClient, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = "nxc"
	}
	return &ChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ChallengeStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save stores a challenge under the session, replacing any prior
// pending challenge of the same kind for that session.
func (s *ChallengeStore) Save(
	ctx context.Context,
	sessionID string,
	record *ChallengeRecord,
	ttl time.Duration,
) error {
	if record.ExpiresAt == 0 {
		record.ExpiresAt = time.Now().Add(ttl).Unix()
	}

	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(sessionID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}

	return nil
}

// Consume verifies providedHash against the stored challenge under a
// WATCH transaction. A match deletes the record (single use) and
// returns it. A mismatch increments the attempt counter in place,
// deleting the record once maxAttempts is reached. Expired or missing
// records yield [ErrChallengeNotFound].
func (s *ChallengeStore) Consume(
	ctx context.Context,
	sessionID string,
	providedHash [32]byte,
	maxAttempts int,
) (*ChallengeRecord, error) {
	const maxRetries = 4
	key := s.key(sessionID)

	for i := 0; i < maxRetries; i++ {
		var matched *ChallengeRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeChallengeRecord(data)
			if err != nil {
				return err
			}

			now := time.Now()
			if now.Unix() > record.ExpiresAt {
				return deleteInTx(ctx, tx, key, ErrChallengeNotFound)
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					return deleteInTx(ctx, tx, key, ErrChallengeAttemptsExceeded)
				}

				ttl := time.Until(time.Unix(record.ExpiresAt, 0))
				if ttl <= 0 {
					return deleteInTx(ctx, tx, key, ErrChallengeNotFound)
				}

				updated, err := encodeChallengeRecord(record)
				if err != nil {
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeCodeMismatch
			}

			if err := deleteInTx(ctx, tx, key, nil); err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrChallengeNotFound
			case errors.Is(err, ErrChallengeNotFound),
				errors.Is(err, ErrChallengeCodeMismatch),
				errors.Is(err, ErrChallengeAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, ErrChallengeNotFound
}

// Get returns the pending challenge without consuming it.
func (s *ChallengeStore) Get(ctx context.Context, sessionID string) (*ChallengeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}

	record, err := decodeChallengeRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrChallengeNotFound
	}

	return record, nil
}

// Delete discards a pending challenge, if any.
func (s *ChallengeStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return nil
}

func deleteInTx(ctx context.Context, tx *redis.Tx, key string, result error) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return err
	}
	return result
}

func encodeChallengeRecord(record *ChallengeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(challengeRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 255 {
		return nil, errors.New("challenge record user id too long")
	}
	buf.WriteByte(byte(len(record.UserID)))
	buf.WriteString(record.UserID)

	if len(record.Email) > 255 {
		return nil, errors.New("challenge record email too long")
	}
	buf.WriteByte(byte(len(record.Email)))
	buf.WriteString(record.Email)

	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeChallengeRecord(data []byte) (*ChallengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersionV1 {
		return nil, errors.New("invalid challenge record version")
	}

	record := &ChallengeRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	userIDLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	emailLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, err
	}
	record.Email = string(email)

	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
