package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gigbroker/internal/models"

	"github.com/redis/go-redis/v9"
)

var ErrChallengeNotFound = errors.New("CHALLENGE_NOT_FOUND")

// ChallengeStore holds the active start-work challenge per application. The
// completion challenge lives on the record itself; only the start challenge
// needs out-of-record storage because the record is still ACCEPTED.
type ChallengeStore interface {
	Put(ctx context.Context, ch models.OtpChallenge) error
	Get(ctx context.Context, subjectID string) (models.OtpChallenge, error)
	Delete(ctx context.Context, subjectID string) error
}

// RedisChallengeStore keeps challenges in Redis under a TTL matching the
// challenge expiry. The TTL is housekeeping; Verify evaluates expiry against
// the stored timestamp regardless.
type RedisChallengeStore struct {
	rdb *redis.Client
}

func NewRedisChallengeStore(rdb *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{rdb: rdb}
}

func challengeKey(subjectID string) string {
	return "otp:start:" + subjectID
}

// Put overwrites any prior challenge for the subject, invalidating old codes.
func (s *RedisChallengeStore) Put(ctx context.Context, ch models.OtpChallenge) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}

	ttl := time.Until(ch.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	if err := s.rdb.Set(ctx, challengeKey(ch.SubjectApplicationID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, subjectID string) (models.OtpChallenge, error) {
	payload, err := s.rdb.Get(ctx, challengeKey(subjectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.OtpChallenge{}, ErrChallengeNotFound
		}
		return models.OtpChallenge{}, fmt.Errorf("load challenge: %w", err)
	}

	var ch models.OtpChallenge
	if err := json.Unmarshal(payload, &ch); err != nil {
		return models.OtpChallenge{}, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return ch, nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, subjectID string) error {
	return s.rdb.Del(ctx, challengeKey(subjectID)).Err()
}
