// Package otp produces and validates the short numeric passcodes that gate
// the start and completion of a work session. The codes are human-relayed and
// short-lived, not authentication secrets.
package otp

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	stderrors "gigbroker/internal/common/errors"
	"gigbroker/internal/models"
)

const (
	DefaultDigits = 6
	DefaultTTL    = 30 * time.Minute
)

// Generator creates fixed-length numeric challenges with a validity window.
type Generator struct {
	digits int
	ttl    time.Duration
}

func NewGenerator(digits int, ttl time.Duration) *Generator {
	if digits <= 0 {
		digits = DefaultDigits
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Generator{digits: digits, ttl: ttl}
}

// Generate produces a new challenge bound to the given application. Any prior
// challenge for the same subject is superseded by storing this one.
func (g *Generator) Generate(subjectID string, now time.Time) (models.OtpChallenge, error) {
	max := big.NewInt(int64(math.Pow10(g.digits)))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return models.OtpChallenge{}, fmt.Errorf("otp generation failed: %w", err)
	}

	return models.OtpChallenge{
		Code:                 fmt.Sprintf("%0*d", g.digits, n),
		ExpiresAt:            now.Add(g.ttl),
		SubjectApplicationID: subjectID,
	}, nil
}

// TTL returns the validity window the generator stamps on challenges.
func (g *Generator) TTL() time.Duration {
	return g.ttl
}

// Verify checks the submitted code against the challenge. Expiry is evaluated
// first so an expired-but-matching code reports OTP_EXPIRED, prompting the
// caller to regenerate rather than retype.
func Verify(ch models.OtpChallenge, submitted string, now time.Time) error {
	if ch.Expired(now) {
		return stderrors.NewOtpExpiredError(ch.SubjectApplicationID)
	}
	if ch.Code != submitted {
		return stderrors.NewOtpMismatchError(ch.SubjectApplicationID)
	}
	return nil
}
