// internal/models/otp.go
package models

import "time"

// OtpChallenge is a short-lived passcode bound to exactly one application.
// It gates the start-work and complete-work transitions and is relayed to the
// counterparty out-of-band.
type OtpChallenge struct {
	Code                 string    `json:"code"`
	ExpiresAt            time.Time `json:"expiresAt"`
	SubjectApplicationID string    `json:"subjectApplicationId"`
}

// Expired reports whether the challenge is past its validity window.
func (c OtpChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
