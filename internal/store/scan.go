package store

import (
	"database/sql"
	"time"

	"gigbroker/internal/models"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanApplication reassembles a record, materializing the work session
// sub-record only when the status requires one.
func scanApplication(row rowScanner) (models.ApplicationRecord, error) {
	var (
		rec          models.ApplicationRecord
		status       string
		startTime    sql.NullTime
		endTime      sql.NullTime
		otpCode      sql.NullString
		otpExpiresAt sql.NullTime
	)

	err := row.Scan(
		&rec.ID,
		&rec.JobID,
		&rec.WorkerID,
		&rec.EmployerID,
		&status,
		&rec.AppliedAt,
		&rec.UpdatedAt,
		&startTime,
		&endTime,
		&otpCode,
		&otpExpiresAt,
		&rec.WageAmountCents,
	)
	if err != nil {
		return models.ApplicationRecord{}, err
	}

	rec.Status = models.Status(status)
	if rec.Status.RequiresWorkSession() && startTime.Valid {
		rec.WorkSession = &models.WorkSession{
			WorkStartTime:          startTime.Time,
			WorkEndTime:            endTime.Time,
			CompletionOtp:          otpCode.String,
			CompletionOtpExpiresAt: otpExpiresAt.Time,
		}
	}

	return rec, nil
}

func workStart(rec models.ApplicationRecord) time.Time {
	if rec.WorkSession == nil {
		return time.Time{}
	}
	return rec.WorkSession.WorkStartTime
}

func workEnd(rec models.ApplicationRecord) time.Time {
	if rec.WorkSession == nil {
		return time.Time{}
	}
	return rec.WorkSession.WorkEndTime
}

func completionOtp(rec models.ApplicationRecord) string {
	if rec.WorkSession == nil {
		return ""
	}
	return rec.WorkSession.CompletionOtp
}

func completionOtpExpiry(rec models.ApplicationRecord) time.Time {
	if rec.WorkSession == nil {
		return time.Time{}
	}
	return rec.WorkSession.CompletionOtpExpiresAt
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
