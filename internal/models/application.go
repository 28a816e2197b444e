// internal/models/application.go
package models

import "time"

// Status enumerates the lifecycle states of a job application.
type Status string

const (
	StatusApplied           Status = "APPLIED"
	StatusSelected          Status = "SELECTED"
	StatusAccepted          Status = "ACCEPTED"
	StatusWorkInProgress    Status = "WORK_IN_PROGRESS"
	StatusCompletionPending Status = "COMPLETION_PENDING"
	StatusCompleted         Status = "COMPLETED"
	StatusRejected          Status = "REJECTED"
	StatusDeclined          Status = "DECLINED"
	StatusNotInterested     Status = "NOT_INTERESTED"
)

// Terminal reports whether the status accepts no further forward events.
// NOT_INTERESTED is terminal for the main progress view but can still be
// reconsidered through the rejected-jobs pool.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusDeclined, StatusNotInterested:
		return true
	}
	return false
}

// RequiresWorkSession reports whether a record in this status must carry a
// work session sub-record.
func (s Status) RequiresWorkSession() bool {
	switch s {
	case StatusWorkInProgress, StatusCompletionPending, StatusCompleted:
		return true
	}
	return false
}

// WorkSession holds the timestamps and completion passcode for an application
// whose work has started. Present only from WORK_IN_PROGRESS onward.
type WorkSession struct {
	WorkStartTime          time.Time `json:"workStartTime" db:"work_start_time"`
	WorkEndTime            time.Time `json:"workEndTime,omitempty" db:"work_end_time"`
	CompletionOtp          string    `json:"completionOtp,omitempty" db:"completion_otp"`
	CompletionOtpExpiresAt time.Time `json:"completionOtpExpiresAt,omitempty" db:"completion_otp_expires_at"`
}

// ApplicationRecord is the persisted unit of work brokered between a worker
// and an employer. Status is mutated only through lifecycle.Apply.
type ApplicationRecord struct {
	ID         string `json:"id" db:"id"`
	JobID      string `json:"jobId" db:"job_id"`
	WorkerID   string `json:"workerId" db:"worker_id"`
	EmployerID string `json:"employerId" db:"employer_id"`

	Status    Status    `json:"status" db:"status"`
	AppliedAt time.Time `json:"appliedAt" db:"applied_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	WorkSession *WorkSession `json:"workSession,omitempty"`

	// WageAmountCents is attached after completion for display. It is not an
	// input to any transition decision.
	WageAmountCents int64 `json:"wageAmountCents,omitempty" db:"wage_amount_cents"`
}

// Clone returns a deep copy so callers can mutate a candidate record without
// touching the original.
func (r ApplicationRecord) Clone() ApplicationRecord {
	out := r
	if r.WorkSession != nil {
		ws := *r.WorkSession
		out.WorkSession = &ws
	}
	return out
}
