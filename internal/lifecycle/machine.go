// Package lifecycle implements the application status state machine. Apply is
// a pure function: timestamps and passcodes are supplied by the caller, so the
// same record and event always produce the same outcome.
package lifecycle

import (
	"time"

	stderrors "gigbroker/internal/common/errors"
	"gigbroker/internal/models"
)

// Event is a lifecycle trigger validated against the current status.
type Event string

const (
	EventSelect            Event = "SELECT"
	EventAccept            Event = "ACCEPT"
	EventDecline           Event = "DECLINE"
	EventReject            Event = "REJECT"
	EventWithdraw          Event = "WITHDRAW"
	EventStartWork         Event = "START_WORK"
	EventCompleteWork      Event = "COMPLETE_WORK"
	EventConfirmCompletion Event = "CONFIRM_COMPLETION"
	EventReconsider        Event = "RECONSIDER"
)

// Params carries the caller-supplied values an event may need. Now is always
// required; the rest are read per-event.
type Params struct {
	Now time.Time

	// START_WORK
	WorkStartTime time.Time

	// COMPLETE_WORK: WorkEndTime is consumed only on first entry into
	// COMPLETION_PENDING; the passcode fields are consumed on every entry.
	WorkEndTime            time.Time
	CompletionOtp          string
	CompletionOtpExpiresAt time.Time
}

// transition is a single allowed edge in the lifecycle state machine.
type transition struct {
	from  models.Status
	event Event
	to    models.Status
}

var transitionsTable = []transition{
	// Main progress path
	{from: models.StatusApplied, event: EventSelect, to: models.StatusSelected},
	{from: models.StatusSelected, event: EventAccept, to: models.StatusAccepted},
	{from: models.StatusAccepted, event: EventStartWork, to: models.StatusWorkInProgress},
	{from: models.StatusWorkInProgress, event: EventCompleteWork, to: models.StatusCompletionPending},
	{from: models.StatusCompletionPending, event: EventConfirmCompletion, to: models.StatusCompleted},

	// Re-enterable: regenerate the completion passcode in place.
	{from: models.StatusCompletionPending, event: EventCompleteWork, to: models.StatusCompletionPending},

	// Side branches
	{from: models.StatusSelected, event: EventDecline, to: models.StatusDeclined},
	{from: models.StatusApplied, event: EventReject, to: models.StatusRejected},
	{from: models.StatusSelected, event: EventReject, to: models.StatusRejected},
	{from: models.StatusApplied, event: EventWithdraw, to: models.StatusNotInterested},

	// Reconsider a withdrawn job through the rejected-jobs pool.
	{from: models.StatusNotInterested, event: EventReconsider, to: models.StatusApplied},
}

// transitionFor returns the allowed transition for a given status+event.
func transitionFor(from models.Status, event Event) (transition, bool) {
	for _, tr := range transitionsTable {
		if tr.from == from && tr.event == event {
			return tr, true
		}
	}
	return transition{}, false
}

// Allowed reports whether the event is legal for the given status.
func Allowed(from models.Status, event Event) bool {
	_, ok := transitionFor(from, event)
	return ok
}

// Apply validates the event against the record's status and returns the
// transitioned copy. On any error the input record is returned unchanged.
func Apply(record models.ApplicationRecord, event Event, p Params) (models.ApplicationRecord, error) {
	tr, ok := transitionFor(record.Status, event)
	if !ok {
		return record, stderrors.NewInvalidTransitionError(string(record.Status), string(event))
	}

	next := record.Clone()

	switch event {
	case EventStartWork:
		next.WorkSession = &models.WorkSession{
			WorkStartTime: p.WorkStartTime,
		}

	case EventCompleteWork:
		if next.WorkSession == nil {
			// Unreachable from a valid ACCEPTED->WORK_IN_PROGRESS history.
			return record, stderrors.NewInvalidTransitionError(string(record.Status), string(event))
		}
		if record.Status == models.StatusWorkInProgress {
			// First entry: close the session window.
			if p.WorkEndTime.Before(next.WorkSession.WorkStartTime) {
				return record, stderrors.NewClockSkewError(record.ID, next.WorkSession.WorkStartTime, p.WorkEndTime)
			}
			next.WorkSession.WorkEndTime = p.WorkEndTime
		}
		// Regeneration replaces the passcode without touching the window.
		next.WorkSession.CompletionOtp = p.CompletionOtp
		next.WorkSession.CompletionOtpExpiresAt = p.CompletionOtpExpiresAt

	case EventConfirmCompletion:
		if next.WorkSession == nil {
			return record, stderrors.NewInvalidTransitionError(string(record.Status), string(event))
		}
		next.WorkSession.CompletionOtp = ""
		next.WorkSession.CompletionOtpExpiresAt = time.Time{}

	case EventReconsider:
		// Re-enters the pipeline as a fresh application of the same record.
		next.AppliedAt = p.Now
		next.WorkSession = nil
		next.WageAmountCents = 0
	}

	next.Status = tr.to
	next.UpdatedAt = p.Now

	return next, nil
}
