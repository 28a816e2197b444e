// Package worksession orchestrates the OTP protocol around the two gated
// transitions: starting work and completing it. It is the only component that
// reacts to OTP failures with compensating actions (regeneration); everything
// else is surfaced verbatim.
package worksession

import (
	"context"
	"errors"
	"time"

	stderrors "gigbroker/internal/common/errors"
	"gigbroker/internal/common/logger"
	"gigbroker/internal/common/metrics"
	"gigbroker/internal/lifecycle"
	"gigbroker/internal/models"
	"gigbroker/internal/notify"
	"gigbroker/internal/otp"
	"gigbroker/internal/store"
	"gigbroker/internal/wage"
)

// Clock supplies wall-clock time so tests can pin it.
type Clock func() time.Time

// JobSource resolves the job parameters needed for the wage hand-off.
type JobSource interface {
	GetJob(ctx context.Context, jobID string) (models.Job, error)
}

type Controller struct {
	store      store.ApplicationStore
	challenges otp.ChallengeStore
	generator  *otp.Generator
	jobs       JobSource
	wages      wage.Calculator
	events     *notify.Publisher
	now        Clock
	log        logger.Logger
}

func NewController(
	st store.ApplicationStore,
	challenges otp.ChallengeStore,
	generator *otp.Generator,
	jobs JobSource,
	wages wage.Calculator,
	events *notify.Publisher,
	now Clock,
	log logger.Logger,
) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{
		store:      st,
		challenges: challenges,
		generator:  generator,
		jobs:       jobs,
		wages:      wages,
		events:     events,
		now:        now,
		log:        log,
	}
}

// RequestStartOtp issues a fresh start-work challenge for an ACCEPTED
// application. The code is relayed out-of-band to the employer; any prior
// challenge for the application is superseded immediately.
func (c *Controller) RequestStartOtp(ctx context.Context, applicationID string) (models.OtpChallenge, error) {
	rec, err := c.store.Get(ctx, applicationID)
	if err != nil {
		return models.OtpChallenge{}, err
	}

	if !lifecycle.Allowed(rec.Status, lifecycle.EventStartWork) {
		return models.OtpChallenge{}, stderrors.NewInvalidTransitionError(string(rec.Status), string(lifecycle.EventStartWork))
	}

	ch, err := c.generator.Generate(applicationID, c.now())
	if err != nil {
		return models.OtpChallenge{}, err
	}
	if err := c.challenges.Put(ctx, ch); err != nil {
		return models.OtpChallenge{}, stderrors.NewRemoteFailureError("store start challenge", err)
	}

	c.log.Info("start passcode issued", map[string]interface{}{
		"applicationId": applicationID,
		"expiresAt":     ch.ExpiresAt,
	})
	return ch, nil
}

// SubmitStartOtp verifies the worker-submitted code and, on success, starts
// the work session. The status guard runs first: once the record has left
// ACCEPTED, resubmission is rejected no matter how valid the code is.
func (c *Controller) SubmitStartOtp(ctx context.Context, applicationID, code string) (models.ApplicationRecord, error) {
	rec, err := c.store.Get(ctx, applicationID)
	if err != nil {
		return models.ApplicationRecord{}, err
	}

	if !lifecycle.Allowed(rec.Status, lifecycle.EventStartWork) {
		return rec, stderrors.NewInvalidTransitionError(string(rec.Status), string(lifecycle.EventStartWork))
	}

	ch, err := c.challenges.Get(ctx, applicationID)
	if err != nil {
		if errors.Is(err, otp.ErrChallengeNotFound) {
			metrics.OtpVerificationsTotal.WithLabelValues("start", "expired").Inc()
			return rec, stderrors.NewOtpExpiredError(applicationID)
		}
		return rec, stderrors.NewRemoteFailureError("load start challenge", err)
	}

	now := c.now()
	if err := otp.Verify(ch, code, now); err != nil {
		metrics.OtpVerificationsTotal.WithLabelValues("start", verifyResult(err)).Inc()
		return rec, err
	}
	metrics.OtpVerificationsTotal.WithLabelValues("start", "ok").Inc()

	next, err := lifecycle.Apply(rec, lifecycle.EventStartWork, lifecycle.Params{
		Now:           now,
		WorkStartTime: now,
	})
	if err != nil {
		metrics.TransitionsTotal.WithLabelValues(string(lifecycle.EventStartWork), "error").Inc()
		return rec, err
	}

	if err := c.store.Update(ctx, next); err != nil {
		return rec, err
	}

	// One verified code starts exactly one session.
	if err := c.challenges.Delete(ctx, applicationID); err != nil {
		c.log.Warn("failed to delete consumed start challenge", map[string]interface{}{
			"applicationId": applicationID,
			"error":         err.Error(),
		})
	}

	metrics.TransitionsTotal.WithLabelValues(string(lifecycle.EventStartWork), "ok").Inc()
	c.publish(rec, next)
	return next, nil
}

// InitiateCompletion closes the work window and issues a completion passcode.
// Called again while still COMPLETION_PENDING it regenerates the code and
// extends its expiry without re-setting workEndTime.
func (c *Controller) InitiateCompletion(ctx context.Context, applicationID string) (models.ApplicationRecord, error) {
	rec, err := c.store.Get(ctx, applicationID)
	if err != nil {
		return models.ApplicationRecord{}, err
	}

	now := c.now()
	ch, err := c.generator.Generate(applicationID, now)
	if err != nil {
		return rec, err
	}

	next, err := lifecycle.Apply(rec, lifecycle.EventCompleteWork, lifecycle.Params{
		Now:                    now,
		WorkEndTime:            now,
		CompletionOtp:          ch.Code,
		CompletionOtpExpiresAt: ch.ExpiresAt,
	})
	if err != nil {
		metrics.TransitionsTotal.WithLabelValues(string(lifecycle.EventCompleteWork), "error").Inc()
		return rec, err
	}

	if err := c.store.Update(ctx, next); err != nil {
		return rec, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(lifecycle.EventCompleteWork), "ok").Inc()
	if rec.Status != next.Status {
		c.publish(rec, next)
	} else {
		c.log.Info("completion passcode regenerated", map[string]interface{}{
			"applicationId": applicationID,
			"expiresAt":     ch.ExpiresAt,
		})
	}
	return next, nil
}

// ConfirmCompletion verifies the employer-submitted completion code, finishes
// the lifecycle, and hands the session window to the wage calculator.
func (c *Controller) ConfirmCompletion(ctx context.Context, applicationID, code string) (models.ApplicationRecord, error) {
	rec, err := c.store.Get(ctx, applicationID)
	if err != nil {
		return models.ApplicationRecord{}, err
	}

	if rec.Status != models.StatusCompletionPending || rec.WorkSession == nil {
		return rec, stderrors.NewInvalidTransitionError(string(rec.Status), string(lifecycle.EventConfirmCompletion))
	}

	now := c.now()
	ch := models.OtpChallenge{
		Code:                 rec.WorkSession.CompletionOtp,
		ExpiresAt:            rec.WorkSession.CompletionOtpExpiresAt,
		SubjectApplicationID: rec.ID,
	}
	if err := otp.Verify(ch, code, now); err != nil {
		metrics.OtpVerificationsTotal.WithLabelValues("completion", verifyResult(err)).Inc()
		return rec, err
	}
	metrics.OtpVerificationsTotal.WithLabelValues("completion", "ok").Inc()

	next, err := lifecycle.Apply(rec, lifecycle.EventConfirmCompletion, lifecycle.Params{Now: now})
	if err != nil {
		metrics.TransitionsTotal.WithLabelValues(string(lifecycle.EventConfirmCompletion), "error").Inc()
		return rec, err
	}

	// Wage amount is display data, not a state machine input. Failure to
	// resolve the job leaves the amount unset rather than blocking completion.
	if job, err := c.jobs.GetJob(ctx, next.JobID); err == nil {
		next.WageAmountCents = c.wages.Estimate(next.WorkSession.WorkStartTime, next.WorkSession.WorkEndTime, job)
	} else {
		c.log.Warn("wage estimate skipped, job lookup failed", map[string]interface{}{
			"applicationId": applicationID,
			"jobId":         next.JobID,
			"error":         err.Error(),
		})
	}

	if err := c.store.Update(ctx, next); err != nil {
		return rec, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(lifecycle.EventConfirmCompletion), "ok").Inc()
	c.publish(rec, next)
	return next, nil
}

func (c *Controller) publish(prev, next models.ApplicationRecord) {
	if c.events == nil {
		return
	}
	c.events.Publish(notify.StateChange{
		ApplicationID: next.ID,
		JobID:         next.JobID,
		WorkerID:      next.WorkerID,
		From:          prev.Status,
		To:            next.Status,
		At:            next.UpdatedAt,
	})
}

func verifyResult(err error) string {
	switch stderrors.CodeOf(err) {
	case stderrors.ErrCodeOtpExpired:
		return "expired"
	case stderrors.ErrCodeOtpMismatch:
		return "mismatch"
	}
	return "error"
}
