// Package service is the facade the UI layer talks to. It owns the remote
// mutations behind swipes, the per-session trackers, and delegates the gated
// work-session operations to the controller.
package service

import (
	"context"
	"sync"
	"time"

	stderrors "gigbroker/internal/common/errors"
	"gigbroker/internal/common/logger"
	"gigbroker/internal/lifecycle"
	"gigbroker/internal/models"
	"gigbroker/internal/notify"
	"gigbroker/internal/store"
	"gigbroker/internal/worksession"

	"github.com/google/uuid"
)

// JobFeed sources the job lists and documents the broker needs. Satisfied by
// feed.Feed.
type JobFeed interface {
	OpenJobs(ctx context.Context, workerID string) ([]models.Job, error)
	RejectedJobs(ctx context.Context, workerID string) ([]models.Job, error)
	GetJob(ctx context.Context, jobID string) (models.Job, error)
}

type Broker struct {
	store      store.ApplicationStore
	feed       JobFeed
	controller *worksession.Controller
	events     *notify.Publisher
	now        worksession.Clock
	log        logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewBroker(
	st store.ApplicationStore,
	fd JobFeed,
	controller *worksession.Controller,
	events *notify.Publisher,
	now worksession.Clock,
	log logger.Logger,
) *Broker {
	if now == nil {
		now = time.Now
	}
	return &Broker{
		store:      st,
		feed:       fd,
		controller: controller,
		events:     events,
		now:        now,
		log:        log,
		sessions:   make(map[string]*Session),
	}
}

// ==========================
// Application lifecycle
// ==========================

// ApplyToJob creates an APPLIED record for the worker. Applying twice to the
// same job is the idempotency no-op, not an error dialog.
func (b *Broker) ApplyToJob(ctx context.Context, jobID, workerID string) (models.ApplicationRecord, error) {
	if existing, err := b.store.GetByJobAndWorker(ctx, jobID, workerID); err == nil {
		return existing, stderrors.NewAlreadyProcessedError(jobID)
	} else if !stderrors.HasCode(err, stderrors.ErrCodeRecordNotFound) {
		return models.ApplicationRecord{}, err
	}

	job, err := b.feed.GetJob(ctx, jobID)
	if err != nil {
		return models.ApplicationRecord{}, stderrors.NewRemoteFailureError("resolve job", err)
	}

	now := b.now()
	rec := models.ApplicationRecord{
		ID:         uuid.New().String(),
		JobID:      jobID,
		WorkerID:   workerID,
		EmployerID: job.EmployerID,
		Status:     models.StatusApplied,
		AppliedAt:  now,
		UpdatedAt:  now,
	}
	if err := b.store.Create(ctx, rec); err != nil {
		// Lost the insert race to a concurrent session; surface the winner's
		// record through the same no-op path as a plain duplicate apply.
		if stderrors.HasCode(err, stderrors.ErrCodeAlreadyProcessed) {
			if existing, getErr := b.store.GetByJobAndWorker(ctx, jobID, workerID); getErr == nil {
				return existing, err
			}
		}
		return models.ApplicationRecord{}, err
	}

	b.publish(models.ApplicationRecord{Status: ""}, rec)
	b.log.Info("application created", map[string]interface{}{
		"applicationId": rec.ID,
		"jobId":         jobID,
		"workerId":      workerID,
	})
	return rec, nil
}

// MarkNotInterested records a left swipe. An existing APPLIED record is
// withdrawn; with no prior record a withdrawn one is created so the job can
// surface later in the rejected pool.
func (b *Broker) MarkNotInterested(ctx context.Context, jobID, workerID string) error {
	existing, err := b.store.GetByJobAndWorker(ctx, jobID, workerID)
	if err == nil {
		if existing.Status == models.StatusNotInterested {
			return stderrors.NewAlreadyProcessedError(jobID)
		}
		next, err := lifecycle.Apply(existing, lifecycle.EventWithdraw, lifecycle.Params{Now: b.now()})
		if err != nil {
			return err
		}
		if err := b.store.Update(ctx, next); err != nil {
			return err
		}
		b.publish(existing, next)
		return nil
	}
	if !stderrors.HasCode(err, stderrors.ErrCodeRecordNotFound) {
		return err
	}

	job, err := b.feed.GetJob(ctx, jobID)
	if err != nil {
		return stderrors.NewRemoteFailureError("resolve job", err)
	}

	now := b.now()
	rec := models.ApplicationRecord{
		ID:         uuid.New().String(),
		JobID:      jobID,
		WorkerID:   workerID,
		EmployerID: job.EmployerID,
		Status:     models.StatusApplied,
		AppliedAt:  now,
		UpdatedAt:  now,
	}
	withdrawn, err := lifecycle.Apply(rec, lifecycle.EventWithdraw, lifecycle.Params{Now: now})
	if err != nil {
		return err
	}
	if err := b.store.Create(ctx, withdrawn); err != nil {
		return err
	}
	b.publish(rec, withdrawn)
	return nil
}

// ReconsiderJob moves a withdrawn application back to APPLIED through the
// rejected-jobs pool. The existing record is reused, not recreated.
func (b *Broker) ReconsiderJob(ctx context.Context, jobID, workerID string) (models.ApplicationRecord, error) {
	existing, err := b.store.GetByJobAndWorker(ctx, jobID, workerID)
	if err != nil {
		return models.ApplicationRecord{}, err
	}

	next, err := lifecycle.Apply(existing, lifecycle.EventReconsider, lifecycle.Params{Now: b.now()})
	if err != nil {
		return existing, err
	}
	if err := b.store.Update(ctx, next); err != nil {
		return existing, err
	}
	b.publish(existing, next)
	return next, nil
}

// Transition applies an employer/worker-initiated event with no extra side
// effects: SELECT, ACCEPT, DECLINE, REJECT.
func (b *Broker) Transition(ctx context.Context, applicationID string, event lifecycle.Event) (models.ApplicationRecord, error) {
	rec, err := b.store.Get(ctx, applicationID)
	if err != nil {
		return models.ApplicationRecord{}, err
	}

	next, err := lifecycle.Apply(rec, event, lifecycle.Params{Now: b.now()})
	if err != nil {
		return rec, err
	}
	if err := b.store.Update(ctx, next); err != nil {
		return rec, err
	}
	b.publish(rec, next)
	return next, nil
}

// ==========================
// Work session delegation
// ==========================

func (b *Broker) RequestStartOtp(ctx context.Context, applicationID string) (models.OtpChallenge, error) {
	return b.controller.RequestStartOtp(ctx, applicationID)
}

func (b *Broker) SubmitStartOtp(ctx context.Context, applicationID, code string) (models.ApplicationRecord, error) {
	return b.controller.SubmitStartOtp(ctx, applicationID, code)
}

func (b *Broker) InitiateCompletion(ctx context.Context, applicationID string) (models.ApplicationRecord, error) {
	return b.controller.InitiateCompletion(ctx, applicationID)
}

func (b *Broker) ConfirmCompletion(ctx context.Context, applicationID, code string) (models.ApplicationRecord, error) {
	return b.controller.ConfirmCompletion(ctx, applicationID, code)
}

func (b *Broker) publish(prev, next models.ApplicationRecord) {
	if b.events == nil {
		return
	}
	b.events.Publish(notify.StateChange{
		ApplicationID: next.ID,
		JobID:         next.JobID,
		WorkerID:      next.WorkerID,
		From:          prev.Status,
		To:            next.Status,
		At:            next.UpdatedAt,
	})
}
