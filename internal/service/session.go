package service

import (
	"context"

	stderrors "gigbroker/internal/common/errors"
	"gigbroker/internal/models"
	"gigbroker/internal/swipe"

	"github.com/google/uuid"
)

// Session binds one worker's feed view to a fresh swipe tracker. It lives for
// the lifetime of the feed view and is discarded on teardown; nothing in it
// is persisted.
type Session struct {
	ID       string
	WorkerID string

	tracker *swipe.Tracker
	broker  *Broker
}

// brokerRemote adapts the broker's store mutations to the tracker's Remote
// interface for one worker. In the rejected pool an accept swipe means
// "reconsider", so the dispatch depends on the session's current mode.
type brokerRemote struct {
	broker   *Broker
	workerID string
	mode     func() models.SwipeMode
}

func (r *brokerRemote) Apply(ctx context.Context, jobID string) error {
	if r.mode() == models.ModeReconsideringRejected {
		_, err := r.broker.ReconsiderJob(ctx, jobID, r.workerID)
		return err
	}
	_, err := r.broker.ApplyToJob(ctx, jobID, r.workerID)
	if stderrors.HasCode(err, stderrors.ErrCodeAlreadyProcessed) {
		// Remote already has an outcome for this job; treat as confirmed.
		return nil
	}
	return err
}

func (r *brokerRemote) MarkNotInterested(ctx context.Context, jobID string) error {
	err := r.broker.MarkNotInterested(ctx, jobID, r.workerID)
	if stderrors.HasCode(err, stderrors.ErrCodeAlreadyProcessed) {
		return nil
	}
	return err
}

// OpenSession creates a swipe session for a worker in the given mode and
// registers it for lookup by the transport layer.
func (b *Broker) OpenSession(workerID string, mode models.SwipeMode) *Session {
	remote := &brokerRemote{broker: b, workerID: workerID}
	tracker := swipe.NewTracker(workerID, mode, remote, b.log)
	remote.mode = tracker.Mode

	s := &Session{
		ID:       uuid.New().String(),
		WorkerID: workerID,
		tracker:  tracker,
		broker:   b,
	}

	b.mu.Lock()
	b.sessions[s.ID] = s
	b.mu.Unlock()
	return s
}

// GetSession looks up a live session by ID.
func (b *Broker) GetSession(sessionID string) (*Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	return s, ok
}

// CloseSession tears the session down after draining in-flight mutations.
func (b *Broker) CloseSession(sessionID string) {
	b.mu.Lock()
	s, ok := b.sessions[sessionID]
	delete(b.sessions, sessionID)
	b.mu.Unlock()

	if ok {
		s.tracker.Wait()
	}
}

// NextBatch projects the worker's visible feed for the session's current mode.
func (s *Session) NextBatch(ctx context.Context) ([]models.Job, error) {
	if s.tracker.Mode() == models.ModeReconsideringRejected {
		jobs, err := s.broker.feed.RejectedJobs(ctx, s.WorkerID)
		if err != nil {
			return nil, err
		}
		return s.tracker.NextBatch(jobs), nil
	}

	jobs, err := s.broker.feed.OpenJobs(ctx, s.WorkerID)
	if err != nil {
		return nil, err
	}
	jobs, err = s.withoutExistingApplications(ctx, jobs)
	if err != nil {
		return nil, err
	}
	return s.tracker.NextBatch(jobs), nil
}

// withoutExistingApplications drops jobs the worker already holds a record
// for. The tracker only remembers the current session; records persisted by
// earlier sessions must not resurface in a fresh one. A swipe that never
// reconciled left no record, so its job stays eligible.
func (s *Session) withoutExistingApplications(ctx context.Context, jobs []models.Job) ([]models.Job, error) {
	recs, err := s.broker.store.ListByWorker(ctx, s.WorkerID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return jobs, nil
	}

	held := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		held[rec.JobID] = struct{}{}
	}
	out := make([]models.Job, 0, len(jobs))
	for _, job := range jobs {
		if _, ok := held[job.ID]; ok {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

// Swipe records a gesture on a job card.
func (s *Session) Swipe(jobID string, direction models.SwipeDirection) (swipe.Outcome, error) {
	return s.tracker.OnSwipe(jobID, direction)
}

// SwitchMode flips between the normal and the rejected pool, resetting all
// dedup state.
func (s *Session) SwitchMode(mode models.SwipeMode) {
	s.tracker.ResetForMode(mode)
}

// Drain waits for outstanding remote mutations; exposed for tests and
// graceful shutdown.
func (s *Session) Drain() {
	s.tracker.Wait()
}
