// Package swipe deduplicates a worker's pass through the job feed. Each job
// yields at most one accept/reject outcome per session, tolerant of slow and
// failing remote confirmation.
package swipe

import (
	"context"
	"sync"
	"time"

	stderrors "gigbroker/internal/common/errors"
	"gigbroker/internal/common/logger"
	"gigbroker/internal/common/metrics"
	"gigbroker/internal/models"
)

// Outcome reports what a swipe gesture did.
type Outcome string

const (
	// OutcomeDispatched means the remote mutation was fired and the job left
	// the visible feed.
	OutcomeDispatched Outcome = "dispatched"
	// OutcomeAlreadyProcessed means the job already has a confirmed outcome
	// this session. Surfaced to the user as a no-op.
	OutcomeAlreadyProcessed Outcome = "already_processed"
	// OutcomeCoalesced means a mutation for this job is still in flight; the
	// duplicate gesture is absorbed.
	OutcomeCoalesced Outcome = "coalesced"
)

const dispatchTimeout = 10 * time.Second

// Remote dispatches the persistence mutations behind a swipe.
type Remote interface {
	Apply(ctx context.Context, jobID string) error
	MarkNotInterested(ctx context.Context, jobID string) error
}

// Tracker is the per-(worker, feed-session) dedup state. All mutations are
// serialized behind one mutex; the in-memory transition of a swipe is atomic
// with respect to subsequent swipes and feed projections.
type Tracker struct {
	mu        sync.Mutex
	processed map[string]struct{}
	inFlight  map[string]struct{}
	mode      models.SwipeMode

	workerID string
	remote   Remote
	log      logger.Logger
	wg       sync.WaitGroup
}

// NewTracker builds a fresh session scoped to one worker and feed mode.
func NewTracker(workerID string, mode models.SwipeMode, remote Remote, log logger.Logger) *Tracker {
	return &Tracker{
		processed: make(map[string]struct{}),
		inFlight:  make(map[string]struct{}),
		mode:      mode,
		workerID:  workerID,
		remote:    remote,
		log: log.WithFields(map[string]interface{}{
			"workerId": workerID,
		}),
	}
}

// Mode returns the pool the session is currently showing.
func (t *Tracker) Mode() models.SwipeMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// NextBatch projects the visible feed from the upstream job list: anything
// processed or in flight is hidden, input order is preserved. It is a live
// projection, safe to recompute whenever the upstream list changes.
func (t *Tracker) NextBatch(allJobs []models.Job) []models.Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.Job, 0, len(allJobs))
	for _, job := range allJobs {
		if _, ok := t.processed[job.ID]; ok {
			continue
		}
		if _, ok := t.inFlight[job.ID]; ok {
			continue
		}
		out = append(out, job)
	}
	return out
}

// OnSwipe records the gesture and dispatches the remote mutation. The job is
// marked in flight before the network round-trip starts, so the card is gone
// from NextBatch immediately; a failed round-trip rolls that back and the job
// reappears exactly once.
func (t *Tracker) OnSwipe(jobID string, direction models.SwipeDirection) (Outcome, error) {
	t.mu.Lock()
	if _, ok := t.processed[jobID]; ok {
		t.mu.Unlock()
		metrics.SwipesTotal.WithLabelValues(string(direction), string(OutcomeAlreadyProcessed)).Inc()
		return OutcomeAlreadyProcessed, stderrors.NewAlreadyProcessedError(jobID)
	}
	if _, ok := t.inFlight[jobID]; ok {
		t.mu.Unlock()
		metrics.SwipesTotal.WithLabelValues(string(direction), string(OutcomeCoalesced)).Inc()
		return OutcomeCoalesced, nil
	}

	t.inFlight[jobID] = struct{}{}
	t.mu.Unlock()

	metrics.SwipesTotal.WithLabelValues(string(direction), string(OutcomeDispatched)).Inc()
	metrics.SwipesInFlight.Inc()

	t.wg.Add(1)
	go t.dispatch(jobID, direction)

	return OutcomeDispatched, nil
}

// dispatch runs the remote mutation to completion. Swipes are not cancellable
// mid-flight, so the call gets its own timeout-bounded context.
func (t *Tracker) dispatch(jobID string, direction models.SwipeDirection) {
	defer t.wg.Done()
	defer metrics.SwipesInFlight.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	op := "apply"
	started := time.Now()

	var err error
	if direction == models.SwipeAccept {
		err = t.remote.Apply(ctx, jobID)
	} else {
		op = "mark_not_interested"
		err = t.remote.MarkNotInterested(ctx, jobID)
	}
	metrics.RemoteMutationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.inFlight, jobID)
	if err != nil {
		// Rollback: the job stays out of processed, so NextBatch surfaces it
		// again for a retry.
		t.log.Warn("remote mutation failed, job returned to feed", map[string]interface{}{
			"jobId":     jobID,
			"direction": direction,
			"error":     err.Error(),
		})
		return
	}

	t.processed[jobID] = struct{}{}
}

// ResetForMode clears the dedup state when switching pools. NORMAL and
// RECONSIDERING_REJECTED are disjoint universes of jobs.
func (t *Tracker) ResetForMode(mode models.SwipeMode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.mode = mode
	t.processed = make(map[string]struct{})
	t.inFlight = make(map[string]struct{})
}

// Wait blocks until all dispatched mutations have reconciled. Used on session
// teardown and in tests.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
