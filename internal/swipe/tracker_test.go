package swipe

import (
	"context"
	"errors"
	"sync"
	"testing"

	stderrors "gigbroker/internal/common/errors"
	"gigbroker/internal/common/logger"
	"gigbroker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// fakeRemote records mutation calls and fails on demand.
type fakeRemote struct {
	mu             sync.Mutex
	applied        []string
	notInterested  []string
	failNext       map[string]error
	blockUntilOpen chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{failNext: make(map[string]error)}
}

func (r *fakeRemote) maybeBlock() {
	if r.blockUntilOpen != nil {
		<-r.blockUntilOpen
	}
}

func (r *fakeRemote) Apply(_ context.Context, jobID string) error {
	r.maybeBlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failNext[jobID]; ok {
		delete(r.failNext, jobID)
		return err
	}
	r.applied = append(r.applied, jobID)
	return nil
}

func (r *fakeRemote) MarkNotInterested(_ context.Context, jobID string) error {
	r.maybeBlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failNext[jobID]; ok {
		delete(r.failNext, jobID)
		return err
	}
	r.notInterested = append(r.notInterested, jobID)
	return nil
}

func (r *fakeRemote) appliedJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.applied...)
}

func (r *fakeRemote) notInterestedJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notInterested...)
}

func jobs(ids ...string) []models.Job {
	out := make([]models.Job, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Job{ID: id, Status: models.JobStatusOpen})
	}
	return out
}

func jobIDs(in []models.Job) []string {
	out := make([]string, 0, len(in))
	for _, j := range in {
		out = append(out, j.ID)
	}
	return out
}

func newTestTracker(remote Remote) *Tracker {
	return NewTracker("worker-001", models.ModeNormal, remote, logger.NewNoOpLogger())
}

// ==========================
// Swipe Dispatch
// ==========================

func TestOnSwipe_AcceptDispatchesApply(t *testing.T) {
	remote := newFakeRemote()
	tracker := newTestTracker(remote)

	outcome, err := tracker.OnSwipe("job-001", models.SwipeAccept)
	tracker.Wait()

	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, outcome)
	assert.Equal(t, []string{"job-001"}, remote.appliedJobs())
	assert.Empty(t, remote.notInterestedJobs())
}

func TestOnSwipe_RejectDispatchesNotInterested(t *testing.T) {
	remote := newFakeRemote()
	tracker := newTestTracker(remote)

	outcome, err := tracker.OnSwipe("job-001", models.SwipeReject)
	tracker.Wait()

	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, outcome)
	assert.Equal(t, []string{"job-001"}, remote.notInterestedJobs())
}

func TestOnSwipe_SecondSwipeIsNoOp(t *testing.T) {
	remote := newFakeRemote()
	tracker := newTestTracker(remote)

	_, err := tracker.OnSwipe("job-001", models.SwipeAccept)
	require.NoError(t, err)
	tracker.Wait()

	outcome, err := tracker.OnSwipe("job-001", models.SwipeAccept)

	require.Error(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, outcome)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeAlreadyProcessed))
	// Exactly one remote mutation for the job.
	assert.Equal(t, []string{"job-001"}, remote.appliedJobs())
}

func TestOnSwipe_OppositeDirectionAfterProcessedStillNoOp(t *testing.T) {
	remote := newFakeRemote()
	tracker := newTestTracker(remote)

	_, err := tracker.OnSwipe("job-001", models.SwipeAccept)
	require.NoError(t, err)
	tracker.Wait()

	outcome, err := tracker.OnSwipe("job-001", models.SwipeReject)

	assert.Equal(t, OutcomeAlreadyProcessed, outcome)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeAlreadyProcessed))
	assert.Empty(t, remote.notInterestedJobs())
}

func TestOnSwipe_CoalescesWhileInFlight(t *testing.T) {
	remote := newFakeRemote()
	remote.blockUntilOpen = make(chan struct{})
	tracker := newTestTracker(remote)

	first, err := tracker.OnSwipe("job-001", models.SwipeAccept)
	require.NoError(t, err)
	require.Equal(t, OutcomeDispatched, first)

	second, err := tracker.OnSwipe("job-001", models.SwipeAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCoalesced, second)

	close(remote.blockUntilOpen)
	tracker.Wait()

	assert.Equal(t, []string{"job-001"}, remote.appliedJobs())
}

// ==========================
// Rollback
// ==========================

func TestOnSwipe_FailedDispatchRollsBack(t *testing.T) {
	remote := newFakeRemote()
	remote.failNext["job-001"] = errors.New("store unavailable")
	tracker := newTestTracker(remote)

	outcome, err := tracker.OnSwipe("job-001", models.SwipeAccept)
	require.NoError(t, err)
	require.Equal(t, OutcomeDispatched, outcome)
	tracker.Wait()

	// The job reappears in the feed for a retry.
	batch := tracker.NextBatch(jobs("job-001", "job-002"))
	assert.Equal(t, []string{"job-001", "job-002"}, jobIDs(batch))

	// The retry is a fresh dispatch and succeeds this time.
	outcome, err = tracker.OnSwipe("job-001", models.SwipeAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, outcome)
	tracker.Wait()
	assert.Equal(t, []string{"job-001"}, remote.appliedJobs())
}

// ==========================
// Feed Projection
// ==========================

func TestNextBatch_HidesProcessedAndInFlight(t *testing.T) {
	remote := newFakeRemote()
	tracker := newTestTracker(remote)

	_, err := tracker.OnSwipe("job-002", models.SwipeAccept)
	require.NoError(t, err)
	tracker.Wait()

	remote.blockUntilOpen = make(chan struct{})
	_, err = tracker.OnSwipe("job-003", models.SwipeReject)
	require.NoError(t, err)

	batch := tracker.NextBatch(jobs("job-001", "job-002", "job-003", "job-004"))

	assert.Equal(t, []string{"job-001", "job-004"}, jobIDs(batch))

	close(remote.blockUntilOpen)
	tracker.Wait()
}

func TestNextBatch_PreservesOrder(t *testing.T) {
	tracker := newTestTracker(newFakeRemote())

	batch := tracker.NextBatch(jobs("job-003", "job-001", "job-002"))

	assert.Equal(t, []string{"job-003", "job-001", "job-002"}, jobIDs(batch))
}

func TestNextBatch_InFlightGoneImmediately(t *testing.T) {
	remote := newFakeRemote()
	remote.blockUntilOpen = make(chan struct{})
	tracker := newTestTracker(remote)

	_, err := tracker.OnSwipe("job-001", models.SwipeAccept)
	require.NoError(t, err)

	// Mutation has not completed yet, card is already hidden.
	batch := tracker.NextBatch(jobs("job-001", "job-002"))
	assert.Equal(t, []string{"job-002"}, jobIDs(batch))

	close(remote.blockUntilOpen)
	tracker.Wait()
}

// ==========================
// Mode Switching
// ==========================

func TestResetForMode_ClearsDedupState(t *testing.T) {
	remote := newFakeRemote()
	tracker := newTestTracker(remote)

	_, err := tracker.OnSwipe("job-001", models.SwipeReject)
	require.NoError(t, err)
	tracker.Wait()

	tracker.ResetForMode(models.ModeReconsideringRejected)

	assert.Equal(t, models.ModeReconsideringRejected, tracker.Mode())
	// The rejected job is swipeable again in the new pool.
	batch := tracker.NextBatch(jobs("job-001"))
	assert.Equal(t, []string{"job-001"}, jobIDs(batch))

	outcome, err := tracker.OnSwipe("job-001", models.SwipeAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, outcome)
	tracker.Wait()
}
