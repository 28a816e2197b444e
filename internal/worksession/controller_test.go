package worksession

import (
	"context"
	"testing"
	"time"

	stderrors "gigbroker/internal/common/errors"
	"gigbroker/internal/common/logger"
	"gigbroker/internal/models"
	"gigbroker/internal/notify"
	"gigbroker/internal/otp"
	"gigbroker/internal/wage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory ApplicationStore.
type memStore struct {
	recs map[string]models.ApplicationRecord
}

func newMemStore(recs ...models.ApplicationRecord) *memStore {
	s := &memStore{recs: make(map[string]models.ApplicationRecord)}
	for _, r := range recs {
		s.recs[r.ID] = r
	}
	return s
}

func (s *memStore) Create(_ context.Context, rec models.ApplicationRecord) error {
	s.recs[rec.ID] = rec.Clone()
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (models.ApplicationRecord, error) {
	rec, ok := s.recs[id]
	if !ok {
		return models.ApplicationRecord{}, stderrors.NewRecordNotFoundError(id)
	}
	return rec.Clone(), nil
}

func (s *memStore) GetByJobAndWorker(_ context.Context, jobID, workerID string) (models.ApplicationRecord, error) {
	for _, rec := range s.recs {
		if rec.JobID == jobID && rec.WorkerID == workerID {
			return rec.Clone(), nil
		}
	}
	return models.ApplicationRecord{}, stderrors.NewRecordNotFoundError(jobID + "/" + workerID)
}

func (s *memStore) Update(_ context.Context, rec models.ApplicationRecord) error {
	if _, ok := s.recs[rec.ID]; !ok {
		return stderrors.NewRecordNotFoundError(rec.ID)
	}
	s.recs[rec.ID] = rec.Clone()
	return nil
}

func (s *memStore) ListByWorker(_ context.Context, workerID string) ([]models.ApplicationRecord, error) {
	var out []models.ApplicationRecord
	for _, rec := range s.recs {
		if rec.WorkerID == workerID {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *memStore) ListByWorkerAndStatus(_ context.Context, workerID string, status models.Status) ([]models.ApplicationRecord, error) {
	var out []models.ApplicationRecord
	for _, rec := range s.recs {
		if rec.WorkerID == workerID && rec.Status == status {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// memChallenges is an in-memory ChallengeStore.
type memChallenges struct {
	chs map[string]models.OtpChallenge
}

func newMemChallenges() *memChallenges {
	return &memChallenges{chs: make(map[string]models.OtpChallenge)}
}

func (s *memChallenges) Put(_ context.Context, ch models.OtpChallenge) error {
	s.chs[ch.SubjectApplicationID] = ch
	return nil
}

func (s *memChallenges) Get(_ context.Context, subjectID string) (models.OtpChallenge, error) {
	ch, ok := s.chs[subjectID]
	if !ok {
		return models.OtpChallenge{}, otp.ErrChallengeNotFound
	}
	return ch, nil
}

func (s *memChallenges) Delete(_ context.Context, subjectID string) error {
	delete(s.chs, subjectID)
	return nil
}

// fakeJobs resolves a fixed job set.
type fakeJobs struct {
	jobs map[string]models.Job
	err  error
}

func (f *fakeJobs) GetJob(_ context.Context, jobID string) (models.Job, error) {
	if f.err != nil {
		return models.Job{}, f.err
	}
	job, ok := f.jobs[jobID]
	if !ok {
		return models.Job{}, stderrors.NewRecordNotFoundError(jobID)
	}
	return job, nil
}

type fixture struct {
	controller *Controller
	store      *memStore
	challenges *memChallenges
	jobs       *fakeJobs
	events     <-chan notify.StateChange
	now        time.Time
}

func setup(t *testing.T, recs ...models.ApplicationRecord) *fixture {
	t.Helper()

	f := &fixture{
		store:      newMemStore(recs...),
		challenges: newMemChallenges(),
		jobs: &fakeJobs{jobs: map[string]models.Job{
			"job-001": {ID: "job-001", EmployerID: "employer-001", HourlyRateCents: 1800, Status: models.JobStatusOpen},
		}},
		now: testNow,
	}

	pub := notify.NewPublisher(logger.NewNoOpLogger())
	events, cancel := pub.Subscribe(16)
	t.Cleanup(cancel)
	f.events = events

	f.controller = NewController(
		f.store,
		f.challenges,
		otp.NewGenerator(6, 30*time.Minute),
		f.jobs,
		wage.NewHourlyCalculator(0),
		pub,
		func() time.Time { return f.now },
		logger.NewNoOpLogger(),
	)
	return f
}

func acceptedRecord() models.ApplicationRecord {
	return models.ApplicationRecord{
		ID:         "app-001",
		JobID:      "job-001",
		WorkerID:   "worker-001",
		EmployerID: "employer-001",
		Status:     models.StatusAccepted,
		AppliedAt:  testNow.Add(-48 * time.Hour),
		UpdatedAt:  testNow.Add(-24 * time.Hour),
	}
}

func (f *fixture) drainEvents() []notify.StateChange {
	var out []notify.StateChange
	for {
		select {
		case ev := <-f.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// ==========================
// Start OTP Flow
// ==========================

func TestRequestStartOtp(t *testing.T) {
	f := setup(t, acceptedRecord())

	ch, err := f.controller.RequestStartOtp(context.Background(), "app-001")

	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, ch.Code)
	assert.Equal(t, testNow.Add(30*time.Minute), ch.ExpiresAt)

	stored, err := f.challenges.Get(context.Background(), "app-001")
	require.NoError(t, err)
	assert.Equal(t, ch.Code, stored.Code)
}

func TestRequestStartOtp_WrongStatus(t *testing.T) {
	rec := acceptedRecord()
	rec.Status = models.StatusApplied
	f := setup(t, rec)

	_, err := f.controller.RequestStartOtp(context.Background(), "app-001")

	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeInvalidTransition))
}

func TestRequestStartOtp_SupersedesPrior(t *testing.T) {
	f := setup(t, acceptedRecord())
	ctx := context.Background()

	first, err := f.controller.RequestStartOtp(ctx, "app-001")
	require.NoError(t, err)
	second, err := f.controller.RequestStartOtp(ctx, "app-001")
	require.NoError(t, err)

	// Only the latest issued code passes verification.
	if first.Code != second.Code {
		_, err = f.controller.SubmitStartOtp(ctx, "app-001", first.Code)
		require.Error(t, err)
		assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeOtpMismatch))
	}

	rec, err := f.controller.SubmitStartOtp(ctx, "app-001", second.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWorkInProgress, rec.Status)
}

func TestSubmitStartOtp(t *testing.T) {
	f := setup(t, acceptedRecord())
	ctx := context.Background()

	ch, err := f.controller.RequestStartOtp(ctx, "app-001")
	require.NoError(t, err)

	rec, err := f.controller.SubmitStartOtp(ctx, "app-001", ch.Code)

	require.NoError(t, err)
	assert.Equal(t, models.StatusWorkInProgress, rec.Status)
	require.NotNil(t, rec.WorkSession)
	assert.Equal(t, testNow, rec.WorkSession.WorkStartTime)

	// Challenge is consumed.
	_, err = f.challenges.Get(ctx, "app-001")
	assert.ErrorIs(t, err, otp.ErrChallengeNotFound)

	events := f.drainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.StatusAccepted, events[0].From)
	assert.Equal(t, models.StatusWorkInProgress, events[0].To)
}

func TestSubmitStartOtp_WrongCode(t *testing.T) {
	f := setup(t, acceptedRecord())
	ctx := context.Background()

	ch, err := f.controller.RequestStartOtp(ctx, "app-001")
	require.NoError(t, err)

	wrong := "000000"
	if ch.Code == wrong {
		wrong = "000001"
	}
	_, err = f.controller.SubmitStartOtp(ctx, "app-001", wrong)

	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeOtpMismatch))

	// Record untouched, challenge still live for a retry.
	rec, err := f.store.Get(ctx, "app-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, rec.Status)

	got, err := f.controller.SubmitStartOtp(ctx, "app-001", ch.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWorkInProgress, got.Status)
}

func TestSubmitStartOtp_Expired(t *testing.T) {
	f := setup(t, acceptedRecord())
	ctx := context.Background()

	ch, err := f.controller.RequestStartOtp(ctx, "app-001")
	require.NoError(t, err)

	f.now = testNow.Add(31 * time.Minute)
	_, err = f.controller.SubmitStartOtp(ctx, "app-001", ch.Code)

	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeOtpExpired))
}

func TestSubmitStartOtp_NoChallengeIssued(t *testing.T) {
	f := setup(t, acceptedRecord())

	_, err := f.controller.SubmitStartOtp(context.Background(), "app-001", "482913")

	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeOtpExpired))
}

func TestSubmitStartOtp_AfterWorkStarted(t *testing.T) {
	f := setup(t, acceptedRecord())
	ctx := context.Background()

	ch, err := f.controller.RequestStartOtp(ctx, "app-001")
	require.NoError(t, err)
	_, err = f.controller.SubmitStartOtp(ctx, "app-001", ch.Code)
	require.NoError(t, err)

	// The status guard fires before any code check.
	_, err = f.controller.SubmitStartOtp(ctx, "app-001", ch.Code)

	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeInvalidTransition))
}

// ==========================
// Completion Flow
// ==========================

func startedRecord() models.ApplicationRecord {
	rec := acceptedRecord()
	rec.Status = models.StatusWorkInProgress
	rec.WorkSession = &models.WorkSession{
		WorkStartTime: testNow.Add(-4 * time.Hour),
	}
	return rec
}

func TestInitiateCompletion(t *testing.T) {
	f := setup(t, startedRecord())

	rec, err := f.controller.InitiateCompletion(context.Background(), "app-001")

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompletionPending, rec.Status)
	assert.Equal(t, testNow, rec.WorkSession.WorkEndTime)
	assert.Regexp(t, `^[0-9]{6}$`, rec.WorkSession.CompletionOtp)
	assert.Equal(t, testNow.Add(30*time.Minute), rec.WorkSession.CompletionOtpExpiresAt)

	events := f.drainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.StatusCompletionPending, events[0].To)
}

func TestInitiateCompletion_RegenerateKeepsEndTime(t *testing.T) {
	f := setup(t, startedRecord())
	ctx := context.Background()

	first, err := f.controller.InitiateCompletion(ctx, "app-001")
	require.NoError(t, err)
	f.drainEvents()

	f.now = testNow.Add(40 * time.Minute)
	second, err := f.controller.InitiateCompletion(ctx, "app-001")

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompletionPending, second.Status)
	// The work window is fixed; only the passcode and its expiry move.
	assert.Equal(t, first.WorkSession.WorkEndTime, second.WorkSession.WorkEndTime)
	assert.Equal(t, f.now.Add(30*time.Minute), second.WorkSession.CompletionOtpExpiresAt)

	// Regeneration is not a state change, so no event is published.
	assert.Empty(t, f.drainEvents())
}

func TestInitiateCompletion_WrongStatus(t *testing.T) {
	f := setup(t, acceptedRecord())

	_, err := f.controller.InitiateCompletion(context.Background(), "app-001")

	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeInvalidTransition))
}

func TestConfirmCompletion(t *testing.T) {
	f := setup(t, startedRecord())
	ctx := context.Background()

	pending, err := f.controller.InitiateCompletion(ctx, "app-001")
	require.NoError(t, err)
	f.drainEvents()

	done, err := f.controller.ConfirmCompletion(ctx, "app-001", pending.WorkSession.CompletionOtp)

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.Empty(t, done.WorkSession.CompletionOtp)
	// 4 hours at 18.00/hr.
	assert.Equal(t, int64(7200), done.WageAmountCents)

	events := f.drainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.StatusCompleted, events[0].To)

	// Persisted state matches.
	stored, err := f.store.Get(ctx, "app-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, int64(7200), stored.WageAmountCents)
}

func TestConfirmCompletion_WrongCode(t *testing.T) {
	f := setup(t, startedRecord())
	ctx := context.Background()

	pending, err := f.controller.InitiateCompletion(ctx, "app-001")
	require.NoError(t, err)

	wrong := "000000"
	if pending.WorkSession.CompletionOtp == wrong {
		wrong = "000001"
	}
	_, err = f.controller.ConfirmCompletion(ctx, "app-001", wrong)

	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeOtpMismatch))

	stored, err := f.store.Get(ctx, "app-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompletionPending, stored.Status)
}

func TestConfirmCompletion_ExpiredThenRegenerate(t *testing.T) {
	f := setup(t, startedRecord())
	ctx := context.Background()

	pending, err := f.controller.InitiateCompletion(ctx, "app-001")
	require.NoError(t, err)
	staleCode := pending.WorkSession.CompletionOtp

	// The code expires before the employer types it in.
	f.now = testNow.Add(31 * time.Minute)
	_, err = f.controller.ConfirmCompletion(ctx, "app-001", staleCode)
	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeOtpExpired))

	// Regenerate and confirm with the fresh code.
	fresh, err := f.controller.InitiateCompletion(ctx, "app-001")
	require.NoError(t, err)

	done, err := f.controller.ConfirmCompletion(ctx, "app-001", fresh.WorkSession.CompletionOtp)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	// Wage still covers the original window, not the regeneration delay.
	assert.Equal(t, int64(7200), done.WageAmountCents)
}

func TestConfirmCompletion_WrongStatus(t *testing.T) {
	f := setup(t, startedRecord())

	_, err := f.controller.ConfirmCompletion(context.Background(), "app-001", "482913")

	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeInvalidTransition))
}

func TestConfirmCompletion_JobLookupFailureSkipsWage(t *testing.T) {
	f := setup(t, startedRecord())
	ctx := context.Background()

	pending, err := f.controller.InitiateCompletion(ctx, "app-001")
	require.NoError(t, err)

	f.jobs.err = stderrors.NewRemoteFailureError("get job", assert.AnError)
	done, err := f.controller.ConfirmCompletion(ctx, "app-001", pending.WorkSession.CompletionOtp)

	// Completion goes through; only the display amount is missing.
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.Zero(t, done.WageAmountCents)
}

func TestRequestStartOtp_RecordMissing(t *testing.T) {
	f := setup(t)

	_, err := f.controller.RequestStartOtp(context.Background(), "app-missing")

	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeRecordNotFound))
}
