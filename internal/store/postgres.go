// Package store persists application records. It is the single source of
// truth; session-local swipe state is a cache reconciled against it. All
// timestamp parsing happens at this boundary.
package store

import (
	"context"
	"database/sql"
	"errors"

	stderrors "gigbroker/internal/common/errors"
	"gigbroker/internal/models"

	"github.com/lib/pq"
)

// ApplicationStore is the keyed read/update interface over application records.
type ApplicationStore interface {
	Create(ctx context.Context, rec models.ApplicationRecord) error
	Get(ctx context.Context, id string) (models.ApplicationRecord, error)
	GetByJobAndWorker(ctx context.Context, jobID, workerID string) (models.ApplicationRecord, error)
	Update(ctx context.Context, rec models.ApplicationRecord) error
	ListByWorker(ctx context.Context, workerID string) ([]models.ApplicationRecord, error)
	ListByWorkerAndStatus(ctx context.Context, workerID string, status models.Status) ([]models.ApplicationRecord, error)
}

// PostgresStore implements ApplicationStore on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const applicationColumns = `
	id, job_id, worker_id, employer_id, status, applied_at, updated_at,
	work_start_time, work_end_time, completion_otp, completion_otp_expires_at,
	wage_amount_cents`

func (s *PostgresStore) Create(ctx context.Context, rec models.ApplicationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, job_id, worker_id, employer_id, status, applied_at, updated_at,
			work_start_time, work_end_time, completion_otp, completion_otp_expires_at,
			wage_amount_cents
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID,
		rec.JobID,
		rec.WorkerID,
		rec.EmployerID,
		string(rec.Status),
		rec.AppliedAt,
		rec.UpdatedAt,
		nullTime(workStart(rec)),
		nullTime(workEnd(rec)),
		nullString(completionOtp(rec)),
		nullTime(completionOtpExpiry(rec)),
		rec.WageAmountCents,
	)
	if err != nil {
		// The unique index on (job_id, worker_id) makes duplicate applications
		// structurally impossible; a violation means another session won.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return stderrors.NewAlreadyProcessedError(rec.JobID)
		}
		return stderrors.NewRemoteFailureError("create application", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.ApplicationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+applicationColumns+`
		FROM applications WHERE id = $1`, id)
	rec, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ApplicationRecord{}, stderrors.NewRecordNotFoundError(id)
		}
		return models.ApplicationRecord{}, stderrors.NewRemoteFailureError("get application", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetByJobAndWorker(ctx context.Context, jobID, workerID string) (models.ApplicationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+applicationColumns+`
		FROM applications WHERE job_id = $1 AND worker_id = $2`, jobID, workerID)
	rec, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ApplicationRecord{}, stderrors.NewRecordNotFoundError(jobID + "/" + workerID)
		}
		return models.ApplicationRecord{}, stderrors.NewRemoteFailureError("get application by job", err)
	}
	return rec, nil
}

func (s *PostgresStore) Update(ctx context.Context, rec models.ApplicationRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications SET
			status = $2, applied_at = $3, updated_at = $4,
			work_start_time = $5, work_end_time = $6,
			completion_otp = $7, completion_otp_expires_at = $8,
			wage_amount_cents = $9
		WHERE id = $1`,
		rec.ID,
		string(rec.Status),
		rec.AppliedAt,
		rec.UpdatedAt,
		nullTime(workStart(rec)),
		nullTime(workEnd(rec)),
		nullString(completionOtp(rec)),
		nullTime(completionOtpExpiry(rec)),
		rec.WageAmountCents,
	)
	if err != nil {
		return stderrors.NewRemoteFailureError("update application", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return stderrors.NewRecordNotFoundError(rec.ID)
	}
	return nil
}

func (s *PostgresStore) ListByWorker(ctx context.Context, workerID string) ([]models.ApplicationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+applicationColumns+`
		FROM applications
		WHERE worker_id = $1
		ORDER BY updated_at DESC`, workerID)
	if err != nil {
		return nil, stderrors.NewRemoteFailureError("list applications", err)
	}
	defer rows.Close()
	return collectApplications(rows)
}

func (s *PostgresStore) ListByWorkerAndStatus(ctx context.Context, workerID string, status models.Status) ([]models.ApplicationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+applicationColumns+`
		FROM applications
		WHERE worker_id = $1 AND status = $2
		ORDER BY updated_at DESC`, workerID, string(status))
	if err != nil {
		return nil, stderrors.NewRemoteFailureError("list applications", err)
	}
	defer rows.Close()
	return collectApplications(rows)
}

func collectApplications(rows *sql.Rows) ([]models.ApplicationRecord, error) {
	var out []models.ApplicationRecord
	for rows.Next() {
		rec, err := scanApplication(rows)
		if err != nil {
			return nil, stderrors.NewRemoteFailureError("scan application", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewRemoteFailureError("list applications", err)
	}
	return out, nil
}
