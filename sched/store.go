package sched

import (
	"database/sql"
	"time"

	"github.com/HollandsP/Evergreen-sub003/errors"
)

// Schema is the DDL for the job table. InitSchema applies it idempotently.
const Schema = `
CREATE TABLE IF NOT EXISTS generation_jobs (
	id              TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	priority        INTEGER NOT NULL,
	request         TEXT NOT NULL,
	dependencies    TEXT,
	state           TEXT NOT NULL,
	attempt         INTEGER NOT NULL DEFAULT 0,
	max_retries     INTEGER NOT NULL DEFAULT 0,
	cost_estimate   REAL NOT NULL DEFAULT 0,
	cost_actual     REAL NOT NULL DEFAULT 0,
	memory_mb       INTEGER NOT NULL DEFAULT 0,
	response        TEXT,
	cache_hit       BOOLEAN NOT NULL DEFAULT 0,
	error           TEXT,
	blocked_by      TEXT,
	next_attempt_at TIMESTAMP,
	created_at      TIMESTAMP NOT NULL,
	started_at      TIMESTAMP,
	completed_at    TIMESTAMP,
	updated_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_generation_jobs_state
	ON generation_jobs(state);
CREATE INDEX IF NOT EXISTS idx_generation_jobs_dispatch
	ON generation_jobs(state, priority, created_at);
`

// InitSchema creates the job table and indexes if they do not exist.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return errors.Wrap(err, "failed to initialize job schema")
	}
	return nil
}

// Store handles persistence of generation jobs
type Store struct {
	db *sql.DB
}

// NewStore creates a new job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new job into the database
func (s *Store) CreateJob(job *Job) error {
	requestJSON, err := marshalRequest(job.Request)
	if err != nil {
		return err
	}
	depsJSON, err := marshalDependencies(job.Dependencies)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO generation_jobs (
			id, kind, priority, request, dependencies, state,
			attempt, max_retries,
			cost_estimate, cost_actual, memory_mb,
			response, cache_hit, error, blocked_by, next_attempt_at,
			created_at, started_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	response := sql.NullString{String: job.Response, Valid: job.Response != ""}
	errMsg := sql.NullString{String: job.Error, Valid: job.Error != ""}
	blockedBy := sql.NullString{String: job.BlockedBy, Valid: job.BlockedBy != ""}

	_, err = s.db.Exec(query,
		job.ID,
		job.Kind,
		job.Priority,
		requestJSON,
		depsJSON,
		job.State,
		job.Attempt,
		job.MaxRetries,
		job.CostEstimate,
		job.CostActual,
		job.MemoryMB,
		response,
		job.CacheHit,
		errMsg,
		blockedBy,
		job.NextAttemptAt,
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create job")
	}

	return nil
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(id string) (*Job, error) {
	query := `SELECT ` + standardJobColumns() + ` FROM generation_jobs WHERE id = ?`

	var job Job
	args := &jobScanArgs{}
	targets := jobScanTargets(&job, args)

	err := s.db.QueryRow(query, id).Scan(targets...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Newf("job not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}

	if err := processJobScanArgs(&job, args); err != nil {
		return nil, err
	}

	return &job, nil
}

// UpdateJob updates an existing job in the database
func (s *Store) UpdateJob(job *Job) error {
	query := `
		UPDATE generation_jobs
		SET state = ?,
		    attempt = ?,
		    cost_actual = ?,
		    response = ?,
		    cache_hit = ?,
		    error = ?,
		    blocked_by = ?,
		    next_attempt_at = ?,
		    started_at = ?,
		    completed_at = ?,
		    updated_at = ?
		WHERE id = ?
	`

	response := sql.NullString{String: job.Response, Valid: job.Response != ""}
	errMsg := sql.NullString{String: job.Error, Valid: job.Error != ""}
	blockedBy := sql.NullString{String: job.BlockedBy, Valid: job.BlockedBy != ""}

	result, err := s.db.Exec(query,
		job.State,
		job.Attempt,
		job.CostActual,
		response,
		job.CacheHit,
		errMsg,
		blockedBy,
		job.NextAttemptAt,
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update job")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Newf("job not found: %s", job.ID)
	}

	return nil
}

// ListJobs returns jobs, optionally filtered by state, newest first.
func (s *Store) ListJobs(state *State, limit int) ([]*Job, error) {
	var query string
	var args []interface{}

	baseQuery := `SELECT ` + standardJobColumns() + ` FROM generation_jobs`
	if state != nil {
		query = baseQuery + ` WHERE state = ? ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{*state, limit}
	} else {
		query = baseQuery + ` ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "jobs")
}

// ListActiveJobs returns all jobs that have not reached a terminal state.
func (s *Store) ListActiveJobs() ([]*Job, error) {
	query := `SELECT ` + standardJobColumns() + `
		FROM generation_jobs
		WHERE state IN ('pending', 'ready', 'running')
		ORDER BY created_at ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "active jobs")
}

// ListByState returns all jobs in the given state, oldest first.
func (s *Store) ListByState(state State) ([]*Job, error) {
	query := `SELECT ` + standardJobColumns() + `
		FROM generation_jobs
		WHERE state = ?
		ORDER BY created_at ASC`

	rows, err := s.db.Query(query, state)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s jobs", state)
	}
	defer rows.Close()

	return scanJobs(rows, string(state)+" jobs")
}

// NextReadyJobs returns up to limit dispatchable jobs: ready state with any
// retry backoff elapsed, ordered by priority then submission time.
func (s *Store) NextReadyJobs(now time.Time, limit int) ([]*Job, error) {
	query := `SELECT ` + standardJobColumns() + `
		FROM generation_jobs
		WHERE state = 'ready'
		  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY priority ASC, created_at ASC
		LIMIT ?`

	rows, err := s.db.Query(query, now, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ready jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "ready jobs")
}

// ListDependents returns all non-terminal jobs that name the given job as a
// direct dependency. SQLite has no JSON index here, so this scans active rows;
// the active set is small by construction.
func (s *Store) ListDependents(jobID string) ([]*Job, error) {
	active, err := s.ListActiveJobs()
	if err != nil {
		return nil, err
	}

	var dependents []*Job
	for _, job := range active {
		for _, dep := range job.Dependencies {
			if dep == jobID {
				dependents = append(dependents, job)
				break
			}
		}
	}
	return dependents, nil
}

// scanJobs is a helper that scans multiple jobs from query rows
func scanJobs(rows *sql.Rows, context string) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var job Job
		if err := scanJobFromRows(rows, &job); err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", context)
	}

	return jobs, nil
}

// CancelJob marks a job as cancelled with a reason and persists it. Meant
// for out-of-process tooling; the scheduler's promotion pass fails dependents
// of cancelled jobs the next time it runs.
func (s *Store) CancelJob(job *Job, reason string) error {
	job.cancel(reason, time.Now())
	return s.UpdateJob(job)
}

// DeleteJob removes a job from the database
func (s *Store) DeleteJob(id string) error {
	query := `DELETE FROM generation_jobs WHERE id = ?`

	result, err := s.db.Exec(query, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete job")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}

	if rows == 0 {
		return errors.Newf("job not found: %s", id)
	}

	return nil
}

// CleanupOldJobs removes terminal jobs older than the specified duration.
func (s *Store) CleanupOldJobs(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	query := `
		DELETE FROM generation_jobs
		WHERE state IN ('completed', 'failed', 'cancelled')
		  AND updated_at < ?
	`

	result, err := s.db.Exec(query, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old jobs")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return int(rows), nil
}

// CountByState returns job counts per state.
func (s *Store) CountByState() (map[State]int, error) {
	rows, err := s.db.Query(`SELECT state, COUNT(*) FROM generation_jobs GROUP BY state`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count jobs by state")
	}
	defer rows.Close()

	counts := make(map[State]int)
	for rows.Next() {
		var state State
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan job count")
		}
		counts[state] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating job counts")
	}

	return counts, nil
}
