package sched

import (
	"database/sql"
	"encoding/json"

	"github.com/HollandsP/Evergreen-sub003/errors"
	"github.com/HollandsP/Evergreen-sub003/fingerprint"
)

// jobScanArgs holds the nullable intermediates needed when scanning a job row.
type jobScanArgs struct {
	RequestJSON      string
	DependenciesJSON sql.NullString
	Response         sql.NullString
	ErrorMsg         sql.NullString
	BlockedBy        sql.NullString
	NextAttemptAt    sql.NullTime
	StartedAt        sql.NullTime
	CompletedAt      sql.NullTime
}

// jobScanTargets returns scan destinations for the job and its scan args,
// in the order of standardJobColumns.
func jobScanTargets(job *Job, args *jobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.Kind,
		&job.Priority,
		&args.RequestJSON,
		&args.DependenciesJSON,
		&job.State,
		&job.Attempt,
		&job.MaxRetries,
		&job.CostEstimate,
		&job.CostActual,
		&job.MemoryMB,
		&args.Response,
		&job.CacheHit,
		&args.ErrorMsg,
		&args.BlockedBy,
		&args.NextAttemptAt,
		&job.CreatedAt,
		&args.StartedAt,
		&args.CompletedAt,
		&job.UpdatedAt,
	}
}

// processJobScanArgs converts the scanned intermediates into job fields.
func processJobScanArgs(job *Job, args *jobScanArgs) error {
	if err := json.Unmarshal([]byte(args.RequestJSON), &job.Request); err != nil {
		return errors.Wrapf(err, "failed to unmarshal request for job %s", job.ID)
	}
	if args.DependenciesJSON.Valid && args.DependenciesJSON.String != "" {
		if err := json.Unmarshal([]byte(args.DependenciesJSON.String), &job.Dependencies); err != nil {
			return errors.Wrapf(err, "failed to unmarshal dependencies for job %s", job.ID)
		}
	}
	if args.Response.Valid {
		job.Response = args.Response.String
	}
	if args.ErrorMsg.Valid {
		job.Error = args.ErrorMsg.String
	}
	if args.BlockedBy.Valid {
		job.BlockedBy = args.BlockedBy.String
	}
	if args.NextAttemptAt.Valid {
		job.NextAttemptAt = &args.NextAttemptAt.Time
	}
	if args.StartedAt.Valid {
		job.StartedAt = &args.StartedAt.Time
	}
	if args.CompletedAt.Valid {
		job.CompletedAt = &args.CompletedAt.Time
	}
	return nil
}

// scanJobFromRows scans a single job from sql.Rows (for use in loops).
func scanJobFromRows(rows *sql.Rows, job *Job) error {
	args := &jobScanArgs{}
	targets := jobScanTargets(job, args)

	if err := rows.Scan(targets...); err != nil {
		return err
	}

	return processJobScanArgs(job, args)
}

// standardJobColumns is the column list for job SELECT queries, matching the
// order expected by jobScanTargets.
func standardJobColumns() string {
	return `id, kind, priority, request, dependencies, state,
		attempt, max_retries,
		cost_estimate, cost_actual, memory_mb,
		response, cache_hit, error, blocked_by, next_attempt_at,
		created_at, started_at, completed_at, updated_at`
}

// marshalRequest serializes the canonical request payload for storage.
func marshalRequest(req fingerprint.Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}
	return string(data), nil
}

// marshalDependencies serializes the dependency list, empty as NULL.
func marshalDependencies(deps []string) (sql.NullString, error) {
	if len(deps) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(deps)
	if err != nil {
		return sql.NullString{}, errors.Wrap(err, "failed to marshal dependencies")
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
