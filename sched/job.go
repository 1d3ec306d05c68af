// Package sched provides the Evergreen job scheduler: a bounded, cost-aware,
// dependency-ordered execution stream in front of generation providers.
package sched

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/HollandsP/Evergreen-sub003/errors"
	"github.com/HollandsP/Evergreen-sub003/fingerprint"
)

// Kind identifies the generation medium a job produces.
// The set is open: providers register for kinds by name.
type Kind string

const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Priority orders jobs for dispatch. Lower values dispatch first.
type Priority int

const (
	PriorityUrgent Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// ParsePriority converts a priority name to its value.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "urgent":
		return PriorityUrgent, nil
	case "high":
		return PriorityHigh, nil
	case "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return 0, errors.Newf("invalid priority: %q", s)
	}
}

// State represents the current state of a job.
type State string

const (
	StatePending   State = "pending"
	StateReady     State = "ready"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether no further transitions can occur.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// IsValidState returns true if the string is a valid job State
func IsValidState(s string) bool {
	switch State(s) {
	case StatePending, StateReady, StateRunning,
		StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Job is a unit of generation work.
//
// State transitions are monotonic except failed-retryable requeues
// (running -> pending with attempt incremented). The scheduler exclusively
// owns all transitions; no other component mutates a Job.
type Job struct {
	ID           string              `json:"id"`
	Kind         Kind                `json:"kind"`
	Priority     Priority            `json:"priority"`
	Request      fingerprint.Request `json:"request"`
	Dependencies []string            `json:"dependencies,omitempty"`
	State        State               `json:"state"`

	Attempt    int `json:"attempt"`
	MaxRetries int `json:"max_retries"`

	CostEstimate float64 `json:"cost_estimate"`
	CostActual   float64 `json:"cost_actual"`
	MemoryMB     int     `json:"memory_mb,omitempty"` // estimated working memory while running

	Response string `json:"response,omitempty"` // opaque output reference on completion
	CacheHit bool   `json:"cache_hit,omitempty"`
	Error    string `json:"error,omitempty"`
	// BlockedBy references the root-cause job when this job failed because
	// a dependency failed or was cancelled.
	BlockedBy string `json:"blocked_by,omitempty"`

	// NextAttemptAt gates re-dispatch after a retryable failure (backoff).
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// runCtx governs the in-flight provider call. Set when the scheduler
	// claims the job, never persisted.
	runCtx context.Context
}

// SubmitRequest describes a job to submit.
type SubmitRequest struct {
	Kind         Kind
	Priority     Priority
	Request      fingerprint.Request
	Dependencies []string
	// MaxRetries overrides the scheduler's configured ceiling when > 0.
	MaxRetries   int
	CostEstimate float64
	MemoryMB     int
}

// newJob builds a Job from a submit request. Jobs with no dependencies start
// ready; the rest start pending until every dependency completes.
func newJob(req SubmitRequest, maxRetries int, now time.Time) *Job {
	state := StateReady
	if len(req.Dependencies) > 0 {
		state = StatePending
	}
	if req.MaxRetries > 0 {
		maxRetries = req.MaxRetries
	}
	return &Job{
		ID:           uuid.NewString(),
		Kind:         req.Kind,
		Priority:     req.Priority,
		Request:      req.Request,
		Dependencies: append([]string(nil), req.Dependencies...),
		State:        state,
		MaxRetries:   maxRetries,
		CostEstimate: req.CostEstimate,
		MemoryMB:     req.MemoryMB,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// markReady promotes a pending job whose dependencies are all completed and
// whose backoff, if any, has elapsed.
func (j *Job) markReady(now time.Time) {
	j.State = StateReady
	j.UpdatedAt = now
}

// start marks the job as running
func (j *Job) start(now time.Time) {
	j.State = StateRunning
	j.StartedAt = &now
	j.NextAttemptAt = nil
	j.UpdatedAt = now
}

// complete marks the job as completed with its output reference and cost.
func (j *Job) complete(response string, actualCost float64, cacheHit bool, now time.Time) {
	j.State = StateCompleted
	j.Response = response
	j.CostActual = actualCost
	j.CacheHit = cacheHit
	j.Error = ""
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// fail marks the job as terminally failed.
func (j *Job) fail(err error, now time.Time) {
	j.State = StateFailed
	j.Error = err.Error()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// failBlocked marks the job failed because a dependency ended unsuccessfully.
func (j *Job) failBlocked(blockingID string, reason string, now time.Time) {
	j.State = StateFailed
	j.BlockedBy = blockingID
	j.Error = reason
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// requeue schedules a retry after a transient failure.
func (j *Job) requeue(err error, nextAttempt time.Time, now time.Time) {
	j.State = StatePending
	j.Attempt++
	j.Error = err.Error()
	j.StartedAt = nil
	j.NextAttemptAt = &nextAttempt
	j.UpdatedAt = now
}

// cancel marks the job as cancelled with a reason.
func (j *Job) cancel(reason string, now time.Time) {
	j.State = StateCancelled
	j.Error = reason
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// backoffElapsed reports whether the job's retry backoff, if any, has passed.
func (j *Job) backoffElapsed(now time.Time) bool {
	return j.NextAttemptAt == nil || !j.NextAttemptAt.After(now)
}

// JobSnapshot is the caller-visible view of a job. Retry internals (attempt
// counts, backoff timing) are deliberately absent.
type JobSnapshot struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Priority    Priority   `json:"priority"`
	State       State      `json:"state"`
	Response    string     `json:"response,omitempty"`
	CostActual  float64    `json:"cost_actual"`
	CacheHit    bool       `json:"cache_hit,omitempty"`
	Error       string     `json:"error,omitempty"`
	BlockedBy   string     `json:"blocked_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// snapshot returns the caller-visible view of the job.
func (j *Job) snapshot() JobSnapshot {
	return JobSnapshot{
		ID:          j.ID,
		Kind:        j.Kind,
		Priority:    j.Priority,
		State:       j.State,
		Response:    j.Response,
		CostActual:  j.CostActual,
		CacheHit:    j.CacheHit,
		Error:       j.Error,
		BlockedBy:   j.BlockedBy,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
