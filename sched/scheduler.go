package sched

import (
	"context"
	"database/sql"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HollandsP/Evergreen-sub003/cache"
	"github.com/HollandsP/Evergreen-sub003/config"
	"github.com/HollandsP/Evergreen-sub003/errors"
	"github.com/HollandsP/Evergreen-sub003/fingerprint"
	"github.com/HollandsP/Evergreen-sub003/metrics"
)

const (
	// subscriberChannelBufferSize is the buffer size for subscriber channels
	subscriberChannelBufferSize = 16

	// maxOrphanedJobsToRecover limits how many orphaned jobs we'll attempt
	// to recover on startup
	maxOrphanedJobsToRecover = 1000
)

// Scheduler mediates access to generation providers: it orders jobs by
// priority and dependencies, short-circuits through the response cache,
// enforces resource ceilings via the ledger, and retries transient failures
// with jittered exponential backoff.
type Scheduler struct {
	store    *Store
	cache    *cache.ResponseCache
	registry *Registry
	ledger   *Ledger
	metrics  *metrics.Sink
	cfg      config.SchedulerConfig
	pacer    *rate.Limiter // paces outbound provider calls

	logger *zap.SugaredLogger

	// mu serializes all job state transitions. Provider calls happen
	// outside the lock; only claim/complete/fail/promote hold it.
	mu             sync.Mutex
	runningCancels map[string]context.CancelFunc

	subMu       sync.Mutex
	subscribers map[string][]chan JobSnapshot

	parentCtx context.Context
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	timeNow   func() time.Time // Injectable for testing
	randFloat func() float64   // Jitter source, injectable for testing
}

// New creates a scheduler with real time. The cache, metrics sink, and logger
// may be nil; a nil cache disables short-circuiting.
func New(db *sql.DB, cfg config.SchedulerConfig, responseCache *cache.ResponseCache, registry *Registry, sink *metrics.Sink, logger *zap.SugaredLogger) (*Scheduler, error) {
	return NewWithContext(context.Background(), db, cfg, responseCache, registry, sink, logger)
}

// NewWithContext creates a scheduler whose workers stop when the parent
// context is cancelled.
func NewWithContext(ctx context.Context, db *sql.DB, cfg config.SchedulerConfig, responseCache *cache.ResponseCache, registry *Registry, sink *metrics.Sink, logger *zap.SugaredLogger) (*Scheduler, error) {
	if db == nil {
		return nil, errors.New("scheduler requires a database")
	}
	if registry == nil {
		return nil, errors.New("scheduler requires a provider registry")
	}
	if cfg.MaxConcurrentJobs <= 0 {
		return nil, errors.Newf("invalid worker count: %d", cfg.MaxConcurrentJobs)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	pacer := rate.NewLimiter(rate.Inf, 0)
	if cfg.ProviderCallsPerMinute > 0 {
		pacer = rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(cfg.ProviderCallsPerMinute)),
			cfg.ProviderCallsPerMinute)
	}

	workerCtx, cancel := context.WithCancel(ctx)

	return &Scheduler{
		store:          NewStore(db),
		cache:          responseCache,
		registry:       registry,
		ledger:         NewLedger(cfg.MaxConcurrentJobs, cfg.MaxCostPerHour, cfg.MaxMemoryMB),
		metrics:        sink,
		cfg:            cfg,
		pacer:          pacer,
		logger:         logger.Named("sched"),
		runningCancels: make(map[string]context.CancelFunc),
		subscribers:    make(map[string][]chan JobSnapshot),
		parentCtx:      ctx,
		ctx:            workerCtx,
		cancel:         cancel,
		timeNow:        time.Now,
		randFloat:      rand.Float64,
	}, nil
}

// Submit validates and persists a new job, returning its ID. Jobs whose
// dependencies are already completed start ready; jobs with an unresolved
// dependency start pending. A dependency that already failed or was cancelled
// fails the new job on arrival with the blocking job recorded.
func (s *Scheduler) Submit(req SubmitRequest) (string, error) {
	if req.Kind == "" {
		return "", errors.New("job kind is required")
	}
	if req.Request.Prompt == "" {
		return "", errors.New("request prompt is required")
	}
	if req.CostEstimate < 0 {
		return "", errors.Newf("invalid cost estimate: %f", req.CostEstimate)
	}
	if !s.registry.Has(req.Kind) {
		return "", errors.Newf("no provider registered for kind: %s", req.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeNow()
	job := newJob(req, s.cfg.Retry.MaxRetries, now)

	var blocking *Job
	unresolved := 0
	for _, depID := range req.Dependencies {
		if depID == job.ID {
			return "", errors.New("job cannot depend on itself")
		}
		dep, err := s.store.GetJob(depID)
		if err != nil {
			return "", errors.Wrapf(err, "unknown dependency %s", depID)
		}
		switch dep.State {
		case StateCompleted:
			// satisfied
		case StateFailed, StateCancelled:
			if blocking == nil {
				blocking = dep
			}
		default:
			unresolved++
		}
	}

	switch {
	case blocking != nil:
		job.failBlocked(blocking.ID, "dependency "+blocking.ID+" "+string(blocking.State), now)
	case unresolved == 0:
		job.markReady(now)
	}

	if err := s.store.CreateJob(job); err != nil {
		return "", err
	}

	s.logger.Infow("Job submitted",
		"job_id", job.ID,
		"kind", job.Kind,
		"priority", job.Priority.String(),
		"state", job.State,
		"dependencies", len(job.Dependencies))

	if job.State == StateFailed {
		s.metrics.RecordFailure()
	}
	s.updateQueueDepth()
	return job.ID, nil
}

// Cancel stops a job. Pending and ready jobs are cancelled in place; running
// jobs have their invocation context cancelled and finish as cancelled when
// the provider call returns. Dependent jobs fail through the usual cascade.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.store.GetJob(id)
	if err != nil {
		return err
	}
	if job.State.IsTerminal() {
		return errors.Newf("job %s already %s", id, job.State)
	}

	if job.State == StateRunning {
		if cancelRun, ok := s.runningCancels[id]; ok {
			cancelRun()
		}
		// The dispatch goroutine owns the terminal transition.
		return nil
	}

	now := s.timeNow()
	job.cancel("cancelled by caller", now)
	if err := s.store.UpdateJob(job); err != nil {
		return err
	}

	s.logger.Infow("Job cancelled", "job_id", id)
	s.notify(job)
	s.cascadeLocked(job, now)
	s.updateQueueDepth()
	return nil
}

// GetStatus returns the caller-visible view of a job.
func (s *Scheduler) GetStatus(id string) (JobSnapshot, error) {
	job, err := s.store.GetJob(id)
	if err != nil {
		return JobSnapshot{}, err
	}
	return job.snapshot(), nil
}

// Subscribe returns a channel of snapshots for a job's transitions, and an
// unsubscribe function. The channel closes after the terminal snapshot is
// delivered. Slow consumers miss intermediate updates rather than blocking
// the scheduler.
func (s *Scheduler) Subscribe(id string) (<-chan JobSnapshot, func(), error) {
	job, err := s.store.GetJob(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan JobSnapshot, subscriberChannelBufferSize)

	if job.State.IsTerminal() {
		ch <- job.snapshot()
		close(ch)
		return ch, func() {}, nil
	}

	s.subMu.Lock()
	s.subscribers[id] = append(s.subscribers[id], ch)
	s.subMu.Unlock()

	unsubscribe := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		subs := s.subscribers[id]
		for i, sub := range subs {
			if sub == ch {
				s.subscribers[id] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(s.subscribers[id]) == 0 {
			delete(s.subscribers, id)
		}
	}
	return ch, unsubscribe, nil
}

// notify sends a snapshot to the job's subscribers, non-blocking. Terminal
// snapshots close the channels and drop the subscription.
func (s *Scheduler) notify(job *Job) {
	snap := job.snapshot()

	s.subMu.Lock()
	defer s.subMu.Unlock()

	subs := s.subscribers[job.ID]
	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			// Channel full, skip (non-blocking)
		}
	}
	if job.State.IsTerminal() {
		for _, ch := range subs {
			close(ch)
		}
		delete(s.subscribers, job.ID)
	}
}

// Start recovers orphaned jobs and begins the worker loops.
func (s *Scheduler) Start() {
	s.mu.Lock()
	select {
	case <-s.ctx.Done():
		s.ctx, s.cancel = context.WithCancel(s.parentCtx)
		s.logger.Debugw("Recreated worker context after previous shutdown")
	default:
	}
	s.mu.Unlock()

	if err := s.recoverOrphanedJobs(); err != nil {
		s.logger.Warnw("Failed to recover orphaned jobs", "error", err)
	}

	if warning := checkMemoryPressure(s.cfg.MaxMemoryMB); warning != "" {
		s.logger.Warnw("Memory pressure warning", "warning", warning)
	}

	for i := 0; i < s.cfg.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.logger.Infow("Scheduler started",
		"workers", s.cfg.MaxConcurrentJobs,
		"poll_interval", s.cfg.PollInterval(),
		"max_cost_per_hour", s.cfg.MaxCostPerHour)
}

// Stop cancels the workers and waits for in-flight jobs to settle.
func (s *Scheduler) Stop() {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("Scheduler stopped, all workers exited cleanly")
	case <-time.After(30 * time.Second):
		s.logger.Warnw("Scheduler stop timeout, workers may still be settling")
	}
}

// recoverOrphanedJobs handles jobs left running by an ungraceful shutdown.
// Each is treated as a retryable failure: requeued with backoff when attempts
// remain, failed terminally otherwise.
func (s *Scheduler) recoverOrphanedJobs() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	running := StateRunning
	orphaned, err := s.store.ListJobs(&running, maxOrphanedJobsToRecover)
	if err != nil {
		return errors.Wrap(err, "failed to list running jobs")
	}
	if len(orphaned) == 0 {
		return nil
	}

	s.logger.Warnw("Found orphaned jobs from previous shutdown", "count", len(orphaned))

	now := s.timeNow()
	orphanErr := errors.New("interrupted by scheduler shutdown")
	for _, job := range orphaned {
		s.settleFailureLocked(job, orphanErr, true, now)
	}
	return nil
}

// worker polls for dispatchable jobs until the scheduler context is cancelled.
func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.dispatchOnce(); err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, sql.ErrConnDone) {
					return
				}
				s.logger.Errorw("Worker error", "worker_id", id, "error", err)
			}
		}
	}
}

// dispatchOnce runs one scheduling pass: promote pending jobs, claim the
// highest-ranked admissible ready work, and execute it.
func (s *Scheduler) dispatchOnce() error {
	s.mu.Lock()
	now := s.timeNow()

	if err := s.promoteLocked(now); err != nil {
		s.mu.Unlock()
		return err
	}

	claimed, err := s.claimLocked(now)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.updateQueueDepth()
	s.mu.Unlock()

	if len(claimed) == 0 {
		return nil
	}
	return s.execute(claimed)
}

// promoteLocked walks pending jobs to a fixpoint: jobs whose dependencies all
// completed (and whose backoff elapsed) become ready; jobs with a failed or
// cancelled dependency fail immediately, which can unblock further failures
// in the same pass.
func (s *Scheduler) promoteLocked(now time.Time) error {
	for {
		pending, err := s.store.ListByState(StatePending)
		if err != nil {
			return err
		}

		changed := false
		for _, job := range pending {
			done := true
			var blocking *Job
			for _, depID := range job.Dependencies {
				dep, err := s.store.GetJob(depID)
				if err != nil {
					return err
				}
				switch dep.State {
				case StateCompleted:
				case StateFailed, StateCancelled:
					blocking = dep
				default:
					done = false
				}
				if blocking != nil {
					break
				}
			}

			switch {
			case blocking != nil:
				job.failBlocked(blocking.ID, "dependency "+blocking.ID+" "+string(blocking.State), now)
				if err := s.store.UpdateJob(job); err != nil {
					return err
				}
				s.logger.Infow("Job failed, dependency unsatisfiable",
					"job_id", job.ID, "blocked_by", blocking.ID)
				s.metrics.RecordFailure()
				s.notify(job)
				changed = true
			case done && job.backoffElapsed(now):
				job.markReady(now)
				if err := s.store.UpdateJob(job); err != nil {
					return err
				}
				s.notify(job)
				changed = true
			}
		}

		if !changed {
			return nil
		}
	}
}

// claimLocked picks dispatchable work the ledger will admit and marks it
// running. Returns at most one job, or a batch of same-kind jobs when the
// provider supports batching.
func (s *Scheduler) claimLocked(now time.Time) ([]*Job, error) {
	batchLimit := s.cfg.MaxBatchSize
	if batchLimit < 1 {
		batchLimit = 1
	}

	ready, err := s.store.NextReadyJobs(now, batchLimit*4)
	if err != nil {
		return nil, err
	}

	var claimed []*Job
	var batchKind Kind
	for _, job := range ready {
		if len(claimed) >= batchLimit {
			break
		}
		if len(claimed) > 0 {
			// Batches never mix kinds: results are positional per provider call.
			if job.Kind != batchKind {
				continue
			}
			if _, ok := s.registry.Get(batchKind).(BatchInvoker); !ok {
				break
			}
		}
		if err := s.ledger.Admit(job.CostEstimate, job.MemoryMB); err != nil {
			s.logger.Debugw("Job deferred by resource ledger", "job_id", job.ID, "reason", err.Error())
			if len(claimed) > 0 {
				break
			}
			continue
		}

		job.start(now)
		if err := s.store.UpdateJob(job); err != nil {
			s.ledger.Release(job.MemoryMB)
			return claimed, err
		}
		claimed = append(claimed, job)
		batchKind = job.Kind
		s.notify(job)
	}

	for _, job := range claimed {
		runCtx, cancelRun := context.WithCancel(s.ctx)
		s.runningCancels[job.ID] = cancelRun
		job.runCtx = runCtx
	}
	return claimed, nil
}

// execute resolves claimed jobs: cache hits complete immediately at zero
// cost, the rest go to the provider, batched when it supports that.
func (s *Scheduler) execute(claimed []*Job) error {
	var misses []*Job
	for _, job := range claimed {
		if s.tryCacheHit(job) {
			continue
		}
		misses = append(misses, job)
	}

	if len(misses) == 0 {
		return nil
	}

	inv := s.registry.Get(misses[0].Kind)
	if inv == nil {
		// Registry entries are never removed, so this is a programming error.
		err := errors.Newf("no provider registered for kind: %s", misses[0].Kind)
		now := s.timeNow()
		s.mu.Lock()
		for _, job := range misses {
			s.finishRunLocked(job)
			s.ledger.Release(job.MemoryMB)
			s.settleFailureLocked(job, err, false, now)
		}
		s.mu.Unlock()
		return err
	}

	if batcher, ok := inv.(BatchInvoker); ok && len(misses) > 1 {
		s.executeBatch(batcher, misses)
		return nil
	}
	for _, job := range misses {
		s.executeOne(inv, job)
	}
	return nil
}

// tryCacheHit completes the job from the cache when possible. Cached
// completions record zero actual cost and never touch the spend window.
func (s *Scheduler) tryCacheHit(job *Job) bool {
	if s.cache == nil {
		return false
	}
	hit, ok := s.cache.Lookup(job.Request)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeNow()
	s.finishRunLocked(job)
	job.complete(hit.Response, 0, true, now)
	if err := s.store.UpdateJob(job); err != nil {
		s.logger.Errorw("Failed to persist cached completion", "job_id", job.ID, "error", err)
	}
	s.ledger.Release(job.MemoryMB)
	s.metrics.RecordCompletion(now.Sub(job.CreatedAt), 0)
	s.logger.Infow("Job completed from cache",
		"job_id", job.ID,
		"similarity", hit.Similarity)
	s.notify(job)
	return true
}

// executeOne runs a single provider invocation and settles the job.
func (s *Scheduler) executeOne(inv Invoker, job *Job) {
	if err := s.pacer.Wait(job.runCtx); err != nil {
		s.settleError(job, err)
		return
	}

	started := s.timeNow()
	result, err := inv.Invoke(job.runCtx, job.Request)
	if err != nil {
		s.settleError(job, err)
		return
	}
	if result == nil {
		s.settleError(job, Transient(errors.New("provider returned no result")))
		return
	}
	s.settleSuccess(job, result, started)
}

// executeBatch runs one provider call for a batch of same-kind jobs and
// settles each slot independently.
func (s *Scheduler) executeBatch(batcher BatchInvoker, jobs []*Job) {
	if err := s.pacer.Wait(jobs[0].runCtx); err != nil {
		for _, job := range jobs {
			s.settleError(job, err)
		}
		return
	}

	started := s.timeNow()
	batchReqs := make([]fingerprint.Request, len(jobs))
	for i, job := range jobs {
		batchReqs[i] = job.Request
	}

	results, err := batcher.InvokeBatch(jobs[0].runCtx, batchReqs)
	if err != nil {
		for _, job := range jobs {
			s.settleError(job, err)
		}
		return
	}

	for i, job := range jobs {
		if i >= len(results) || results[i] == nil {
			s.settleError(job, Transient(errors.Newf("batch slot %d returned no result", i)))
			continue
		}
		s.settleSuccess(job, results[i], started)
	}
}

// settleSuccess stores the result in the cache and completes the job.
func (s *Scheduler) settleSuccess(job *Job, result *Result, started time.Time) {
	if s.cache != nil {
		if err := s.cache.Store(job.Request, result.Response, result.Payload, result.Cost, result.Quality); err != nil {
			s.logger.Warnw("Failed to cache result", "job_id", job.ID, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeNow()
	s.finishRunLocked(job)
	job.complete(result.Response, result.Cost, false, now)
	if err := s.store.UpdateJob(job); err != nil {
		s.logger.Errorw("Failed to persist completion", "job_id", job.ID, "error", err)
	}
	s.ledger.Release(job.MemoryMB)
	s.ledger.RecordSpend(result.Cost)
	s.metrics.RecordCompletion(now.Sub(started), result.Cost)
	s.logger.Infow("Job completed",
		"job_id", job.ID,
		"cost", result.Cost,
		"duration", now.Sub(started))
	s.notify(job)
}

// settleError resolves a failed invocation: caller cancellation becomes a
// cancelled job, shutdown requeues without consuming an attempt, anything
// else goes through retry classification.
func (s *Scheduler) settleError(job *Job, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeNow()
	cancelled := job.runCtx.Err() != nil
	s.finishRunLocked(job)
	s.ledger.Release(job.MemoryMB)

	if cancelled {
		select {
		case <-s.ctx.Done():
			// Shutdown, not a caller cancel: hand the job back untouched.
			job.markReady(now)
			job.StartedAt = nil
			if uerr := s.store.UpdateJob(job); uerr != nil {
				s.logger.Errorw("Failed to requeue job on shutdown", "job_id", job.ID, "error", uerr)
			}
			return
		default:
		}
		job.cancel("cancelled by caller", now)
		if uerr := s.store.UpdateJob(job); uerr != nil {
			s.logger.Errorw("Failed to persist cancellation", "job_id", job.ID, "error", uerr)
		}
		s.logger.Infow("Job cancelled mid-flight", "job_id", job.ID)
		s.notify(job)
		s.cascadeLocked(job, now)
		return
	}

	s.settleFailureLocked(job, err, isRetryable(err), now)
}

// settleFailureLocked applies retry policy to a failed job: retryable
// failures with attempts remaining requeue with backoff, the rest fail
// terminally and cascade to dependents.
func (s *Scheduler) settleFailureLocked(job *Job, err error, retryable bool, now time.Time) {
	if retryable && job.Attempt < job.MaxRetries {
		delay := s.backoffDelay(job.Attempt)
		job.requeue(err, now.Add(delay), now)
		if uerr := s.store.UpdateJob(job); uerr != nil {
			s.logger.Errorw("Failed to requeue job", "job_id", job.ID, "error", uerr)
			return
		}
		s.logger.Warnw("Job failed, will retry",
			"job_id", job.ID,
			"attempt", job.Attempt,
			"max_retries", job.MaxRetries,
			"backoff", delay,
			"error", err)
		s.notify(job)
		return
	}

	job.fail(err, now)
	if uerr := s.store.UpdateJob(job); uerr != nil {
		s.logger.Errorw("Failed to persist failure", "job_id", job.ID, "error", uerr)
		return
	}
	s.metrics.RecordFailure()
	s.logger.Errorw("Job failed",
		"job_id", job.ID,
		"attempts", job.Attempt+1,
		"error", err)
	s.notify(job)
	s.cascadeLocked(job, now)
}

// cascadeLocked fails every transitive dependent of a failed or cancelled
// job. Breadth-first over the reverse dependency edges.
func (s *Scheduler) cascadeLocked(root *Job, now time.Time) {
	queue := []*Job{root}
	visited := map[string]bool{root.ID: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		dependents, err := s.store.ListDependents(current.ID)
		if err != nil {
			s.logger.Errorw("Failed to list dependents during cascade",
				"job_id", current.ID, "error", err)
			return
		}
		for _, dep := range dependents {
			if visited[dep.ID] || dep.State.IsTerminal() {
				continue
			}
			visited[dep.ID] = true

			if dep.State == StateRunning {
				// In-flight work is not interrupted retroactively.
				continue
			}
			dep.failBlocked(root.ID, "dependency "+root.ID+" "+string(root.State), now)
			if err := s.store.UpdateJob(dep); err != nil {
				s.logger.Errorw("Failed to cascade failure", "job_id", dep.ID, "error", err)
				continue
			}
			s.metrics.RecordFailure()
			s.logger.Infow("Job failed by cascade", "job_id", dep.ID, "blocked_by", root.ID)
			s.notify(dep)
			queue = append(queue, dep)
		}
	}
}

// finishRunLocked drops the job's cancel registration.
func (s *Scheduler) finishRunLocked(job *Job) {
	if cancelRun, ok := s.runningCancels[job.ID]; ok {
		cancelRun()
		delete(s.runningCancels, job.ID)
	}
}

// backoffDelay computes the retry delay for an attempt: exponential from the
// configured base, capped, with half the delay randomized as jitter.
func (s *Scheduler) backoffDelay(attempt int) time.Duration {
	base := s.cfg.Retry.BaseDelay()
	maxDelay := s.cfg.Retry.MaxDelay()

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return delay/2 + time.Duration(s.randFloat()*float64(delay/2))
}

// updateQueueDepth publishes the count of jobs awaiting dispatch. Must be
// called with mu held.
func (s *Scheduler) updateQueueDepth() {
	counts, err := s.store.CountByState()
	if err != nil {
		return
	}
	s.metrics.SetQueueDepth(counts[StatePending] + counts[StateReady])
}

// QueueStats is a point-in-time view of scheduler load and throughput.
type QueueStats struct {
	Counts      map[State]int `json:"counts"`
	Running     int           `json:"running"`
	WindowSpend float64       `json:"window_spend"`
	MemoryMB    int           `json:"memory_mb"`
	Metrics     metrics.Stats `json:"metrics"`
}

// Stats returns current queue, ledger, and throughput numbers.
func (s *Scheduler) Stats() (*QueueStats, error) {
	counts, err := s.store.CountByState()
	if err != nil {
		return nil, err
	}
	return &QueueStats{
		Counts:      counts,
		Running:     s.ledger.Running(),
		WindowSpend: s.ledger.WindowSpend(),
		MemoryMB:    s.ledger.CommittedMemoryMB(),
		Metrics:     s.metrics.Snapshot(),
	}, nil
}

// Cleanup removes terminal jobs older than the given age.
func (s *Scheduler) Cleanup(olderThan time.Duration) (int, error) {
	return s.store.CleanupOldJobs(olderThan)
}
