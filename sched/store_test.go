package sched

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HollandsP/Evergreen-sub003/fingerprint"
	testutil "github.com/HollandsP/Evergreen-sub003/internal/testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := testutil.CreateTestDB(t)
	require.NoError(t, InitSchema(db))
	return NewStore(db)
}

func storeTestJob(prompt string, priority Priority, deps []string) *Job {
	return newJob(SubmitRequest{
		Kind:     KindImage,
		Priority: priority,
		Request: fingerprint.Request{
			Provider: "pixelforge",
			Model:    "pf-xl",
			Kind:     "image",
			Prompt:   prompt,
			Params:   map[string]string{"size": "1024"},
		},
		Dependencies: deps,
		CostEstimate: 0.04,
		MemoryMB:     128,
	}, 3, time.Now().UTC().Truncate(time.Millisecond))
}

func TestStoreCreateAndGetJob(t *testing.T) {
	store := newTestStore(t)

	job := storeTestJob("a red fox", PriorityHigh, []string{"dep-a", "dep-b"})
	require.NoError(t, store.CreateJob(job))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)

	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, KindImage, got.Kind)
	assert.Equal(t, PriorityHigh, got.Priority)
	assert.Equal(t, StatePending, got.State)
	assert.Equal(t, job.Request, got.Request)
	assert.Equal(t, []string{"dep-a", "dep-b"}, got.Dependencies)
	assert.Equal(t, 3, got.MaxRetries)
	assert.Equal(t, 0.04, got.CostEstimate)
	assert.Equal(t, 128, got.MemoryMB)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
}

func TestStoreGetJobNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetJob("no-such-job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}

func TestStoreUpdateJob(t *testing.T) {
	store := newTestStore(t)

	job := storeTestJob("a barn owl", PriorityMedium, nil)
	require.NoError(t, store.CreateJob(job))

	now := time.Now().UTC().Truncate(time.Millisecond)
	job.start(now)
	job.complete("blob://owl.png", 0.037, false, now)
	require.NoError(t, store.UpdateJob(job))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
	assert.Equal(t, "blob://owl.png", got.Response)
	assert.Equal(t, 0.037, got.CostActual)
	require.NotNil(t, got.CompletedAt)
}

func TestStoreUpdateJobNotFound(t *testing.T) {
	store := newTestStore(t)

	job := storeTestJob("never created", PriorityLow, nil)
	err := store.UpdateJob(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}

func TestStoreNextReadyJobsOrdering(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().UTC().Truncate(time.Millisecond)
	mk := func(prompt string, p Priority, offset time.Duration) *Job {
		job := storeTestJob(prompt, p, nil)
		job.CreatedAt = base.Add(offset)
		job.UpdatedAt = job.CreatedAt
		require.NoError(t, store.CreateJob(job))
		return job
	}

	low := mk("low", PriorityLow, 0)
	medOld := mk("medium old", PriorityMedium, time.Millisecond)
	medNew := mk("medium new", PriorityMedium, 2*time.Millisecond)
	urgent := mk("urgent", PriorityUrgent, 3*time.Millisecond)

	ready, err := store.NextReadyJobs(base.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, ready, 4)

	// Priority first, then submission order within a priority
	assert.Equal(t, urgent.ID, ready[0].ID)
	assert.Equal(t, medOld.ID, ready[1].ID)
	assert.Equal(t, medNew.ID, ready[2].ID)
	assert.Equal(t, low.ID, ready[3].ID)
}

func TestStoreNextReadyJobsRespectsBackoff(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	job := storeTestJob("throttled", PriorityHigh, nil)
	retryAt := now.Add(time.Minute)
	job.NextAttemptAt = &retryAt
	require.NoError(t, store.CreateJob(job))

	ready, err := store.NextReadyJobs(now, 10)
	require.NoError(t, err)
	assert.Empty(t, ready, "backoff gate not yet elapsed")

	ready, err = store.NextReadyJobs(now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, ready, 1)
}

func TestStoreNextReadyJobsSkipsOtherStates(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	pending := storeTestJob("pending", PriorityHigh, []string{"x"})
	// Dependency existence is the scheduler's concern, not the store's
	require.NoError(t, store.CreateJob(pending))

	running := storeTestJob("running", PriorityHigh, nil)
	running.start(now)
	require.NoError(t, store.CreateJob(running))

	ready, err := store.NextReadyJobs(now.Add(time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, ready)
}

func TestStoreListDependents(t *testing.T) {
	store := newTestStore(t)

	root := storeTestJob("root", PriorityMedium, nil)
	require.NoError(t, store.CreateJob(root))

	child := storeTestJob("child", PriorityMedium, []string{root.ID})
	require.NoError(t, store.CreateJob(child))

	other := storeTestJob("other", PriorityMedium, []string{"unrelated"})
	require.NoError(t, store.CreateJob(other))

	deps, err := store.ListDependents(root.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, child.ID, deps[0].ID)
}

func TestStoreListByState(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	a := storeTestJob("a", PriorityMedium, []string{"d"})
	require.NoError(t, store.CreateJob(a))

	b := storeTestJob("b", PriorityMedium, nil)
	b.fail(sql.ErrNoRows, now)
	require.NoError(t, store.CreateJob(b))

	pending, err := store.ListByState(StatePending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	failed, err := store.ListByState(StateFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, b.ID, failed[0].ID)
}

func TestStoreCountByState(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.CreateJob(storeTestJob("ready", PriorityMedium, nil)))
	}
	done := storeTestJob("done", PriorityMedium, nil)
	done.complete("blob://x", 0.01, false, now)
	require.NoError(t, store.CreateJob(done))

	counts, err := store.CountByState()
	require.NoError(t, err)
	assert.Equal(t, 3, counts[StateReady])
	assert.Equal(t, 1, counts[StateCompleted])
}

func TestStoreCleanupOldJobs(t *testing.T) {
	store := newTestStore(t)
	old := time.Now().UTC().Add(-48 * time.Hour)

	stale := storeTestJob("stale", PriorityMedium, nil)
	stale.complete("blob://x", 0.01, false, old)
	require.NoError(t, store.CreateJob(stale))

	fresh := storeTestJob("fresh", PriorityMedium, nil)
	require.NoError(t, store.CreateJob(fresh))

	removed, err := store.CleanupOldJobs(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.GetJob(stale.ID)
	assert.Error(t, err)
	_, err = store.GetJob(fresh.ID)
	assert.NoError(t, err)
}

func TestStoreDeleteJob(t *testing.T) {
	store := newTestStore(t)

	job := storeTestJob("doomed", PriorityMedium, nil)
	require.NoError(t, store.CreateJob(job))
	require.NoError(t, store.DeleteJob(job.ID))

	err := store.DeleteJob(job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}
