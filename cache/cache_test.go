package cache

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HollandsP/Evergreen-sub003/fingerprint"
	"github.com/HollandsP/Evergreen-sub003/metrics"
)

// mockClock allows controlling time in tests
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(now time.Time) *mockClock {
	return &mockClock{now: now}
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func newTestCache(t *testing.T, opts Options, clock *mockClock) *ResponseCache {
	t.Helper()
	if opts.CapacityBytes == 0 {
		opts.CapacityBytes = 1 << 20
	}
	if opts.CapacityItems == 0 {
		opts.CapacityItems = 1024
	}
	if opts.DefaultSimilarityThreshold == 0 {
		opts.DefaultSimilarityThreshold = 0.85
	}
	timeNow := time.Now
	if clock != nil {
		timeNow = clock.Now
	}
	c, err := NewWithClock(opts, timeNow)
	require.NoError(t, err)
	return c
}

func imageReq(prompt string, tags ...string) fingerprint.Request {
	return fingerprint.Request{
		Provider: "stability",
		Model:    "sd-xl",
		Kind:     "image",
		Prompt:   prompt,
		Tags:     tags,
	}
}

func TestExactHitAfterStore(t *testing.T) {
	c := newTestCache(t, Options{}, nil)
	req := imageReq("a lighthouse at dusk", "scene-3")

	require.NoError(t, c.Store(req, "blob://lighthouse", nil, 0.04, 0.9))

	hit, ok := c.Lookup(req)
	require.True(t, ok)
	assert.Equal(t, 1.0, hit.Similarity)
	assert.Equal(t, "blob://lighthouse", hit.Response)
	assert.Equal(t, 0.04, hit.Cost)
}

func TestMissForUnknownRequest(t *testing.T) {
	c := newTestCache(t, Options{}, nil)

	_, ok := c.Lookup(imageReq("never stored"))
	assert.False(t, ok)
}

func TestSimilarHitWithinSharedTag(t *testing.T) {
	c := newTestCache(t, Options{}, nil)
	stored := imageReq("a red fox jumps over the wooden fence", "scene-1")
	require.NoError(t, c.Store(stored, "blob://fox", nil, 0.05, 0.8))

	// Near-duplicate prompt sharing the tag
	similar := imageReq("a red fox leaps over the wooden fence", "scene-1")
	hit, ok := c.LookupWithThreshold(similar, 0.6)
	require.True(t, ok)
	assert.Less(t, hit.Similarity, 1.0)
	assert.GreaterOrEqual(t, hit.Similarity, 0.6)
	assert.Equal(t, "blob://fox", hit.Response)
}

func TestSimilarLookupRequiresSharedTag(t *testing.T) {
	c := newTestCache(t, Options{}, nil)
	require.NoError(t, c.Store(imageReq("a red fox jumps over the fence", "scene-1"), "blob://fox", nil, 0.05, 0.8))

	// Same prompt family but no overlapping tag: bucketed scan finds nothing
	_, ok := c.LookupWithThreshold(imageReq("a red fox leaps over the fence", "scene-2"), 0.5)
	assert.False(t, ok)
}

func TestThresholdOneDisablesSimilarity(t *testing.T) {
	c := newTestCache(t, Options{}, nil)
	require.NoError(t, c.Store(imageReq("a red fox jumps over the fence", "scene-1"), "blob://fox", nil, 0.05, 0.8))

	_, ok := c.LookupWithThreshold(imageReq("a red fox leaps over the fence", "scene-1"), 1.0)
	assert.False(t, ok)
}

func TestHitCountBumpsOnLookupNotStore(t *testing.T) {
	c := newTestCache(t, Options{}, nil)
	req := imageReq("sunrise", "s")

	require.NoError(t, c.Store(req, "blob://v1", nil, 0.01, 0.5))
	c.Lookup(req)
	c.Lookup(req)

	// Overwrite must keep hit count
	require.NoError(t, c.Store(req, "blob://v2", nil, 0.02, 0.6))

	c.mu.Lock()
	entry := c.entries[fingerprint.Key(req)]
	c.mu.Unlock()
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.HitCount)
	assert.Equal(t, "blob://v2", entry.Response)
}

func TestCapacityBytesNeverExceeded(t *testing.T) {
	c := newTestCache(t, Options{CapacityBytes: 300, CapacityItems: 1024}, nil)

	for i := 0; i < 20; i++ {
		req := imageReq(fmt.Sprintf("prompt %d", i))
		payload := bytes.Repeat([]byte("x"), 90)
		require.NoError(t, c.Store(req, "r", payload, 0.01, 0.5))
		assert.LessOrEqual(t, c.SizeBytes(), int64(300))
	}
}

func TestCapacityItemsNeverExceeded(t *testing.T) {
	c := newTestCache(t, Options{CapacityItems: 5}, nil)

	for i := 0; i < 20; i++ {
		require.NoError(t, c.Store(imageReq(fmt.Sprintf("prompt %d", i)), "r", nil, 0.01, 0.5))
		assert.LessOrEqual(t, c.Len(), 5)
	}
}

func TestOversizedEntryRejected(t *testing.T) {
	c := newTestCache(t, Options{CapacityBytes: 100, CapacityItems: 10}, nil)

	err := c.Store(imageReq("huge"), "r", bytes.Repeat([]byte("x"), 500), 0.01, 0.5)
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestEvictionRemovesLowestScoreFirst(t *testing.T) {
	clock := newMockClock(time.Now())
	c := newTestCache(t, Options{CapacityItems: 2, CapacityBytes: 1 << 20}, clock)

	cheap := imageReq("cheap rarely used")
	expensive := imageReq("expensive often used")

	require.NoError(t, c.Store(cheap, "blob://cheap", nil, 0.001, 0.5))
	require.NoError(t, c.Store(expensive, "blob://expensive", nil, 2.50, 0.9))

	// Reuse the expensive entry so its score climbs further
	clock.Advance(10 * time.Second)
	_, ok := c.Lookup(expensive)
	require.True(t, ok)

	// Third insert forces one eviction: the cheap, unused entry must go
	require.NoError(t, c.Store(imageReq("newcomer"), "blob://new", nil, 0.10, 0.5))

	_, ok = c.Lookup(cheap)
	assert.False(t, ok, "cheap stale entry should have been evicted")
	_, ok = c.Lookup(expensive)
	assert.True(t, ok, "expensive reused entry must be protected")
}

func TestEvictionTieBreaksByOldestAccess(t *testing.T) {
	clock := newMockClock(time.Now())
	c := newTestCache(t, Options{CapacityItems: 2, CapacityBytes: 1 << 20}, clock)

	// Costs and ages chosen so both scores equal 0.05 at eviction time:
	// older = (0+1)×0.10/(1+1), newer = (0+1)×0.05/(0+1)
	older := imageReq("alpha")
	newer := imageReq("beta")
	require.NoError(t, c.Store(older, "blob://a", nil, 0.10, 0.5))
	clock.Advance(time.Second)
	require.NoError(t, c.Store(newer, "blob://b", nil, 0.05, 0.5))

	require.NoError(t, c.Store(imageReq("gamma"), "blob://c", nil, 0.20, 0.5))

	_, ok := c.Lookup(older)
	assert.False(t, ok, "older-accessed entry loses the tie")
	_, ok = c.Lookup(newer)
	assert.True(t, ok)
}

func TestCacheScoreOrdering(t *testing.T) {
	now := time.Now()
	fresh := &Entry{HitCount: 3, Cost: 1.0, CreatedAt: now.Add(-time.Second)}
	stale := &Entry{HitCount: 0, Cost: 0.01, CreatedAt: now.Add(-time.Hour)}

	assert.Greater(t, score(fresh, now), score(stale, now))
}

func TestCompressedPayloadRoundTrip(t *testing.T) {
	c := newTestCache(t, Options{Compress: true}, nil)
	req := imageReq("compressible")
	payload := bytes.Repeat([]byte("evergreen "), 200)

	require.NoError(t, c.Store(req, "blob://z", payload, 0.01, 0.5))

	// Stored size should reflect compression
	assert.Less(t, c.SizeBytes(), int64(len(payload)))

	hit, ok := c.Lookup(req)
	require.True(t, ok)
	assert.Equal(t, payload, hit.Payload)
}

func TestMetricsRecorded(t *testing.T) {
	sink := metrics.NewSink()
	c := newTestCache(t, Options{Metrics: sink, CapacityItems: 1, CapacityBytes: 1 << 20}, nil)

	req := imageReq("tracked")
	require.NoError(t, c.Store(req, "r", nil, 0.01, 0.5))
	c.Lookup(req)
	c.Lookup(imageReq("absent"))
	require.NoError(t, c.Store(imageReq("pusher"), "r", nil, 0.01, 0.5))

	stats := sink.Snapshot()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.Evictions)
}

func TestConcurrentLookupsDuringStores(t *testing.T) {
	c := newTestCache(t, Options{CapacityItems: 8, CapacityBytes: 1 << 20}, nil)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				req := imageReq(fmt.Sprintf("worker %d item %d", w, i), "shared")
				_ = c.Store(req, "r", nil, 0.01, 0.5)
				c.Lookup(req)
				c.LookupWithThreshold(imageReq("probe", "shared"), 0.3)
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 8)
}
