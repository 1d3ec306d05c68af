package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHitRate(t *testing.T) {
	s := NewSink()
	s.RecordCacheHit()
	s.RecordCacheHit()
	s.RecordCacheHit()
	s.RecordCacheMiss()

	stats := s.Snapshot()
	assert.Equal(t, int64(3), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.InDelta(t, 0.75, stats.CacheHitRate, 1e-9)
}

func TestEmptySnapshot(t *testing.T) {
	s := NewSink()
	stats := s.Snapshot()
	assert.Zero(t, stats.CacheHitRate)
	assert.Zero(t, stats.AvgDispatchLat)
}

func TestNilSinkIsSafe(t *testing.T) {
	var s *Sink
	s.RecordCacheHit()
	s.RecordCompletion(time.Second, 0.5)
	s.SetQueueDepth(3)
	assert.Equal(t, Stats{}, s.Snapshot())
}

func TestLatencyAndSpend(t *testing.T) {
	s := NewSink()
	s.RecordCompletion(100*time.Millisecond, 0.10)
	s.RecordCompletion(300*time.Millisecond, 0.25)

	stats := s.Snapshot()
	assert.Equal(t, int64(2), stats.JobsCompleted)
	assert.Equal(t, 200*time.Millisecond, stats.AvgDispatchLat)
	assert.InDelta(t, 0.35, stats.TotalSpendUSD, 1e-9)
}

func TestConcurrentRecording(t *testing.T) {
	s := NewSink()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordCacheHit()
			s.RecordCacheMiss()
		}()
	}
	wg.Wait()

	stats := s.Snapshot()
	assert.Equal(t, int64(50), stats.CacheHits)
	assert.Equal(t, int64(50), stats.CacheMisses)
}
