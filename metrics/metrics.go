// Package metrics passively records scheduler and cache health counters.
package metrics

import (
	"sync"
	"time"
)

// Sink accumulates cache hit rate, queue depth, dispatch latency, and spend.
// All methods are safe for concurrent use. A nil *Sink is valid and records
// nothing, so components can treat metrics as optional.
type Sink struct {
	mu sync.Mutex

	cacheHits   int64
	cacheMisses int64
	evictions   int64

	jobsCompleted int64
	jobsFailed    int64
	queueDepth    int

	totalSpend     float64
	totalLatency   time.Duration
	latencySamples int64
}

// NewSink creates an empty metrics sink.
func NewSink() *Sink {
	return &Sink{}
}

// Stats is a point-in-time snapshot of the sink.
type Stats struct {
	CacheHits      int64         `json:"cache_hits"`
	CacheMisses    int64         `json:"cache_misses"`
	CacheHitRate   float64       `json:"cache_hit_rate"`
	Evictions      int64         `json:"evictions"`
	JobsCompleted  int64         `json:"jobs_completed"`
	JobsFailed     int64         `json:"jobs_failed"`
	QueueDepth     int           `json:"queue_depth"`
	TotalSpendUSD  float64       `json:"total_spend_usd"`
	AvgDispatchLat time.Duration `json:"avg_dispatch_latency"`
}

// RecordCacheHit counts a successful cache lookup.
func (s *Sink) RecordCacheHit() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.cacheHits++
	s.mu.Unlock()
}

// RecordCacheMiss counts a failed cache lookup.
func (s *Sink) RecordCacheMiss() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.cacheMisses++
	s.mu.Unlock()
}

// RecordEviction counts entries removed by the cache's eviction pass.
func (s *Sink) RecordEviction(n int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.evictions += int64(n)
	s.mu.Unlock()
}

// RecordCompletion counts a completed job and its provider latency and cost.
func (s *Sink) RecordCompletion(latency time.Duration, cost float64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.jobsCompleted++
	s.totalLatency += latency
	s.latencySamples++
	s.totalSpend += cost
	s.mu.Unlock()
}

// RecordFailure counts a terminally failed job.
func (s *Sink) RecordFailure() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.jobsFailed++
	s.mu.Unlock()
}

// SetQueueDepth records the current number of pending+ready jobs.
func (s *Sink) SetQueueDepth(depth int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.queueDepth = depth
	s.mu.Unlock()
}

// Snapshot returns current counter values.
func (s *Sink) Snapshot() Stats {
	if s == nil {
		return Stats{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		CacheHits:     s.cacheHits,
		CacheMisses:   s.cacheMisses,
		Evictions:     s.evictions,
		JobsCompleted: s.jobsCompleted,
		JobsFailed:    s.jobsFailed,
		QueueDepth:    s.queueDepth,
		TotalSpendUSD: s.totalSpend,
	}
	if total := s.cacheHits + s.cacheMisses; total > 0 {
		stats.CacheHitRate = float64(s.cacheHits) / float64(total)
	}
	if s.latencySamples > 0 {
		stats.AvgDispatchLat = s.totalLatency / time.Duration(s.latencySamples)
	}
	return stats
}
