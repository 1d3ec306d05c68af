// Package cache stores provider responses keyed by request fingerprint.
//
// Eviction is cost-aware rather than plain LRU: entries that are expensive to
// regenerate and frequently reused are protected, while cheap, stale, rarely
// hit entries are removed first. This protects the cache's actual purpose -
// avoiding repeated paid provider calls.
package cache

import (
	"bytes"
	"compress/gzip"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HollandsP/Evergreen-sub003/errors"
	"github.com/HollandsP/Evergreen-sub003/fingerprint"
	"github.com/HollandsP/Evergreen-sub003/metrics"
)

// Entry is a previously computed provider response.
type Entry struct {
	Fingerprint  string
	Signature    []string
	Response     string // opaque output reference (URL or blob handle)
	Payload      []byte // optional inline payload, possibly compressed
	Quality      float64
	Cost         float64
	SizeBytes    int64
	HitCount     int
	LastAccessed time.Time
	CreatedAt    time.Time
	Tags         []string

	compressed bool
}

// Hit is the result of a successful lookup.
type Hit struct {
	Fingerprint string
	Response    string
	Payload     []byte
	Quality     float64
	Cost        float64
	// Similarity is 1.0 for exact fingerprint matches, otherwise the score
	// of the best near-duplicate at or above the lookup threshold.
	Similarity float64
}

// Options configures a ResponseCache.
type Options struct {
	CapacityBytes int64
	CapacityItems int

	// DefaultSimilarityThreshold applies when Lookup is called without an
	// explicit threshold. 1.0 restricts lookups to exact matches.
	DefaultSimilarityThreshold float64

	// Compress gzips stored payloads. A storage-layer concern only: lookups
	// transparently decompress.
	Compress bool

	// Similarity strategy for near-duplicate matching. Defaults to
	// fingerprint.TokenOverlap.
	Similarity fingerprint.Similarity

	Metrics *metrics.Sink
	Logger  *zap.SugaredLogger
}

// ResponseCache answers "do we already have this, or something close enough?".
// It maintains its own internal lock so concurrent lookups from multiple
// scheduler workers do not race during eviction.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	byTag   map[string]map[string]struct{} // tag -> fingerprints

	sizeBytes int64
	opts      Options
	sim       fingerprint.Similarity
	logger    *zap.SugaredLogger
	timeNow   func() time.Time
}

// New creates a response cache.
func New(opts Options) (*ResponseCache, error) {
	return NewWithClock(opts, time.Now)
}

// NewWithClock creates a response cache with an injectable clock (for testing).
func NewWithClock(opts Options, timeNow func() time.Time) (*ResponseCache, error) {
	if opts.CapacityBytes <= 0 {
		return nil, errors.Newf("cache capacity_bytes must be > 0, got %d", opts.CapacityBytes)
	}
	if opts.CapacityItems <= 0 {
		return nil, errors.Newf("cache capacity_items must be > 0, got %d", opts.CapacityItems)
	}
	if opts.DefaultSimilarityThreshold <= 0 || opts.DefaultSimilarityThreshold > 1 {
		return nil, errors.Newf("cache default_similarity_threshold must be in (0, 1], got %f", opts.DefaultSimilarityThreshold)
	}

	sim := opts.Similarity
	if sim == nil {
		sim = fingerprint.TokenOverlap{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &ResponseCache{
		entries: make(map[string]*Entry),
		byTag:   make(map[string]map[string]struct{}),
		opts:    opts,
		sim:     sim,
		logger:  logger.Named("cache"),
		timeNow: timeNow,
	}, nil
}

// Lookup finds a cached response using the default similarity threshold.
func (c *ResponseCache) Lookup(req fingerprint.Request) (*Hit, bool) {
	return c.LookupWithThreshold(req, c.opts.DefaultSimilarityThreshold)
}

// LookupWithThreshold finds a cached response for the request. Exact
// fingerprint match is tried first (similarity 1.0); if absent and the
// threshold permits, entries sharing at least one tag with the request are
// scanned and the best match at or above the threshold wins. Hits bump the
// entry's hit count and last-accessed time.
func (c *ResponseCache) LookupWithThreshold(req fingerprint.Request, threshold float64) (*Hit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.timeNow()

	if entry, ok := c.entries[fingerprint.Key(req)]; ok {
		entry.HitCount++
		entry.LastAccessed = now
		c.opts.Metrics.RecordCacheHit()
		return c.hitLocked(entry, 1.0), true
	}

	if threshold < 1.0 {
		if entry, score := c.bestSimilarLocked(req, threshold); entry != nil {
			entry.HitCount++
			entry.LastAccessed = now
			c.opts.Metrics.RecordCacheHit()
			return c.hitLocked(entry, score), true
		}
	}

	c.opts.Metrics.RecordCacheMiss()
	return nil, false
}

// bestSimilarLocked scans only the tag-bucketed subset of entries, so cost
// does not scale with total cache size.
func (c *ResponseCache) bestSimilarLocked(req fingerprint.Request, threshold float64) (*Entry, float64) {
	candidates := make(map[string]struct{})
	for _, tag := range req.Tags {
		for fp := range c.byTag[tag] {
			candidates[fp] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return nil, 0
	}

	signature := fingerprint.Signature(req)
	var best *Entry
	bestScore := 0.0
	for fp := range candidates {
		entry := c.entries[fp]
		if entry == nil {
			continue
		}
		score := c.sim.Score(signature, entry.Signature)
		if score < threshold {
			continue
		}
		if score > bestScore || (score == bestScore && best != nil && entry.LastAccessed.After(best.LastAccessed)) {
			best = entry
			bestScore = score
		}
	}
	return best, bestScore
}

// hitLocked materializes a Hit, decompressing the payload if needed.
func (c *ResponseCache) hitLocked(entry *Entry, similarity float64) *Hit {
	payload := entry.Payload
	if entry.compressed && len(payload) > 0 {
		decompressed, err := gunzip(payload)
		if err != nil {
			// Corrupt stored payload; the response reference is still valid
			c.logger.Warnw("Failed to decompress cached payload", "fingerprint", entry.Fingerprint, "error", err)
			payload = nil
		} else {
			payload = decompressed
		}
	}
	return &Hit{
		Fingerprint: entry.Fingerprint,
		Response:    entry.Response,
		Payload:     payload,
		Quality:     entry.Quality,
		Cost:        entry.Cost,
		Similarity:  similarity,
	}
}

// Store inserts or overwrites the response for a request. Overwrites keep the
// existing entry's hit count and creation time: only Lookup touches hit
// semantics. Insertion evicts lowest-scored entries until the cache is under
// its byte and item ceilings.
func (c *ResponseCache) Store(req fingerprint.Request, response string, payload []byte, cost, quality float64) error {
	stored := payload
	compressed := false
	if c.opts.Compress && len(payload) > 0 {
		gz, err := gzipBytes(payload)
		if err != nil {
			return errors.Wrap(err, "failed to compress payload")
		}
		// Keep whichever representation is smaller
		if len(gz) < len(payload) {
			stored = gz
			compressed = true
		}
	}

	fp := fingerprint.Key(req)
	size := int64(len(response) + len(stored))
	if size > c.opts.CapacityBytes {
		err := errors.Newf("entry exceeds cache capacity: %d > %d bytes", size, c.opts.CapacityBytes)
		return errors.WithDetailf(err, "Fingerprint: %s", fp)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.timeNow()
	entry := &Entry{
		Fingerprint:  fp,
		Signature:    fingerprint.Signature(req),
		Response:     response,
		Payload:      stored,
		Quality:      quality,
		Cost:         cost,
		SizeBytes:    size,
		LastAccessed: now,
		CreatedAt:    now,
		Tags:         append([]string(nil), req.Tags...),
		compressed:   compressed,
	}

	if existing, ok := c.entries[fp]; ok {
		entry.HitCount = existing.HitCount
		entry.CreatedAt = existing.CreatedAt
		c.removeLocked(existing)
	}

	c.entries[fp] = entry
	c.sizeBytes += entry.SizeBytes
	for _, tag := range entry.Tags {
		bucket := c.byTag[tag]
		if bucket == nil {
			bucket = make(map[string]struct{})
			c.byTag[tag] = bucket
		}
		bucket[fp] = struct{}{}
	}

	c.evictLocked()
	return nil
}

// score is the cost-benefit eviction rank for an entry:
// (hitCount + 1) × cost / (ageSeconds + 1). Higher scores are protected.
func score(e *Entry, now time.Time) float64 {
	age := now.Sub(e.CreatedAt).Seconds()
	if age < 0 {
		age = 0
	}
	return float64(e.HitCount+1) * e.Cost / (age + 1)
}

// evictLocked removes entries lowest-score-first until both capacity
// ceilings hold. Ties break by oldest last access.
func (c *ResponseCache) evictLocked() {
	if c.sizeBytes <= c.opts.CapacityBytes && len(c.entries) <= c.opts.CapacityItems {
		return
	}

	now := c.timeNow()
	ranked := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := score(ranked[i], now), score(ranked[j], now)
		if si != sj {
			return si < sj
		}
		return ranked[i].LastAccessed.Before(ranked[j].LastAccessed)
	})

	evicted := 0
	for _, e := range ranked {
		if c.sizeBytes <= c.opts.CapacityBytes && len(c.entries) <= c.opts.CapacityItems {
			break
		}
		c.removeLocked(e)
		evicted++
	}

	if evicted > 0 {
		c.opts.Metrics.RecordEviction(evicted)
		c.logger.Debugw("Evicted cache entries", "count", evicted, "size_bytes", c.sizeBytes, "items", len(c.entries))
	}
}

// removeLocked deletes an entry and its tag bucket references.
func (c *ResponseCache) removeLocked(e *Entry) {
	delete(c.entries, e.Fingerprint)
	c.sizeBytes -= e.SizeBytes
	for _, tag := range e.Tags {
		if bucket := c.byTag[tag]; bucket != nil {
			delete(bucket, e.Fingerprint)
			if len(bucket) == 0 {
				delete(c.byTag, tag)
			}
		}
	}
}

// Len returns the current entry count.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SizeBytes returns the current total stored size.
func (c *ResponseCache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sizeBytes
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
