package config

import "github.com/HollandsP/Evergreen-sub003/errors"

// Validate checks that the configuration is valid.
// Configuration errors are the only errors fatal to a scheduler instance,
// so every ceiling is checked here rather than at dispatch time.
func (c *Config) Validate() error {
	if c.Scheduler.MaxConcurrentJobs <= 0 {
		return errors.Newf("scheduler.max_concurrent_jobs must be > 0, got %d", c.Scheduler.MaxConcurrentJobs)
	}
	if c.Scheduler.MaxBatchSize <= 0 {
		return errors.Newf("scheduler.max_batch_size must be > 0, got %d", c.Scheduler.MaxBatchSize)
	}

	// Cost/memory ceilings: 0 = unlimited, negative = invalid
	if c.Scheduler.MaxCostPerHour < 0 {
		return errors.Newf("scheduler.max_cost_per_hour must be >= 0, got %f", c.Scheduler.MaxCostPerHour)
	}
	if c.Scheduler.MaxMemoryMB < 0 {
		return errors.Newf("scheduler.max_memory_mb must be >= 0, got %d", c.Scheduler.MaxMemoryMB)
	}
	if c.Scheduler.ProviderCallsPerMinute < 0 {
		return errors.Newf("scheduler.provider_calls_per_minute must be >= 0, got %d", c.Scheduler.ProviderCallsPerMinute)
	}
	if c.Scheduler.PollIntervalMs <= 0 {
		return errors.Newf("scheduler.poll_interval_ms must be > 0, got %d", c.Scheduler.PollIntervalMs)
	}

	if c.Scheduler.Retry.MaxRetries < 0 {
		return errors.Newf("scheduler.retry.max_retries must be >= 0, got %d", c.Scheduler.Retry.MaxRetries)
	}
	if c.Scheduler.Retry.BaseDelayMs <= 0 {
		return errors.Newf("scheduler.retry.base_delay_ms must be > 0, got %d", c.Scheduler.Retry.BaseDelayMs)
	}
	if c.Scheduler.Retry.MaxDelayMs < c.Scheduler.Retry.BaseDelayMs {
		return errors.Newf("scheduler.retry.max_delay_ms must be >= base_delay_ms, got %d < %d",
			c.Scheduler.Retry.MaxDelayMs, c.Scheduler.Retry.BaseDelayMs)
	}

	if c.Cache.CapacityBytes <= 0 {
		return errors.Newf("cache.capacity_bytes must be > 0, got %d", c.Cache.CapacityBytes)
	}
	if c.Cache.CapacityItems <= 0 {
		return errors.Newf("cache.capacity_items must be > 0, got %d", c.Cache.CapacityItems)
	}
	if c.Cache.DefaultSimilarityThreshold <= 0 || c.Cache.DefaultSimilarityThreshold > 1 {
		return errors.Newf("cache.default_similarity_threshold must be in (0, 1], got %f", c.Cache.DefaultSimilarityThreshold)
	}

	return nil
}
