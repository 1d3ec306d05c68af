// Package config manages Evergreen configuration via Viper.
package config

import "time"

// Config represents the core Evergreen configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig configures the SQLite job store
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig configures the job scheduler and its resource ceilings
type SchedulerConfig struct {
	// Worker concurrency: hard ceiling on simultaneously running jobs
	MaxConcurrentJobs int `mapstructure:"max_concurrent_jobs"`

	// Jobs that may be grouped into one provider call when the provider
	// supports batch dispatch. 1 disables batching.
	MaxBatchSize int `mapstructure:"max_batch_size"`

	// Spend ceiling over a sliding one-hour window, in USD. 0 = unlimited.
	MaxCostPerHour float64 `mapstructure:"max_cost_per_hour"`

	// Memory ceiling for the sum of running jobs' estimates. 0 = unlimited.
	MaxMemoryMB int `mapstructure:"max_memory_mb"`

	// Provider call pacing: max Invoke calls per minute. 0 = unlimited.
	ProviderCallsPerMinute int `mapstructure:"provider_calls_per_minute"`

	// How often each worker checks for ready jobs
	PollIntervalMs int `mapstructure:"poll_interval_ms"`

	Retry RetryConfig `mapstructure:"retry"`
}

// RetryConfig configures retry behaviour for transient provider failures
type RetryConfig struct {
	MaxRetries  int `mapstructure:"max_retries"`
	BaseDelayMs int `mapstructure:"base_delay_ms"`
	MaxDelayMs  int `mapstructure:"max_delay_ms"`
}

// CacheConfig configures the response cache
type CacheConfig struct {
	CapacityBytes int64 `mapstructure:"capacity_bytes"`
	CapacityItems int   `mapstructure:"capacity_items"`

	// Similarity threshold used when a lookup does not supply one.
	// 1.0 restricts lookups to exact fingerprint matches.
	DefaultSimilarityThreshold float64 `mapstructure:"default_similarity_threshold"`

	// Gzip compression of stored payloads. Lookup semantics are unaffected.
	Compress bool `mapstructure:"compress"`
}

// LoggingConfig configures log output
type LoggingConfig struct {
	JSON bool `mapstructure:"json"`
}

// PollInterval returns the worker poll interval as a duration.
func (s SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

// BaseDelay returns the retry base delay as a duration.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the retry delay cap as a duration.
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}
