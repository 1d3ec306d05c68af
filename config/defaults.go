package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "evergreen.db")

	// Scheduler defaults
	v.SetDefault("scheduler.max_concurrent_jobs", 2)
	v.SetDefault("scheduler.max_batch_size", 1) // Batching off unless the provider supports it
	v.SetDefault("scheduler.max_cost_per_hour", 5.0)
	v.SetDefault("scheduler.max_memory_mb", 2048)
	v.SetDefault("scheduler.provider_calls_per_minute", 30)
	v.SetDefault("scheduler.poll_interval_ms", 250)
	v.SetDefault("scheduler.retry.max_retries", 3)
	v.SetDefault("scheduler.retry.base_delay_ms", 1000)
	v.SetDefault("scheduler.retry.max_delay_ms", 60000)

	// Cache defaults
	v.SetDefault("cache.capacity_bytes", int64(256*1024*1024)) // 256 MB
	v.SetDefault("cache.capacity_items", 4096)
	v.SetDefault("cache.default_similarity_threshold", 0.85)
	v.SetDefault("cache.compress", false)

	// Logging defaults
	v.SetDefault("logging.json", false)
}
