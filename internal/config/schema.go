package config

import "time"

// Config holds glean configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Provider ProviderCfg `mapstructure:"provider" yaml:"provider"`
	Gate     GateCfg     `mapstructure:"gate" yaml:"gate"`
	Pipeline PipelineCfg `mapstructure:"pipeline" yaml:"pipeline"`
}

// ProviderCfg configures the generation capability.
type ProviderCfg struct {
	Type           string  `mapstructure:"type" yaml:"type"`                       // "openai", "mock"
	Model          string  `mapstructure:"model" yaml:"model"`                     // Model name
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`                 // API key (supports ${ENV_VAR} syntax)
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`         // 0 = API default
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // Per-call timeout
}

// GateCfg configures the adaptive rate controller.
type GateCfg struct {
	InitialConcurrency int `mapstructure:"initial_concurrency" yaml:"initial_concurrency"`
	MinConcurrency     int `mapstructure:"min_concurrency" yaml:"min_concurrency"`
	MaxConcurrency     int `mapstructure:"max_concurrency" yaml:"max_concurrency"`

	// AdjustEvery is how many completed calls trigger an adjustment pass.
	AdjustEvery int `mapstructure:"adjust_every" yaml:"adjust_every"`
	// RateLimitThreshold is the hit count per adjustment window that
	// forces a backoff.
	RateLimitThreshold int `mapstructure:"rate_limit_threshold" yaml:"rate_limit_threshold"`
	// LatencyWindowMin is the minimum sample count for latency-based
	// adjustment.
	LatencyWindowMin int `mapstructure:"latency_window_min" yaml:"latency_window_min"`

	LatencyLowerSeconds float64 `mapstructure:"latency_lower_seconds" yaml:"latency_lower_seconds"`
	LatencyUpperSeconds float64 `mapstructure:"latency_upper_seconds" yaml:"latency_upper_seconds"`
}

// PipelineCfg configures orchestration.
type PipelineCfg struct {
	NumWorkers   int `mapstructure:"num_workers" yaml:"num_workers"`       // Chapter-level workers
	MaxChunkSize int `mapstructure:"max_chunk_size" yaml:"max_chunk_size"` // Chunk length bound in bytes

	// CollectTimeoutMinutes bounds result collection for a whole run.
	CollectTimeoutMinutes int `mapstructure:"collect_timeout_minutes" yaml:"collect_timeout_minutes"`
}

// Timeout returns the provider call timeout as a duration.
func (p ProviderCfg) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// LatencyLower returns the scale-up latency bound as a duration.
func (g GateCfg) LatencyLower() time.Duration {
	return time.Duration(g.LatencyLowerSeconds * float64(time.Second))
}

// LatencyUpper returns the scale-down latency bound as a duration.
func (g GateCfg) LatencyUpper() time.Duration {
	return time.Duration(g.LatencyUpperSeconds * float64(time.Second))
}

// CollectTimeout returns the run collection bound as a duration.
func (p PipelineCfg) CollectTimeout() time.Duration {
	return time.Duration(p.CollectTimeoutMinutes) * time.Minute
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderCfg{
			Type:           "openai",
			Model:          "gpt-4o-mini",
			APIKey:         "${OPENAI_API_KEY}",
			TimeoutSeconds: 180,
		},
		Gate: GateCfg{
			InitialConcurrency:  5,
			MinConcurrency:      1,
			MaxConcurrency:      20,
			AdjustEvery:         5,
			RateLimitThreshold:  2,
			LatencyWindowMin:    10,
			LatencyLowerSeconds: 5,
			LatencyUpperSeconds: 30,
		},
		Pipeline: PipelineCfg{
			NumWorkers:            3,
			MaxChunkSize:          8000,
			CollectTimeoutMinutes: 120,
		},
	}
}
