// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New(ctx) builds a Config with defaults.
//   - Load(ctx) layers a YAML file and BACULATOR_* env vars on top.
//   - Validate reports problems wrapped in ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
	_ "time/tzdata" // zone names must resolve on hosts without zoneinfo

	"github.com/okian/baculator/internal/domain/bac"
	"github.com/okian/baculator/pkg/metrics"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseDSN selects the PostgreSQL store; empty keeps everything in memory.
	DatabaseDSN string `koanf:"database_dsn"`

	// QueueSize bounds the in-memory refresh queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many drink idempotency keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// RefreshIntervalSeconds is the scheduler period.
	RefreshIntervalSeconds int `koanf:"refresh_interval_seconds"`

	// SessionIdleHours closes a session this long after its last drink.
	SessionIdleHours float64 `koanf:"session_idle_hours"`

	// Engine constants.
	GramsPerStandard         float64 `koanf:"grams_per_standard"`
	AbsorptionWindowMinutes  float64 `koanf:"absorption_window_minutes"`
	AbsorptionCurveSharpness float64 `koanf:"absorption_curve_sharpness"`
	EliminationRatePerHour   float64 `koanf:"elimination_rate_per_hour"`
	LegalLimit               float64 `koanf:"legal_limit"`
	ThresholdHorizonHours    float64 `koanf:"threshold_horizon_hours"`
	TimelineAfterNowHours    float64 `koanf:"timeline_after_now_hours"`

	// Timezone is the IANA zone used for timeline clock labels.
	Timezone string `koanf:"timezone"`

	// Prometheus naming. Labels and buckets are only settable from the file.
	MetricsNamespace        string            `koanf:"metrics_namespace"`
	MetricsSubsystem        string            `koanf:"metrics_subsystem"`
	MetricsConstLabels      map[string]string `koanf:"metrics_const_labels"`
	MetricsLatencyBucketsMs []float64         `koanf:"metrics_latency_buckets_ms"`
}

// New creates a Config with defaults. The context is accepted first to
// follow the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		QueueSize:                10_000,
		WorkerCount:              runtime.NumCPU(),
		DedupeSize:               50_000,
		RefreshIntervalSeconds:   60,
		SessionIdleHours:         12,
		GramsPerStandard:         10,
		AbsorptionWindowMinutes:  30,
		AbsorptionCurveSharpness: 3,
		EliminationRatePerHour:   0.015,
		LegalLimit:               0.05,
		ThresholdHorizonHours:    48,
		TimelineAfterNowHours:    8,
		Timezone:                 "Australia/Sydney",
		MetricsNamespace:         "baculator",
		MetricsSubsystem:         "engine",
	}
}

// RefreshInterval returns the scheduler period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// SessionIdleTimeout returns the idle auto-close timeout.
func (c *Config) SessionIdleTimeout() time.Duration {
	return hours(c.SessionIdleHours)
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	positive := []struct {
		name string
		v    float64
	}{
		{"queue_size", float64(c.QueueSize)},
		{"worker_count", float64(c.WorkerCount)},
		{"dedupe_size", float64(c.DedupeSize)},
		{"refresh_interval_seconds", float64(c.RefreshIntervalSeconds)},
		{"session_idle_hours", c.SessionIdleHours},
		{"grams_per_standard", c.GramsPerStandard},
		{"absorption_window_minutes", c.AbsorptionWindowMinutes},
		{"absorption_curve_sharpness", c.AbsorptionCurveSharpness},
		{"elimination_rate_per_hour", c.EliminationRatePerHour},
		{"legal_limit", c.LegalLimit},
		{"threshold_horizon_hours", c.ThresholdHorizonHours},
		{"timeline_after_now_hours", c.TimelineAfterNowHours},
	}
	for _, p := range positive {
		if !(p.v > 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, p.name, p.v)
		}
	}
	_, err := c.Location()
	return err
}

// EngineOptions converts the engine constants to bac options.
func (c *Config) EngineOptions() ([]bac.Option, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return []bac.Option{
		bac.WithGramsPerStandard(c.GramsPerStandard),
		bac.WithAbsorptionWindow(minutes(c.AbsorptionWindowMinutes)),
		bac.WithAbsorptionCurveSharpness(c.AbsorptionCurveSharpness),
		bac.WithEliminationRate(c.EliminationRatePerHour),
		bac.WithLegalLimit(c.LegalLimit),
		bac.WithThresholdHorizon(hours(c.ThresholdHorizonHours)),
		bac.WithTimelineAfterNow(hours(c.TimelineAfterNowHours)),
		bac.WithLocation(loc),
	}, nil
}

// MetricsOptions converts the metrics settings to manager options.
func (c *Config) MetricsOptions() []metrics.Option {
	return []metrics.Option{
		metrics.WithNamespace(c.MetricsNamespace),
		metrics.WithSubsystem(c.MetricsSubsystem),
		metrics.WithConstLabels(c.MetricsConstLabels),
		metrics.WithHistogramBuckets(c.MetricsLatencyBucketsMs),
	}
}

func hours(h float64) time.Duration   { return time.Duration(h * float64(time.Hour)) }
func minutes(m float64) time.Duration { return time.Duration(m * float64(time.Minute)) }
