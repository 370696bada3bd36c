// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the resolver core. All components are optional and nil-safe:
// when disabled, record calls are a single nil check.
package observability

import (
	"context"
	"fmt"
	"log/slog"
)

// Config enables individual observability features. A nil Config (or nil
// sub-config) disables the corresponding feature.
type Config struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Observability is the top-level facade. Any field may be nil when that
// feature is disabled.
type Observability struct {
	Metrics *MetricsCollector
	Tracer  *TracerSetup
}

// New creates an Observability instance from config. Returns nil when the
// config is nil (all features disabled).
func New(cfg *Config, logger *slog.Logger) (*Observability, error) {
	if cfg == nil {
		return nil, nil
	}

	obs := &Observability{}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		obs.Metrics = NewMetricsCollector()
	}

	if cfg.Tracing != nil && cfg.Tracing.Enabled {
		ts, err := NewTracerSetup(cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("initializing tracing: %w", err)
		}
		obs.Tracer = ts
	}

	if logger != nil {
		logger.Debug("observability initialized",
			"metrics", obs.Metrics != nil,
			"tracing", obs.Tracer != nil)
	}
	return obs, nil
}

// MetricsOrNil returns the metrics collector or nil when disabled.
func (o *Observability) MetricsOrNil() *MetricsCollector {
	if o == nil {
		return nil
	}
	return o.Metrics
}

// TracerOrNil returns the tracer setup or nil when disabled.
func (o *Observability) TracerOrNil() *TracerSetup {
	if o == nil {
		return nil
	}
	return o.Tracer
}

// Shutdown releases observability resources.
func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	if o.Tracer != nil {
		_ = o.Tracer.Shutdown(ctx)
	}
}
