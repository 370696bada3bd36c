package observability

import (
	"context"
	"testing"
	"time"
)

// --- No-op path ---

func TestNew_NilConfig(t *testing.T) {
	obs, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New(nil) error: %v", err)
	}
	if obs != nil {
		t.Fatal("expected nil Observability for nil config")
	}
}

func TestNew_AllDisabled(t *testing.T) {
	obs, err := New(&Config{}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if obs == nil {
		t.Fatal("expected non-nil Observability")
	}
	if obs.Metrics != nil {
		t.Error("metrics should be nil when not enabled")
	}
	if obs.Tracer != nil {
		t.Error("tracer should be nil when not enabled")
	}
}

func TestObservability_ShutdownNil(t *testing.T) {
	// Should not panic.
	var obs *Observability
	obs.Shutdown(context.Background())
}

func TestMetricsOrNil_Nil(t *testing.T) {
	var obs *Observability
	if obs.MetricsOrNil() != nil {
		t.Error("expected nil metrics from nil Observability")
	}
	if obs.TracerOrNil() != nil {
		t.Error("expected nil tracer from nil Observability")
	}
}

// --- MetricsCollector ---

func TestMetricsCollector_Created(t *testing.T) {
	m := NewMetricsCollector()
	if m == nil {
		t.Fatal("expected non-nil MetricsCollector")
	}
	if m.Registry == nil {
		t.Fatal("expected non-nil Registry")
	}

	m.RecordRPCRequest("secrets/get", "ok", 12*time.Millisecond)
	m.RecordSecretResolution("environment", "hit")
	m.RecordSecretWrite("keychain", "ok")
	m.RecordConfigLoad("native:user")
	m.RecordConfigWrite("rpc:vscode", "error")
	m.SetCachedProviders(3)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"openllm_rpc_requests_total",
		"openllm_rpc_request_duration_seconds",
		"openllm_secrets_resolutions_total",
		"openllm_secrets_writes_total",
		"openllm_config_loads_total",
		"openllm_config_writes_total",
		"openllm_config_cached_providers",
	} {
		if !names[want] {
			t.Errorf("metric family %q not gathered (got %v)", want, names)
		}
	}
}

func TestMetricsCollector_NilSafe(t *testing.T) {
	// Every record method must be callable on a nil collector.
	var m *MetricsCollector
	m.RecordRPCRequest("x", "ok", time.Millisecond)
	m.RecordSecretResolution("env", "miss")
	m.RecordSecretWrite("keychain", "ok")
	m.RecordConfigLoad("native:user")
	m.RecordConfigWrite("native:user", "ok")
	m.SetCachedProviders(0)
}

// --- Tracing ---

func TestNewTracerSetup_Disabled(t *testing.T) {
	ts, err := NewTracerSetup(&TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewTracerSetup: %v", err)
	}
	if ts != nil {
		t.Error("expected nil setup when disabled")
	}
}

func TestTracerSetup_NilFallbacks(t *testing.T) {
	var ts *TracerSetup
	if ts.Tracer() == nil {
		t.Error("nil setup should return a noop tracer")
	}
	if err := ts.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Shutdown: %v", err)
	}
}
