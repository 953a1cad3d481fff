package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"irbridge/internal/runtime/supervisor"
	logx "irbridge/pkg/logx"
)

func TestCounters(t *testing.T) {
	t.Parallel()
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Published("living", "exec")
	m.Published("living", "exec")
	m.PublishFailed("bed")
	m.TranslationFailed("validation")
	m.AuthRejected()
	m.DeviceMessage("living", "tasks")
	m.StateSaveFailed(errors.New("disk full"))

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"published", testutil.ToFloat64(m.published.WithLabelValues("living", "exec")), 2},
		{"publish failures", testutil.ToFloat64(m.publishFailed.WithLabelValues("bed")), 1},
		{"translation failures", testutil.ToFloat64(m.translateFail.WithLabelValues("validation")), 1},
		{"auth rejections", testutil.ToFloat64(m.authRejected), 1},
		{"device messages", testutil.ToFloat64(m.deviceMessages.WithLabelValues("living", "tasks")), 1},
		{"save failures", testutil.ToFloat64(m.saveFailures), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.Published("d", "exec")
	m.AuthRejected()
	m.DeviceMessage("d", "simple")
	if m.Registry() != nil {
		t.Fatalf("Registry() on nil = non-nil")
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	t.Parallel()
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.AuthRejected()
	s := NewServer(m, logx.Nop())
	ts := httptest.NewServer(s.Handler(ServerConfig{}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "irbridge_auth_rejections_total 1") {
		t.Fatalf("/metrics missing auth counter:\n%s", body)
	}

	resp, err = ts.Client().Get(ts.URL + "/debug/pprof/")
	if err != nil {
		t.Fatalf("GET pprof: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("pprof status = %d, want 404 when disabled", resp.StatusCode)
	}
}

func TestServerDisabledIsIdle(t *testing.T) {
	t.Parallel()
	s := NewServer(nil, logx.Nop())
	s.Reconfigure(context.Background(), ServerConfig{Enabled: false})
	if s.Supervisor() != nil {
		t.Fatalf("Supervisor() = non-nil for disabled server")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"127.0.0.1:9464": true,
		"localhost:1":    true,
		"[::1]:9464":     true,
		":9464":          false,
		"0.0.0.0:9464":   false,
		"bad":            false,
	}
	for in, want := range tests {
		if got := isLoopbackAddr(in); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWatchSupervisor(t *testing.T) {
	t.Parallel()
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sup := supervisor.New(context.Background())
	defer sup.Cancel()

	m.WatchSupervisor(sup)
	m.WatchSupervisor(sup)

	n, err := testutil.GatherAndCount(m.Registry(), "irbridge_goroutines_supervised", "irbridge_goroutine_panics_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("series = %d, want 2", n)
	}
}
