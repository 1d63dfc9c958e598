package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goRewards "github.com/MrEthical07/goRewards"
	"github.com/MrEthical07/goRewards/wallet"
)

type fakeSource struct {
	snapshot      goRewards.MetricsSnapshot
	eventsDropped uint64
	swrDropped    uint64
}

func (f fakeSource) MetricsSnapshot() goRewards.MetricsSnapshot { return f.snapshot }
func (f fakeSource) EventsDropped() uint64                      { return f.eventsDropped }
func (f fakeSource) SWRDropped() uint64                         { return f.swrDropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goRewards.MetricsSnapshot{
			Counters:   map[goRewards.MetricID]uint64{},
			Histograms: map[goRewards.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goRewards.MetricsSnapshot{
			Counters: map[goRewards.MetricID]uint64{
				goRewards.MetricSilentAuthSuccess: 7,
			},
			Histograms: map[goRewards.MetricID][]uint64{
				goRewards.MetricSilentAuthLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		eventsDropped: 2,
		swrDropped:    3,
	})

	out := exp.Render()
	if !strings.Contains(out, "gorewards_silent_auth_success_total 7") {
		t.Fatalf("expected silent_auth_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "gorewards_silent_auth_latency_seconds_bucket{le=\"0.05\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "gorewards_silent_auth_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "gorewards_events_dropped_total 2") {
		t.Fatalf("expected events dropped counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "gorewards_swr_dropped_total 3") {
		t.Fatalf("expected swr dropped counter in output, got:\n%s", out)
	}
}

func TestRenderDropsOnlyStillRendered(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goRewards.MetricsSnapshot{
			Counters:   map[goRewards.MetricID]uint64{},
			Histograms: map[goRewards.MetricID][]uint64{},
		},
		swrDropped: 1,
	})

	if out := exp.Render(); !strings.Contains(out, "gorewards_swr_dropped_total 1") {
		t.Fatalf("expected swr drops rendered with metrics disabled, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goRewards.MetricsSnapshot{
			Counters:   map[goRewards.MetricID]uint64{goRewards.MetricSilentAuthSuccess: 1},
			Histograms: map[goRewards.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestExporterReadsEngine(t *testing.T) {
	engine, err := goRewards.New().
		WithConfig(func() goRewards.Config {
			cfg := goRewards.DefaultConfig()
			cfg.API.BaseURL = "http://127.0.0.1:1"
			return cfg
		}()).
		WithSigner(wallet.NewLocalSigner()).
		WithAccounts(wallet.NewMemorySource()).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	out := NewPrometheusExporter(engine).Render()
	if !strings.Contains(out, "gorewards_silent_auth_success_total 0") {
		t.Fatalf("expected zero-valued counters from a fresh engine, got:\n%s", out)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goRewards.MetricsSnapshot{
			Counters: map[goRewards.MetricID]uint64{
				goRewards.MetricSilentAuthSuccess:   1000,
				goRewards.MetricSilentAuthSkipped:   4000,
				goRewards.MetricOptInStatusCacheHit: 800,
				goRewards.MetricSeasonCacheHit:      600,
				goRewards.MetricSeasonCacheMiss:     20,
				goRewards.MetricReauthFailure:       3,
			},
			Histograms: map[goRewards.MetricID][]uint64{
				goRewards.MetricSilentAuthLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
