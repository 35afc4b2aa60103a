package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordMessage("tool")
	m.RecordMessage("tool")
	m.RecordRateLimited()
	m.RecordPlannerError()
	m.RecordToolCall("get_weather", OutcomeSuccess, 200*time.Millisecond)
	m.RecordToolCall("get_weather", OutcomeTimeout, 0)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	m.SetProviderUp("pixellab", true)
	m.SetProviderUp("tools-python", false)
	m.SetCacheEntries(4)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"messages", testutil.ToFloat64(m.MessagesTotal.WithLabelValues("tool")), 2},
		{"rate limited", testutil.ToFloat64(m.RateLimitedTotal), 1},
		{"planner errors", testutil.ToFloat64(m.PlannerErrors), 1},
		{"tool success", testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("get_weather", OutcomeSuccess)), 1},
		{"tool timeout", testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("get_weather", OutcomeTimeout)), 1},
		{"cache hit", testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")), 1},
		{"cache miss", testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")), 2},
		{"provider up", testutil.ToFloat64(m.ProviderUp.WithLabelValues("pixellab")), 1},
		{"provider down", testutil.ToFloat64(m.ProviderUp.WithLabelValues("tools-python")), 0},
		{"cache entries", testutil.ToFloat64(m.CacheEntries), 4},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordMessage("x")
	m.RecordRateLimited()
	m.RecordPlannerError()
	m.RecordToolCall("t", OutcomeFailure, time.Second)
	m.RecordCacheLookup(true)
	m.SetProviderUp("p", true)
	m.SetCacheEntries(1)
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordRateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "spritebot_rate_limited_total 1") {
		t.Errorf("metrics output missing counter:\n%s", rec.Body.String())
	}
}
