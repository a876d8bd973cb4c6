package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DoubleRegisterPanics は同一レジストリへの二重登録がpanicすることを検証する。
func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}

func TestRecordGeneration_CountsAndObserves(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGeneration("generate_image", "success", 12*time.Second)
	c.RecordGeneration("generate_image", "success", 3*time.Second)
	c.RecordGeneration("generate_image", "error", time.Second)

	success := findMetric(t, reg, "growthdesk_generation_total", map[string]string{"operation": "generate_image", "result": "success"})
	if v := success.GetCounter().GetValue(); v != 2 {
		t.Errorf("generation_total{success} = %v, want 2", v)
	}

	latency := findMetric(t, reg, "growthdesk_generation_latency_seconds", map[string]string{"operation": "generate_image"})
	if n := latency.GetHistogram().GetSampleCount(); n != 3 {
		t.Errorf("latency sample count = %d, want 3", n)
	}
	if s := latency.GetHistogram().GetSampleSum(); s != 16 {
		t.Errorf("latency sample sum = %v, want 16", s)
	}
}

func TestRecordApprovalRejection(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordApprovalRejection("image", "not_approved")

	m := findMetric(t, reg, "growthdesk_approval_rejected_total", map[string]string{"stage": "image", "reason": "not_approved"})
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("approval_rejected_total = %v, want 1", v)
	}
}

func TestRecordAuthEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthEvent("login", "failure")
	c.RecordAuthEvent("login", "failure")
	c.RecordAuthEvent("login", "success")

	m := findMetric(t, reg, "growthdesk_auth_events_total", map[string]string{"event": "login", "result": "failure"})
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("auth_events_total{failure} = %v, want 2", v)
	}
}

func TestRecordHTTPStatus_RecordsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(403)

	ok := findMetric(t, reg, "growthdesk_http_status_total", map[string]string{"status_code": "200"})
	if v := ok.GetCounter().GetValue(); v != 2 {
		t.Errorf("http_status_total{200} = %v, want 2", v)
	}
	forbidden := findMetric(t, reg, "growthdesk_http_status_total", map[string]string{"status_code": "403"})
	if v := forbidden.GetCounter().GetValue(); v != 1 {
		t.Errorf("http_status_total{403} = %v, want 1", v)
	}
}

func TestRecordRateLimited(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRateLimited("image")

	m := findMetric(t, reg, "growthdesk_rate_limited_total", map[string]string{"tier": "image"})
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("rate_limited_total = %v, want 1", v)
	}
}

// TestHandler_ServesMetrics はスクレイプ用ハンドラーがメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAuthEvent("signup", "success")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `growthdesk_auth_events_total{event="signup",result="success"} 1`) {
		t.Errorf("response should contain auth event metric, got:\n%s", body)
	}
}
