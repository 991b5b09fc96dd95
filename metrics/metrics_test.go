package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	m.Login("success")
	m.Reissue("revoked")
	m.Authz("forbidden")
	m.Observe("login", time.Now())
	m.Request("/login", 200)
	m.RegisterGauge("x", "y", func() float64 { return 0 })
	if m.Registry() != nil {
		t.Fatal("expected nil registry")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestCountersByLabel(t *testing.T) {
	m := New()
	m.Login("success")
	m.Login("success")
	m.Login("invalid_credentials")
	m.Authz("forbidden")

	if got := testutil.ToFloat64(m.login.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful logins, got %v", got)
	}
	if got := testutil.ToFloat64(m.login.WithLabelValues("invalid_credentials")); got != 1 {
		t.Fatalf("expected 1 failed login, got %v", got)
	}
	if got := testutil.ToFloat64(m.authz.WithLabelValues("forbidden")); got != 1 {
		t.Fatalf("expected 1 forbidden decision, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Reissue("success")
	m.Request("/reissue", 503)
	m.RegisterGauge("audit_dropped", "Dropped audit events.", func() float64 { return 3 })

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	for _, want := range []string{
		`bootpractice_reissue_total{result="success"} 1`,
		`bootpractice_http_requests_total{code="5xx",route="/reissue"} 1`,
		`bootpractice_audit_dropped 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
