package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bootpractice"

// Metrics holds every collector. Build with New.
type Metrics struct {
	reg *prometheus.Registry

	login    *prometheus.CounterVec
	reissue  *prometheus.CounterVec
	logout   *prometheus.CounterVec
	signup   *prometheus.CounterVec
	authn    *prometheus.CounterVec
	authz    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		login: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "login_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		reissue: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reissue_total",
			Help: "Refresh token reissue attempts by result.",
		}, []string{"result"}),
		logout: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "logout_total",
			Help: "Logout calls by result.",
		}, []string{"result"}),
		signup: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signup_total",
			Help: "Signup attempts by result.",
		}, []string{"result"}),
		authn: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "authn_total",
			Help: "Per-request access token checks by result.",
		}, []string{"result"}),
		authz: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "authz_total",
			Help: "Authorization decisions by outcome.",
		}, []string{"decision"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "operation_duration_seconds",
			Help:    "Duration of engine operations.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}
}

// Registry returns the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Login(result string) {
	if m != nil {
		m.login.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Reissue(result string) {
	if m != nil {
		m.reissue.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Logout(result string) {
	if m != nil {
		m.logout.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Signup(result string) {
	if m != nil {
		m.signup.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Authn(result string) {
	if m != nil {
		m.authn.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Authz(decision string) {
	if m != nil {
		m.authz.WithLabelValues(decision).Inc()
	}
}

// Observe records how long op took since start.
func (m *Metrics) Observe(op string, start time.Time) {
	if m != nil {
		m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Request(route string, code int) {
	if m != nil {
		m.requests.WithLabelValues(route, statusLabel(code)).Inc()
	}
}

// RegisterGauge exposes fn as a gauge, e.g. the audit drop counter.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: name, Help: help,
	}, fn)
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
