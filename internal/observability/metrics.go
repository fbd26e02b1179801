package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "formconfig"

var (
	httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	bodySizeBuckets     = prometheus.ExponentialBuckets(128, 4, 7)
)

// Metrics holds the Prometheus instruments of the form configuration service.
// The recorders are no-ops on a nil *Metrics.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	TransitionEditsTotal     *prometheus.CounterVec
	StageChangesTotal        *prometheus.CounterVec
	CompatibilityChecksTotal *prometheus.CounterVec
	WorkflowValidationsTotal *prometheus.CounterVec
	WorkflowPreviewsTotal    *prometheus.CounterVec

	DefinitionReloadTotal *prometheus.CounterVec
	DefinitionsLoaded     *prometheus.GaugeVec
}

func newCounter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func newHistogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
}

// InitMetrics creates the instruments and registers them with reg.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal:     newCounter("http_requests_total", "HTTP requests by route and status.", "method", "path_pattern", "status"),
		HTTPRequestDuration:   newHistogram("http_request_duration_seconds", "HTTP request latency.", httpDurationBuckets, "method", "path_pattern"),
		HTTPRequestSizeBytes:  newHistogram("http_request_size_bytes", "HTTP request body size.", bodySizeBuckets, "method", "path_pattern"),
		HTTPResponseSizeBytes: newHistogram("http_response_size_bytes", "HTTP response body size.", bodySizeBuckets, "method", "path_pattern"),

		TransitionEditsTotal:     newCounter("transition_edits_total", "Transition rule edits by operation and outcome.", "operation", "outcome"),
		StageChangesTotal:        newCounter("stage_changes_total", "Record stage change requests by form and outcome.", "form_id", "outcome"),
		CompatibilityChecksTotal: newCounter("compatibility_checks_total", "Field compatibility checks by verdict.", "verdict"),
		WorkflowValidationsTotal: newCounter("workflow_validations_total", "Workflow validations by result.", "workflow_id", "result"),
		WorkflowPreviewsTotal:    newCounter("workflow_previews_total", "Workflow node previews by node type.", "node_type", "status"),

		DefinitionReloadTotal: newCounter("definition_reload_total", "Definition reloads by status.", "status"),
		DefinitionsLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "definitions_loaded",
			Help:      "Loaded forms, fields and workflows.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestSizeBytes, m.HTTPResponseSizeBytes,
		m.TransitionEditsTotal, m.StageChangesTotal, m.CompatibilityChecksTotal,
		m.WorkflowValidationsTotal, m.WorkflowPreviewsTotal,
		m.DefinitionReloadTotal, m.DefinitionsLoaded,
	)
	return m
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordTransitionEdit counts a rule edit. outcome is "applied", "noop" or
// "rejected".
func (m *Metrics) RecordTransitionEdit(operation, outcome string) {
	if m == nil {
		return
	}
	m.TransitionEditsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordStageChange counts a stage change request with the same outcomes.
func (m *Metrics) RecordStageChange(formID, outcome string) {
	if m == nil {
		return
	}
	m.StageChangesTotal.WithLabelValues(formID, outcome).Inc()
}

// RecordCompatibilityCheck records a compatibility verdict.
func (m *Metrics) RecordCompatibilityCheck(verdict string) {
	if m == nil {
		return
	}
	m.CompatibilityChecksTotal.WithLabelValues(verdict).Inc()
}

// RecordWorkflowValidation records a workflow validation; result is "valid"
// or "invalid".
func (m *Metrics) RecordWorkflowValidation(workflowID, result string) {
	if m == nil {
		return
	}
	m.WorkflowValidationsTotal.WithLabelValues(workflowID, result).Inc()
}

// RecordWorkflowPreview records a node preview.
func (m *Metrics) RecordWorkflowPreview(nodeType, status string) {
	if m == nil {
		return
	}
	m.WorkflowPreviewsTotal.WithLabelValues(nodeType, status).Inc()
}

// RecordDefinitionReload records a definition reload.
func (m *Metrics) RecordDefinitionReload(status string) {
	if m == nil {
		return
	}
	m.DefinitionReloadTotal.WithLabelValues(status).Inc()
}

// SetDefinitionsLoaded sets the number of loaded definitions of a kind
// ("forms", "fields" or "workflows").
func (m *Metrics) SetDefinitionsLoaded(kind string, count float64) {
	if m == nil {
		return
	}
	m.DefinitionsLoaded.WithLabelValues(kind).Set(count)
}

// MetricsMiddleware records request count, latency and body sizes labelled by
// the chi route pattern.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}
		m.RecordHTTPRequest(r.Method, routePattern(r), status, time.Since(start), reqSize, ww.BytesWritten())
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern is the matched chi pattern, or the raw path outside a router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
