package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)
	return m, reg
}

func TestInitMetrics_gathersNamespacedFamilies(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordHTTPRequest("GET", "/api/forms", 200, time.Millisecond, 0, 100)
	m.RecordTransitionEdit("add", "applied")
	m.RecordStageChange("tickets", "applied")
	m.RecordCompatibilityCheck("compatible")
	m.RecordWorkflowValidation("wf-1", "valid")
	m.RecordWorkflowPreview("create_record", "ok")
	m.RecordDefinitionReload("ok")
	m.SetDefinitionsLoaded("forms", 5)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) != 11 {
		t.Errorf("families = %d, want 11", len(families))
	}
	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), "formconfig_") {
			t.Errorf("metric %q is outside the formconfig namespace", f.GetName())
		}
	}
	if n, err := testutil.GatherAndCount(reg, "formconfig_stage_changes_total"); err != nil || n != 1 {
		t.Errorf("stage change series = %d (err %v), want 1", n, err)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordHTTPRequest("GET", "/api/forms/{formId}/fields", 200, 50*time.Millisecond, 0, 1024)
	m.RecordHTTPRequest("GET", "/api/forms/{formId}/fields", 200, 100*time.Millisecond, 0, 2048)
	m.RecordHTTPRequest("POST", "/api/records/{recordId}/stage", 409, 200*time.Millisecond, 512, 256)

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/forms/{formId}/fields", "200"))
	if val != 2 {
		t.Errorf("GET requests = %v, want 2", val)
	}
	val = testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/records/{recordId}/stage", "409"))
	if val != 1 {
		t.Errorf("POST requests = %v, want 1", val)
	}
}

func TestRecorders(t *testing.T) {
	tests := []struct {
		name   string
		record func(m *Metrics)
		metric func(m *Metrics) prometheus.Collector
		want   float64
	}{
		{
			name: "transition edits by operation and outcome",
			record: func(m *Metrics) {
				m.RecordTransitionEdit("add", "applied")
				m.RecordTransitionEdit("add", "applied")
				m.RecordTransitionEdit("add", "noop")
			},
			metric: func(m *Metrics) prometheus.Collector { return m.TransitionEditsTotal.WithLabelValues("add", "applied") },
			want:   2,
		},
		{
			name: "rejected stage changes per form",
			record: func(m *Metrics) {
				m.RecordStageChange("tickets", "applied")
				m.RecordStageChange("tickets", "rejected")
				m.RecordStageChange("tickets", "rejected")
				m.RecordStageChange("tasks", "rejected")
			},
			metric: func(m *Metrics) prometheus.Collector { return m.StageChangesTotal.WithLabelValues("tickets", "rejected") },
			want:   2,
		},
		{
			name:   "compatibility verdicts",
			record: func(m *Metrics) { m.RecordCompatibilityCheck("incompatible") },
			metric: func(m *Metrics) prometheus.Collector { return m.CompatibilityChecksTotal.WithLabelValues("incompatible") },
			want:   1,
		},
		{
			name:   "workflow validations",
			record: func(m *Metrics) { m.RecordWorkflowValidation("close_creates_task", "invalid") },
			metric: func(m *Metrics) prometheus.Collector {
				return m.WorkflowValidationsTotal.WithLabelValues("close_creates_task", "invalid")
			},
			want: 1,
		},
		{
			name:   "node previews",
			record: func(m *Metrics) { m.RecordWorkflowPreview("change_field_value", "ok") },
			metric: func(m *Metrics) prometheus.Collector { return m.WorkflowPreviewsTotal.WithLabelValues("change_field_value", "ok") },
			want:   1,
		},
		{
			name: "failed reloads",
			record: func(m *Metrics) {
				m.RecordDefinitionReload("ok")
				m.RecordDefinitionReload("error")
			},
			metric: func(m *Metrics) prometheus.Collector { return m.DefinitionReloadTotal.WithLabelValues("error") },
			want:   1,
		},
		{
			name: "loaded fields gauge keeps the last value",
			record: func(m *Metrics) {
				m.SetDefinitionsLoaded("fields", 12)
				m.SetDefinitionsLoaded("fields", 9)
			},
			metric: func(m *Metrics) prometheus.Collector { return m.DefinitionsLoaded.WithLabelValues("fields") },
			want:   9,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMetrics(t)
			tt.record(m)
			if got := testutil.ToFloat64(tt.metric(m)); got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetrics_nilSafe(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond, 0, 0)
	m.RecordTransitionEdit("add", "applied")
	m.RecordStageChange("f", "allowed")
	m.RecordCompatibilityCheck("identical")
	m.RecordWorkflowValidation("wf", "valid")
	m.RecordWorkflowPreview("create_record", "ok")
	m.RecordDefinitionReload("success")
	m.SetDefinitionsLoaded("forms", 1)
}

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		mount   func(r chi.Router, h http.HandlerFunc)
		method  string
		path    string
		handler http.HandlerFunc
		labels  []string
	}{
		{
			name:    "route pattern instead of path",
			mount:   func(r chi.Router, h http.HandlerFunc) { r.Get("/api/forms/{formId}/fields", h) },
			method:  http.MethodGet,
			path:    "/api/forms/tickets/fields",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) },
			labels:  []string{"GET", "/api/forms/{formId}/fields", "200"},
		},
		{
			name:    "explicit status",
			mount:   func(r chi.Router, h http.HandlerFunc) { r.Post("/api/fields/{fieldId}/transitions", h) },
			method:  http.MethodPost,
			path:    "/api/fields/ticket_status/transitions",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadRequest) },
			labels:  []string{"POST", "/api/fields/{fieldId}/transitions", "400"},
		},
		{
			name: "mounted sub-router",
			mount: func(r chi.Router, h http.HandlerFunc) {
				r.Route("/api", func(r chi.Router) { r.Get("/records/{recordId}", h) })
			},
			method:  http.MethodGet,
			path:    "/api/records/r-1",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			labels:  []string{"GET", "/api/records/{recordId}", "200"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMetrics(t)
			r := chi.NewRouter()
			r.Use(m.MetricsMiddleware)
			tt.mount(r, tt.handler)

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))

			if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(tt.labels...)); got != 1 {
				t.Errorf("requests%v = %v, want 1", tt.labels, got)
			}
		})
	}
}

func TestMetricsMiddleware_responseSize(t *testing.T) {
	m, _ := newTestMetrics(t)
	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/api/forms", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/forms", nil))

	if n := testutil.CollectAndCount(m.HTTPResponseSizeBytes); n != 1 {
		t.Errorf("response size series = %d, want 1", n)
	}
}

func TestMetricsMiddleware_outsideRouter(t *testing.T) {
	m, _ := newTestMetrics(t)
	handler := m.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/raw/path", nil))

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/raw/path", "200")); got != 1 {
		t.Errorf("raw path requests = %v, want 1", got)
	}
}

func TestHandler_servesRuntimeMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("default registry should expose go runtime metrics")
	}
}
