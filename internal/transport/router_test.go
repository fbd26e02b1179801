package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/config"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/observability"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	return testutil.ToFloat64(c)
}

// --- Router tests ---

func TestNewRouter_health(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, "GET", "/health", nil)

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
	if len(body["definitions_checksum"]) != 64 {
		t.Errorf("definitions_checksum = %q, want a sha256 hex digest", body["definitions_checksum"])
	}
}

func TestNewRouter_ready(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, "GET", "/ready", nil)

	if w.Code != 200 {
		t.Errorf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
}

func TestNewRouter_metrics(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, "GET", "/metrics", nil)

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestNewRouter_routesAreRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := []struct {
		method string
		path   string
	}{
		{"GET", "/api/forms"},
		{"GET", "/api/forms/tickets"},
		{"GET", "/api/forms/tickets/fields"},
		{"GET", "/api/forms/tickets/fields/compatible"},
		{"POST", "/api/compatibility"},
		{"POST", "/api/mappings/auto"},
		{"POST", "/api/mappings/resolve"},
		{"GET", "/api/value-sources"},
		{"GET", "/api/fields/ticket_status/transitions"},
		{"POST", "/api/fields/ticket_status/transitions"},
		{"DELETE", "/api/fields/ticket_status/transitions"},
		{"POST", "/api/fields/ticket_status/transitions/sequential"},
		{"POST", "/api/fields/ticket_status/transitions/clear"},
		{"POST", "/api/fields/ticket_status/transitions/prune"},
		{"POST", "/api/fields/ticket_status/transitions/check"},
		{"GET", "/api/fields/ticket_status/transitions/graph"},
		{"PUT", "/api/fields/ticket_status/lifecycle"},
		{"POST", "/api/forms/tickets/records"},
		{"GET", "/api/forms/tickets/records"},
		{"GET", "/api/records/r-1"},
		{"POST", "/api/records/r-1/stage"},
		{"GET", "/api/records/r-1/history"},
		{"GET", "/api/workflows"},
		{"GET", "/api/workflows/close_creates_task"},
		{"POST", "/api/workflows/close_creates_task/validate"},
		{"GET", "/api/workflows/close_creates_task/graph"},
		{"POST", "/api/workflows/close_creates_task/nodes/task/preview"},
	}

	for _, tc := range routes {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := s.do(t, tc.method, tc.path, nil)
			if w.Code == http.StatusMethodNotAllowed || strings.Contains(w.Body.String(), "route not found") {
				t.Errorf("status = %d, body %s: route not registered", w.Code, w.Body.String())
			}
		})
	}
}

func TestNewRouter_unknownRoute(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, "GET", "/api/nothing-here", nil)
	if w.Code != 404 {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp errorBody
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Error.Code != model.ErrNotFound {
		t.Errorf("code = %q, want NOT_FOUND", resp.Error.Code)
	}
}

func TestNewRouter_recordsHTTPMetrics(t *testing.T) {
	s := newTestServer(t)
	s.do(t, "GET", "/api/forms", nil)
	s.do(t, "GET", "/api/forms", nil)

	got := counterValue(t, s.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/forms", "200"))
	if got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
}

// --- Middleware tests ---

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	mw := Recovery(zap.New(core))

	boom := serve(mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("rule table corrupt") })),
		httptest.NewRequest("POST", "/api/fields/ticket_status/transitions", nil))
	if boom.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 after panic", boom.Code)
	}
	if !strings.Contains(boom.Body.String(), model.ErrInternalError) {
		t.Errorf("body = %s, want an INTERNAL_ERROR envelope", boom.Body.String())
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Error("panic should be logged once")
	}

	if calm := serve(mw(okHandler), httptest.NewRequest("GET", "/api/forms", nil)); calm.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 without a panic", calm.Code)
	}
}

func TestCORS(t *testing.T) {
	cors := CORS(config.CORSConfig{
		AllowedOrigins: []string{"https://builder.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", HeaderActorID},
		MaxAge:         600,
	})
	tests := []struct {
		name        string
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantHeaders string
		wantCalled  bool
	}{
		{"preflight from builder", "OPTIONS", "https://builder.example.com", 204, "https://builder.example.com", "Content-Type, X-Actor-Id", false},
		{"request from builder", "GET", "https://builder.example.com", 200, "https://builder.example.com", "Content-Type, X-Actor-Id", true},
		{"foreign origin", "GET", "https://elsewhere.example.com", 200, "", "", true},
		{"no origin", "GET", "", 200, "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(tc.method, "/api/forms", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec := serve(cors(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })), req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if called != tc.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tc.wantCalled)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tc.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Headers"); got != tc.wantHeaders {
				t.Errorf("Allow-Headers = %q, want %q", got, tc.wantHeaders)
			}
			if rec.Header().Get("Vary") != "Origin" {
				t.Error("responses should vary on Origin")
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"propagated", "builder-7f3a", true},
		{"whitespace", "corr id", false},
		{"control byte", "corr\x01", false},
		{"too long", strings.Repeat("a", maxCorrelationID+1), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			req := httptest.NewRequest("GET", "/api/forms", nil)
			if tc.incoming != "" {
				req.Header.Set(HeaderCorrelationID, tc.incoming)
			}
			rec := serve(RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = CorrelationIDFrom(r.Context())
			})), req)

			if tc.keep && seen != tc.incoming {
				t.Errorf("correlation ID = %q, want %q", seen, tc.incoming)
			}
			if !tc.keep && len(seen) != 36 {
				t.Errorf("correlation ID = %q, want a fresh uuid", seen)
			}
			if got := rec.Header().Get(HeaderCorrelationID); got != seen {
				t.Errorf("response header = %q, want %q", got, seen)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := serve(SecurityHeaders(okHandler), httptest.NewRequest("GET", "/api/forms", nil))
	for _, kv := range securityHeaders {
		if got := rec.Header().Get(kv[0]); got != kv[1] {
			t.Errorf("%s = %q, want %q", kv[0], got, kv[1])
		}
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestBuildRequestContext(t *testing.T) {
	logger := zap.NewNop()
	handler := RequestID(BuildRequestContext(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			t.Fatal("RequestContext should be in context")
		}
		if rctx.ActorID != "agent-42" {
			t.Errorf("ActorID = %q, want agent-42", rctx.ActorID)
		}
		if rctx.Timezone != "Europe/Berlin" {
			t.Errorf("Timezone = %q, want Europe/Berlin", rctx.Timezone)
		}
		if rctx.CorrelationID != "corr-1" {
			t.Errorf("CorrelationID = %q, want corr-1", rctx.CorrelationID)
		}
		if observability.LoggerFrom(r.Context(), nil) != logger {
			t.Error("logger should be stored in the context")
		}
		w.WriteHeader(200)
	})))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderActorID, "  agent-42 ")
	req.Header.Set(HeaderTimezone, "Europe/Berlin")
	req.Header.Set(HeaderCorrelationID, "corr-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestBuildRequestContext_unknownTimezone(t *testing.T) {
	handler := BuildRequestContext(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx.Timezone != "" {
			t.Errorf("Timezone = %q, want empty", rctx.Timezone)
		}
		if rctx.Location() != time.UTC {
			t.Errorf("Location = %v, want UTC", rctx.Location())
		}
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderTimezone, "Mars/Olympus_Mons")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestHandlerTimeout_setsDeadline(t *testing.T) {
	handler := HandlerTimeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			t.Error("context should have a deadline")
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

func TestHandlerTimeout_zeroNoDeadline(t *testing.T) {
	handler := HandlerTimeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); ok {
			t.Error("context should not have a deadline")
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil).WithContext(context.Background()))
}

func TestRequestLogging_levelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{200, zapcore.InfoLevel},
		{404, zapcore.WarnLevel},
		{503, zapcore.ErrorLevel},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			handler := RequestLogging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/forms", nil))

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("entries = %d, want 1", len(entries))
			}
			if entries[0].Level != tc.level {
				t.Errorf("level = %v, want %v", entries[0].Level, tc.level)
			}
			if got := entries[0].ContextMap()["status"]; got != int64(tc.status) {
				t.Errorf("status field = %v, want %d", got, tc.status)
			}
		})
	}
}

func TestRequestLogging_routeAndBytes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := chi.NewRouter()
	r.Use(RequestLogging(zap.New(core)))
	r.Get("/api/forms/{formId}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/forms/tickets", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/api/forms/{formId}" {
		t.Errorf("route = %v", fields["route"])
	}
	if fields["bytes"] != int64(5) {
		t.Errorf("bytes = %v, want 5", fields["bytes"])
	}
	if fields["status"] != int64(200) {
		t.Errorf("status = %v, want 200", fields["status"])
	}
}

func TestSecurityHeaders_onHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, "GET", "/health", nil)

	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := w.Header().Get(HeaderCorrelationID); got == "" {
		t.Error("health should still get X-Correlation-Id")
	}
}
