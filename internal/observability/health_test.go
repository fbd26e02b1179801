package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/store"
)

func TestHandleHealth(t *testing.T) {
	origVersion, origCommit := Version, Commit
	Version, Commit = "1.2.3", "abc1234"
	t.Cleanup(func() { Version, Commit = origVersion, origCommit })

	tests := []struct {
		name     string
		checksum func() string
		want     HealthResponse
	}{
		{"without catalogue", nil, HealthResponse{Status: "ok", Version: "1.2.3", Commit: "abc1234"}},
		{"with checksum", func() string { return "9f2c" }, HealthResponse{Status: "ok", Version: "1.2.3", Commit: "abc1234", DefinitionsChecksum: "9f2c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleHealth(tt.checksum).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if resp != tt.want {
				t.Errorf("resp = %+v, want %+v", resp, tt.want)
			}
		})
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func ready(t *testing.T, checks ReadinessChecks) (int, ReadinessResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	HandleReady(checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var resp ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return rec.Code, resp
}

func TestHandleReady(t *testing.T) {
	loaded := func() bool { return true }
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     ReadinessChecks
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "definitions only",
			checks:     ReadinessChecks{DefinitionsLoaded: loaded},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
			wantChecks: map[string]string{"definitions": "ok"},
		},
		{
			name:       "definitions and store",
			checks:     ReadinessChecks{DefinitionsLoaded: loaded, Store: up},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
			wantChecks: map[string]string{"definitions": "ok", "store": "ok"},
		},
		{
			name:       "store down",
			checks:     ReadinessChecks{DefinitionsLoaded: loaded, Store: down},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
			wantChecks: map[string]string{"definitions": "ok", "store": "error"},
		},
		{
			name:       "definitions missing",
			checks:     ReadinessChecks{DefinitionsLoaded: func() bool { return false }, Store: up},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
			wantChecks: map[string]string{"definitions": "error", "store": "ok"},
		},
		{
			name:       "nil checker",
			checks:     ReadinessChecks{},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
			wantChecks: map[string]string{"definitions": "error"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := ready(t, tt.checks)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Errorf("checks = %v, want %v", resp.Checks, tt.wantChecks)
			}
			for name, want := range tt.wantChecks {
				if got := resp.Checks[name].Status; got != want {
					t.Errorf("%s = %q, want %q", name, got, want)
				}
				if resp.Checks[name].LatencyMs < 0 {
					t.Errorf("%s latency = %d, should be >= 0", name, resp.Checks[name].LatencyMs)
				}
			}
		})
	}
}

func TestHandleReady_storeErrorMessage(t *testing.T) {
	_, resp := ready(t, ReadinessChecks{
		DefinitionsLoaded: func() bool { return true },
		Store:             pingFunc(func(context.Context) error { return errors.New("pg down") }),
	})
	if resp.Checks["store"].Error != "pg down" {
		t.Errorf("store error = %q, want pg down", resp.Checks["store"].Error)
	}
}

func TestHandleReady_redisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s := store.NewRedisStore(mr.Addr(), 0)
	t.Cleanup(func() { _ = s.Close() })

	checks := ReadinessChecks{DefinitionsLoaded: func() bool { return true }, Store: s}
	if code, _ := ready(t, checks); code != http.StatusOK {
		t.Fatalf("code = %d, want 200", code)
	}

	mr.Close()
	code, resp := ready(t, checks)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503 after redis stops", code)
	}
	if resp.Checks["store"].Error == "" {
		t.Error("store error should carry the ping failure")
	}
}
