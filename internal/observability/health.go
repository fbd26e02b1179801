package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// HealthResponse is the liveness body. DefinitionsChecksum changes whenever
// a reload swaps the loaded definitions.
type HealthResponse struct {
	Status              string `json:"status"`
	Version             string `json:"version"`
	Commit              string `json:"commit"`
	DefinitionsChecksum string `json:"definitions_checksum,omitempty"`
}

// ReadinessResponse is the readiness body.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Pinger reports whether a dependency is reachable. store.Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessChecks lists what must be up before traffic is accepted.
type ReadinessChecks struct {
	// DefinitionsLoaded always runs; a nil func reports not ready.
	DefinitionsLoaded func() bool

	// Store is optional.
	Store Pinger
}

const checkTimeout = 2 * time.Second

var errNoDefinitions = errors.New("no definitions loaded")

type namedCheck struct {
	name string
	run  func(context.Context) error
}

func (c ReadinessChecks) named() []namedCheck {
	checks := []namedCheck{{
		name: "definitions",
		run: func(context.Context) error {
			if c.DefinitionsLoaded == nil || !c.DefinitionsLoaded() {
				return errNoDefinitions
			}
			return nil
		},
	}}
	if c.Store != nil {
		checks = append(checks, namedCheck{name: "store", run: c.Store.Ping})
	}
	return checks
}

// HandleHealth returns the liveness handler. checksum may be nil.
func HandleHealth(checksum func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok", Version: Version, Commit: Commit}
		if checksum != nil {
			resp.DefinitionsChecksum = checksum()
		}
		writeHealth(w, http.StatusOK, resp)
	}
}

// HandleReady returns the readiness handler. Checks run concurrently, each
// bounded by its own timeout; any failure answers 503.
func HandleReady(checks ReadinessChecks) http.HandlerFunc {
	named := checks.named()
	return func(w http.ResponseWriter, r *http.Request) {
		results := make([]CheckResult, len(named))
		var wg sync.WaitGroup
		for i, c := range named {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = runCheck(r.Context(), c.run)
			}()
		}
		wg.Wait()

		resp := ReadinessResponse{Status: "ready", Checks: make(map[string]CheckResult, len(named))}
		status := http.StatusOK
		for i, c := range named {
			resp.Checks[c.name] = results[i]
			if results[i].Status != "ok" {
				resp.Status = "not_ready"
				status = http.StatusServiceUnavailable
			}
		}
		writeHealth(w, status, resp)
	}
}

func runCheck(parent context.Context, run func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(parent, checkTimeout)
	defer cancel()

	start := time.Now()
	err := run(ctx)
	res := CheckResult{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = "error"
		res.Error = err.Error()
	}
	return res
}

func writeHealth(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
