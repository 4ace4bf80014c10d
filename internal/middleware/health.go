package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"
)

// HealthChecker is one dependency probe.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DatabaseHealthChecker pings the finding store.
type DatabaseHealthChecker struct {
	DB Pinger
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

// ReportDirChecker verifies the scanner report directory exists.
type ReportDirChecker struct {
	Dir string
}

func (c *ReportDirChecker) Check(context.Context) error {
	_, err := os.Stat(c.Dir)
	return err
}

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
}

type CheckStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}

// runChecks probes every checker concurrently under one deadline.
func runChecks(ctx context.Context, checkers map[string]HealthChecker) (map[string]CheckStatus, bool) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		healthy = true
		out     = make(map[string]CheckStatus, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := checker.Check(ctx)
			cs := CheckStatus{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				cs.Status, cs.Message = "unhealthy", err.Error()
			}
			mu.Lock()
			out[name] = cs
			if err != nil {
				healthy = false
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out, healthy
}

func writeStatus(w http.ResponseWriter, status HealthStatus, ok bool) {
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// HealthHandler reports every dependency with its latency.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks, ok := runChecks(r.Context(), checkers)
		status := HealthStatus{Status: "healthy", Timestamp: time.Now(), Checks: checks}
		if !ok {
			status.Status = "unhealthy"
		}
		writeStatus(w, status, ok)
	}
}

// ReadinessHandler is ready once the required checkers pass; details are omitted.
func ReadinessHandler(required map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ok := runChecks(r.Context(), required)
		status := HealthStatus{Status: "ready", Timestamp: time.Now()}
		if !ok {
			status.Status = "not ready"
		}
		writeStatus(w, status, ok)
	}
}

// LivenessHandler only proves the process serves requests.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
