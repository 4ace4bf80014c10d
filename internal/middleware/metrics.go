package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	IngestsTotal       uint64
	IngestsFailed      uint64
	FindingsIngested   uint64
	AsksTotal          uint64
	QueriesRejected    uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementRequests increments total requests counter
func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// RecordIngest counts one category ingestion and the findings it committed.
func RecordIngest(findings int, err error) {
	atomic.AddUint64(&globalMetrics.IngestsTotal, 1)
	if err != nil {
		atomic.AddUint64(&globalMetrics.IngestsFailed, 1)
		return
	}
	atomic.AddUint64(&globalMetrics.FindingsIngested, uint64(findings))
}

// RecordAsk counts one conversation turn; queryRejected is set when generated
// SQL did not reach execution.
func RecordAsk(queryRejected bool) {
	atomic.AddUint64(&globalMetrics.AsksTotal, 1)
	if queryRejected {
		atomic.AddUint64(&globalMetrics.QueriesRejected, 1)
	}
}

// GetMetrics returns current metrics
func GetMetrics() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]any{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"ingests_total":        atomic.LoadUint64(&globalMetrics.IngestsTotal),
		"ingests_failed":       atomic.LoadUint64(&globalMetrics.IngestsFailed),
		"findings_ingested":    atomic.LoadUint64(&globalMetrics.FindingsIngested),
		"asks_total":           atomic.LoadUint64(&globalMetrics.AsksTotal),
		"queries_rejected":     atomic.LoadUint64(&globalMetrics.QueriesRejected),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GetMetrics())
}
