package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
	"github.com/bryanwahyu/scan-insight/internal/middleware"
)

func echoClient() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(middleware.ClientFromContext(r.Context())))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	keys := map[string]string{"ci": "secret-1", "ops": "secret-2"}
	h := middleware.APIKeyAuth(keys)(echoClient())

	cases := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"bearer", "/v1/threads", "Bearer secret-2", http.StatusOK, "ops"},
		{"raw key", "/v1/threads", "secret-1", http.StatusOK, "ci"},
		{"missing", "/v1/threads", "", http.StatusUnauthorized, ""},
		{"wrong", "/v1/threads", "Bearer nope", http.StatusUnauthorized, ""},
		{"probe", "/health", "", http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestAPIKeyAuth_DisabledWithoutKeys(t *testing.T) {
	h := middleware.APIKeyAuth(nil)(echoClient())
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/summary/all", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogger(t *testing.T) {
	// given
	core, logs := observer.New(zap.InfoLevel)
	h := middleware.RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))

	// when
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/threads", nil))

	// then
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/v1/threads", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, 2, fields["bytes"])
}

func TestRateLimitMiddleware(t *testing.T) {
	h := middleware.NewRateLimiter(2, 0).Middleware(echoClient())
	call := func(path, addr string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// port changes do not reset the bucket
	assert.Equal(t, http.StatusOK, call("/v1/summary/all", "10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("/v1/summary/all", "10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("/v1/summary/all", "10.0.0.1:1002"))

	assert.Equal(t, http.StatusOK, call("/v1/summary/all", "10.0.0.2:1000"))
	assert.Equal(t, http.StatusOK, call("/health", "10.0.0.1:1003"))
}

func TestMetrics(t *testing.T) {
	before := middleware.GetMetrics()

	middleware.RecordIngest(7, nil)
	middleware.RecordIngest(0, errors.New("boom"))
	middleware.RecordAsk(true)
	middleware.RecordAsk(false)

	after := middleware.GetMetrics()
	delta := func(k string) uint64 { return after[k].(uint64) - before[k].(uint64) }
	assert.Equal(t, uint64(2), delta("ingests_total"))
	assert.Equal(t, uint64(1), delta("ingests_failed"))
	assert.Equal(t, uint64(7), delta("findings_ingested"))
	assert.Equal(t, uint64(2), delta("asks_total"))
	assert.Equal(t, uint64(1), delta("queries_rejected"))
}

func TestMetricsHandler(t *testing.T) {
	h := middleware.MetricsMiddleware(http.HandlerFunc(middleware.MetricsHandler))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "asks_total")
	assert.Contains(t, body, "uptime_seconds")
}

type checkFunc func(context.Context) error

func (f checkFunc) Check(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	ok := checkFunc(func(context.Context) error { return nil })
	down := checkFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	middleware.HealthHandler(map[string]middleware.HealthChecker{"db": ok})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	middleware.HealthHandler(map[string]middleware.HealthChecker{"db": ok, "reports": down})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status middleware.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "connection refused", status.Checks["reports"].Message)
}

func TestReadinessHandler(t *testing.T) {
	down := checkFunc(func(context.Context) error { return errors.New("no db") })

	rec := httptest.NewRecorder()
	middleware.ReadinessHandler(nil)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	middleware.ReadinessHandler(map[string]middleware.HealthChecker{"database": down})(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "no db")
}

type pingFunc func(context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestDatabaseHealthChecker(t *testing.T) {
	var deadline bool
	c := &middleware.DatabaseHealthChecker{DB: pingFunc(func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return nil
	})}

	require.NoError(t, c.Check(context.Background()))
	assert.True(t, deadline)
}

func TestReportDirChecker(t *testing.T) {
	assert.NoError(t, (&middleware.ReportDirChecker{Dir: t.TempDir()}).Check(context.Background()))
	assert.Error(t, (&middleware.ReportDirChecker{Dir: "/definitely/not/here"}).Check(context.Background()))
}

func TestValidateCategory(t *testing.T) {
	c, err := middleware.ValidateCategory(" kubernetes ")
	require.NoError(t, err)
	assert.Equal(t, findings.CategoryKubernetes, c)

	_, err = middleware.ValidateCategory("mainframe")
	assert.Error(t, err)
}

func TestValidateThreadID(t *testing.T) {
	assert.NoError(t, middleware.ValidateThreadID("0f8fad5b-d9cb-469f-a165-70867728950e"))
	assert.Error(t, middleware.ValidateThreadID(""))
	assert.Error(t, middleware.ValidateThreadID("../etc"))
}

func TestValidateMessage(t *testing.T) {
	msg, err := middleware.ValidateMessage("  how many\x00 critical?\x07 ")
	require.NoError(t, err)
	assert.Equal(t, "how many critical?", msg)

	_, err = middleware.ValidateMessage(" \x00 ")
	assert.Error(t, err)

	_, err = middleware.ValidateMessage(strings.Repeat("a", middleware.MaxMessageRunes+1))
	assert.Error(t, err)
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, middleware.ValidatePath(""))
	assert.NoError(t, middleware.ValidatePath("/root/.kube/config"))
	assert.NoError(t, middleware.ValidatePath("/srv/app"))
	assert.Error(t, middleware.ValidatePath("/etc/shadow"))
	assert.Error(t, middleware.ValidatePath("/srv/app; rm -rf /"))
	assert.Error(t, middleware.ValidatePath("../../secret"))
}
