package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appconv "github.com/bryanwahyu/scan-insight/internal/application/conversation"
	"github.com/bryanwahyu/scan-insight/internal/application/ingest"
	domai "github.com/bryanwahyu/scan-insight/internal/domain/ai"
	conv "github.com/bryanwahyu/scan-insight/internal/domain/conversation"
	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
	"github.com/bryanwahyu/scan-insight/internal/middleware"
)

// Ingester is the write side plus summaries (ingest.Service).
type Ingester interface {
	Ingest(ctx context.Context, category findings.Category) (int, error)
	IngestAll(ctx context.Context) ([]ingest.Result, error)
	Summary(ctx context.Context, category findings.Category, opts findings.SummaryOptions) (*findings.Summary, error)
	Refresh(ctx context.Context) (int64, error)
}

// Asker runs one conversation turn (conversation.Orchestrator).
type Asker interface {
	Ask(ctx context.Context, st *conv.State, msg string) conv.Reply
}

type Deps struct {
	Ingest  Ingester
	Asker   Asker
	Threads *appconv.Threads
	Summary findings.SummaryOptions

	Health         map[string]middleware.HealthChecker
	Ready          map[string]middleware.HealthChecker // subset that gates /ready
	APIKeys        map[string]string
	AllowedOrigins []string
	RateCapacity   int
	RateRefill     int
	Log            *zap.Logger
}

type Router struct {
	ingest  Ingester
	asker   Asker
	threads *appconv.Threads
	summary findings.SummaryOptions
	log     *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	threads := d.Threads
	if threads == nil {
		threads = appconv.NewThreads()
	}
	r := &Router{ingest: d.Ingest, asker: d.Asker, threads: threads, summary: d.Summary, log: log}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestLogger(log))
	mux.Use(middleware.MetricsMiddleware)
	if len(d.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/ready", middleware.ReadinessHandler(d.Ready))
	mux.Get("/live", middleware.LivenessHandler)

	mux.Group(func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(d.APIKeys))
		if d.RateCapacity > 0 {
			rt.Use(middleware.RateLimitMiddleware(d.RateCapacity, d.RateRefill))
		}
		rt.Get("/metrics", middleware.MetricsHandler)

		rt.Route("/v1", func(v1 chi.Router) {
			v1.Post("/ingest/{category}", r.wrap(r.handleIngest))
			v1.Get("/summary/{category}", r.wrap(r.handleSummary))
			v1.Delete("/findings", r.wrap(r.handleRefresh))

			v1.Post("/threads", r.wrap(r.handleCreateThread))
			v1.Get("/threads/{thread}/messages", r.wrap(r.handleHistory))
			v1.Post("/threads/{thread}/messages", r.wrap(r.handleMessage))
			v1.Delete("/threads/{thread}", r.wrap(r.handleDeleteThread))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks client input errors.
type badRequest struct{ error }

func invalid(format string, args ...any) error {
	return badRequest{fmt.Errorf(format, args...)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var br badRequest
		switch {
		case errors.As(err, &br):
			http.Error(w, br.Error(), http.StatusBadRequest)
		// report errors carry server paths; those stay in the log
		case errors.Is(err, findings.ErrNotFound):
			r.log.Info("not found", zap.String("path", req.URL.Path), zap.Error(err))
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, findings.ErrReportFormat):
			r.log.Warn("malformed report", zap.String("path", req.URL.Path), zap.Error(err))
			http.Error(w, "malformed report", http.StatusUnprocessableEntity)
		case errors.Is(err, domai.ErrQuotaExceeded):
			http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
		default:
			r.log.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func category(req *http.Request) (findings.Category, error) {
	c, err := middleware.ValidateCategory(chi.URLParam(req, "category"))
	if err != nil {
		return "", badRequest{err}
	}
	return c, nil
}

func threadID(req *http.Request) (string, error) {
	id := chi.URLParam(req, "thread")
	if err := middleware.ValidateThreadID(id); err != nil {
		return "", badRequest{err}
	}
	return id, nil
}

// POST /v1/ingest/{category}
func (r *Router) handleIngest(w http.ResponseWriter, req *http.Request) error {
	c, err := category(req)
	if err != nil {
		return err
	}

	if c == findings.CategoryAll {
		results, err := r.ingest.IngestAll(req.Context())
		if err != nil {
			middleware.RecordIngest(0, err)
			return err
		}
		for _, res := range results {
			if !res.Skipped {
				middleware.RecordIngest(res.Count, nil)
			}
		}
		return writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}

	n, err := r.ingest.Ingest(req.Context(), c)
	middleware.RecordIngest(n, err)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, ingest.Result{Category: c, Count: n})
}

// GET /v1/summary/{category}
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	c, err := category(req)
	if err != nil {
		return err
	}
	sum, err := r.ingest.Summary(req.Context(), c, r.summary)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, sum)
}

// DELETE /v1/findings?confirm=true
func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) error {
	if req.URL.Query().Get("confirm") != "true" {
		return invalid("refresh deletes every finding; pass confirm=true")
	}
	n, err := r.ingest.Refresh(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// POST /v1/threads
func (r *Router) handleCreateThread(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, http.StatusCreated, map[string]string{"thread_id": r.threads.Create()})
}

// DELETE /v1/threads/{thread}
func (r *Router) handleDeleteThread(w http.ResponseWriter, req *http.Request) error {
	id, err := threadID(req)
	if err != nil {
		return err
	}
	r.threads.Delete(id)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/threads/{thread}/messages
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	id, err := threadID(req)
	if err != nil {
		return err
	}
	var msgs []domai.Message
	if !r.threads.With(id, func(st *conv.State) {
		msgs = slices.Clone(st.Messages)
	}) {
		return fmt.Errorf("thread %s: %w", id, findings.ErrNotFound)
	}
	if msgs == nil {
		msgs = []domai.Message{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{"thread_id": id, "messages": msgs})
}

// POST /v1/threads/{thread}/messages
// Body: {"message": "<question or report command>"}
func (r *Router) handleMessage(w http.ResponseWriter, req *http.Request) error {
	id, err := threadID(req)
	if err != nil {
		return err
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return invalid("invalid body: %v", err)
	}
	msg, err := middleware.ValidateMessage(body.Message)
	if err != nil {
		return badRequest{err}
	}

	// turns on one thread are serialized by Threads.With
	var reply conv.Reply
	if !r.threads.With(id, func(st *conv.State) {
		reply = r.asker.Ask(req.Context(), st, msg)
	}) {
		return fmt.Errorf("thread %s: %w", id, findings.ErrNotFound)
	}
	middleware.RecordAsk(slices.Contains(reply.Path, conv.StepQueryDB) && reply.SQL == "")
	return writeJSON(w, http.StatusOK, reply)
}
