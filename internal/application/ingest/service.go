package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/scan-insight/internal/application"
	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

// Scorer attaches CVSS data to finding kinds.
type Scorer interface {
	Score(ctx context.Context, kinds []findings.FindingKind) []findings.FindingKind
}

// Service implements the write side: scan, ingest and refresh.
// Service is safe for concurrent use; the repository owns the transaction per batch.
type Service struct {
	Repo        findings.Repository
	Scorer      Scorer
	Reports     findings.ReportSource
	Normalizers map[findings.Category]findings.Normalizer
	Runner      findings.Runner        // optional
	Artifacts   findings.ArtifactStore // optional, raw report archive
	Clock       application.Clock
	Log         *zap.Logger

	// ReportDir and Targets feed the Runner.
	ReportDir string
	Targets   map[findings.Category]string
}

// Result is the outcome of one category in IngestAll.
type Result struct {
	Category findings.Category `json:"category"`
	Count    int               `json:"count"`
	Skipped  bool              `json:"skipped,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

//
// ==== USE CASES ====
//

// Ingest normalizes, scores and upserts the report of one category.
// Returns ErrNotFound / ErrReportFormat for a missing or malformed report and
// ErrStorage when the batch could not be committed.
func (s *Service) Ingest(ctx context.Context, category findings.Category) (int, error) {
	log := s.logger().With(zap.String("category", string(category)))

	norm, ok := s.Normalizers[category]
	if !ok {
		return 0, fmt.Errorf("%w: no normalizer for %s", findings.ErrNotFound, category)
	}
	raw, err := s.Reports.Read(ctx, category)
	if err != nil {
		return 0, err
	}
	list, err := norm.Normalize(raw)
	if err != nil {
		return 0, err
	}

	// hanya kind yang belum punya vector yang di-score
	if kinds := findings.UnscoredKinds(list); len(kinds) > 0 && s.Scorer != nil {
		log.Info("scoring finding kinds", zap.Int("kinds", len(kinds)))
		list = findings.MergeKinds(list, s.Scorer.Score(ctx, kinds))
	}

	n, err := s.Repo.UpsertBatch(ctx, list)
	if err != nil {
		return 0, err
	}
	log.Info("report ingested", zap.Int("findings", n))

	s.archive(ctx, category, raw)
	return n, nil
}

// archive keeps a copy of the raw report; failures are only logged.
func (s *Service) archive(ctx context.Context, category findings.Category, raw []byte) {
	if s.Artifacts == nil {
		return
	}
	key := fmt.Sprintf("raw/%s/%s.json", category.Dir(), s.now().UTC().Format("20060102T150405Z"))
	if _, err := s.Artifacts.UploadBytes(ctx, key, "application/json", raw); err != nil {
		s.logger().Warn("archive raw report", zap.String("key", key), zap.Error(err))
	}
}

// IngestAll ingests every category in order. A missing or malformed report skips
// its category; a storage failure aborts and is returned with the results so far.
func (s *Service) IngestAll(ctx context.Context) ([]Result, error) {
	out := make([]Result, 0, len(findings.Categories))
	for _, c := range findings.Categories {
		n, err := s.Ingest(ctx, c)
		switch {
		case err == nil:
			out = append(out, Result{Category: c, Count: n})
		case errors.Is(err, findings.ErrNotFound), errors.Is(err, findings.ErrReportFormat):
			s.logger().Warn("category skipped", zap.String("category", string(c)), zap.Error(err))
			out = append(out, Result{Category: c, Skipped: true, Reason: skipReason(err)})
		default:
			return out, err
		}
	}
	return out, nil
}

func skipReason(err error) string {
	if errors.Is(err, findings.ErrNotFound) {
		return "report not found"
	}
	return "malformed report"
}

// Scan runs the scanner of one category, writing its report under ReportDir.
func (s *Service) Scan(ctx context.Context, category findings.Category) (findings.RunResult, error) {
	if s.Runner == nil {
		return findings.RunResult{}, errors.New("no scanner configured")
	}
	if category == findings.CategoryAll {
		return findings.RunResult{}, fmt.Errorf("scan one category at a time, got %s", category)
	}
	res, err := s.Runner.Run(ctx, findings.RunRequest{
		Category:   category,
		ReportPath: category.ReportPath(s.ReportDir),
		Target:     s.Targets[category],
	})
	if err != nil {
		return res, fmt.Errorf("scan %s: %w", category.Dir(), err)
	}
	s.logger().Info("scan finished",
		zap.String("category", string(category)),
		zap.Int("exit_code", res.ExitCode),
		zap.Int64("duration_ms", res.DurationMS),
		zap.Bool("skipped", res.Skipped))
	return res, nil
}

// ScanAll scans every category that has a target, continuing past failures.
func (s *Service) ScanAll(ctx context.Context) error {
	var errs []error
	for _, c := range findings.Categories {
		if s.Targets[c] == "" {
			continue
		}
		if _, err := s.Scan(ctx, c); err != nil {
			s.logger().Error("scan failed", zap.String("category", string(c)), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Summary is the read-only summarize(category) for the transport layer.
func (s *Service) Summary(ctx context.Context, category findings.Category, opts findings.SummaryOptions) (*findings.Summary, error) {
	return s.Repo.Summarize(ctx, category, opts)
}

// Refresh deletes every stored finding.
func (s *Service) Refresh(ctx context.Context) (int64, error) {
	n, err := s.Repo.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger().Warn("finding store cleared", zap.Int64("rows", n))
	return n, nil
}
