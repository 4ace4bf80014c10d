// Package bootstrap wires config into the services shared by the API server and the CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/bryanwahyu/scan-insight/internal/application"
	appconv "github.com/bryanwahyu/scan-insight/internal/application/conversation"
	"github.com/bryanwahyu/scan-insight/internal/application/ingest"
	"github.com/bryanwahyu/scan-insight/internal/application/querygen"
	"github.com/bryanwahyu/scan-insight/internal/application/scoring"
	"github.com/bryanwahyu/scan-insight/internal/application/sqlguard"
	"github.com/bryanwahyu/scan-insight/internal/config"
	domai "github.com/bryanwahyu/scan-insight/internal/domain/ai"
	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
	infraai "github.com/bryanwahyu/scan-insight/internal/infra/ai"
	mysqlp "github.com/bryanwahyu/scan-insight/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/scan-insight/internal/infra/db/postgres"
	dockerrunner "github.com/bryanwahyu/scan-insight/internal/infra/executor/docker"
	"github.com/bryanwahyu/scan-insight/internal/infra/reports"
	minioStore "github.com/bryanwahyu/scan-insight/internal/infra/storage"
	"github.com/bryanwahyu/scan-insight/internal/infra/tools"
)

// App holds the wired services. Close releases the database and the AI client.
type App struct {
	Config       *config.Config
	DB           *sql.DB
	LLM          domai.Client // nil when no provider is configured and none was required
	Ingest       *ingest.Service
	Orchestrator *appconv.Orchestrator
	Threads      *appconv.Threads
	Log          *zap.Logger

	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// SummaryOptions are the report bounds from config.
func (a *App) SummaryOptions() findings.SummaryOptions {
	return findings.SummaryOptions{
		DetailRowCap:       a.Config.Conversation.DetailRowCap,
		ResourceNameBudget: a.Config.Conversation.ResourceNameBudget,
	}
}

// Build connects the store, ensures the schema and wires every service.
// requireLLM fails the build when no AI provider can be created; otherwise
// findings are stored unscored and the orchestrator is left nil.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, requireLLM bool) (*App, error) {
	app := &App{Config: cfg, Log: log, Threads: appconv.NewThreads()}

	// finding store
	db, repo, dialect, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.DB = db
	app.closers = append(app.closers, func() { _ = db.Close() })

	// AI provider
	llm, closeLLM, err := infraai.NewClient(ctx, infraai.Options{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		BaseURL:  cfg.AI.BaseURL,
	})
	switch {
	case err == nil:
		app.LLM = llm
		app.closers = append(app.closers, closeLLM)
	case requireLLM:
		app.Close()
		return nil, fmt.Errorf("ai client: %w", err)
	default:
		log.Warn("ai client unavailable, findings will be stored without risk scores", zap.Error(err))
	}

	// artifacts (optional)
	var artifacts findings.ArtifactStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("minio init: %w", err)
		}
		artifacts = store
	}

	app.Ingest = &ingest.Service{
		Repo:        repo,
		Scorer:      scoring.NewScorer(app.LLM, log.Named("scoring")),
		Reports:     reports.NewSource(cfg.Reports.Dir),
		Normalizers: findings.Normalizers(),
		Runner:      dockerrunner.NewRunner(cfg.Scan.Image, cfg.Scan.MinSeverity, log.Named("scanner")),
		Artifacts:   artifacts,
		Clock:       application.SystemClock{},
		Log:         log.Named("ingest"),
		ReportDir:   cfg.Reports.Dir,
		Targets: map[findings.Category]string{
			findings.CategoryCode:       cfg.Scan.Code.Folder,
			findings.CategoryContainer:  cfg.Scan.Container.ImagePath,
			findings.CategoryKubernetes: cfg.Scan.Kubernetes.ConfigPath,
			findings.CategoryAWS:        cfg.Scan.AWS.Region,
		},
	}

	if app.LLM == nil {
		return app, nil
	}

	cv := cfg.Conversation
	app.Orchestrator = appconv.NewOrchestrator(appconv.Orchestrator{
		LLM:       app.LLM,
		Generator: querygen.NewGenerator(app.LLM, dialect, log.Named("querygen")),
		Gate:      sqlguard.NewGate(db, dialect, log.Named("sqlguard")),
		Executor:  querygen.NewExecutor(db),
		Store:     repo,
		Tools: tools.NewRegistry(
			tools.CVSSCalculator{},
			tools.SeverityOverview{Store: repo},
			tools.SecretScan{},
		),
		Artifacts: artifacts,
		Opts: appconv.Options{
			IntentThreshold:    cv.IntentThreshold,
			DetailRowCap:       cv.DetailRowCap,
			ResourceNameBudget: cv.ResourceNameBudget,
			MaxPromptChars:     cv.MaxPromptChars,
			InsightRows:        cv.InsightRows,
			MaxHistory:         cv.MaxHistory,
		},
		Log: log.Named("conversation"),
	})
	return app, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sql.DB, findings.Repository, string, error) {
	var (
		db      *sql.DB
		repo    findings.Repository
		dialect string
		err     error
	)
	switch cfg.Database.Driver {
	case "postgres":
		if db, err = pgp.Connect(ctx, cfg.PostgresDSN()); err == nil {
			err = pgp.EnsureSchema(ctx, db)
		}
		repo, dialect = pgp.NewFindingRepository(db, log.Named("store")), pgp.Dialect
	case "mysql":
		if db, err = mysqlp.Connect(ctx, cfg.MySQLDSN()); err == nil {
			err = mysqlp.EnsureSchema(ctx, db)
		}
		repo, dialect = mysqlp.NewFindingRepository(db, log.Named("store")), mysqlp.Dialect
	default:
		return nil, nil, "", fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, nil, "", fmt.Errorf("%s store: %w", cfg.Database.Driver, err)
	}
	return db, repo, dialect, nil
}
