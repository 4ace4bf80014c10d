package findings

import "context"

// Repository port for the finding store. UpsertBatch is the only mutator besides ClearAll.
type Repository interface {
	UpsertBatch(ctx context.Context, list []Finding) (int, error)
	Summarize(ctx context.Context, category Category, opts SummaryOptions) (*Summary, error)
	ClearAll(ctx context.Context) (int64, error)
}

// Normalizer turns one raw scanner report into canonical findings.
type Normalizer interface {
	Normalize(raw []byte) ([]Finding, error)
}

// ReportSource yields the raw report bytes of a category.
// Missing reports return ErrNotFound.
type ReportSource interface {
	Read(ctx context.Context, category Category) ([]byte, error)
}

// Runner port (scanner invocation)
type Runner interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// ArtifactStore port (blob storage for attachments and raw reports)
type ArtifactStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	UploadBytes(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// RunRequest untuk Runner
type RunRequest struct {
	Category   Category
	ReportPath string
	// Target is the code folder, image tarball, kubeconfig path or AWS region.
	Target string
}

// RunResult hasil dari Runner
type RunResult struct {
	ReportPath string
	ExitCode   int
	DurationMS int64
	Skipped    bool
}
