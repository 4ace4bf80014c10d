package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/scan-insight/internal/application"
	"github.com/bryanwahyu/scan-insight/internal/application/ingest"
	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

const awsReport = `{"Results":[{"Target":"iam","Misconfigurations":[
  {"ID":"AVD-AWS-0123","AVDID":"AVD-AWS-0123","Title":"MFA","Description":"Users should use MFA","Severity":"HIGH",
   "CauseMetadata":{"Provider":"aws","Service":"iam","Resource":"alice"}},
  {"ID":"AVD-AWS-0123","AVDID":"AVD-AWS-0123","Title":"MFA","Description":"Users should use MFA","Severity":"HIGH",
   "CauseMetadata":{"Provider":"aws","Service":"iam","Resource":"bob"}},
  {"ID":"AVD-AWS-0006","AVDID":"AVD-AWS-0006","Title":"Athena","Description":"Encrypt athena","Severity":"LOW",
   "CauseMetadata":{"Provider":"aws","Service":"athena"}}
]}]}`

// memRepo upserts by composite identity like the SQL stores do.
type memRepo struct {
	rows    map[findings.Key]findings.Finding
	failErr error
}

func newMemRepo() *memRepo { return &memRepo{rows: map[findings.Key]findings.Finding{}} }

func (r *memRepo) UpsertBatch(_ context.Context, list []findings.Finding) (int, error) {
	if r.failErr != nil {
		return 0, r.failErr
	}
	for _, f := range list {
		r.rows[f.Key()] = f
	}
	return len(list), nil
}

func (r *memRepo) Summarize(context.Context, findings.Category, findings.SummaryOptions) (*findings.Summary, error) {
	return &findings.Summary{}, nil
}

func (r *memRepo) ClearAll(context.Context) (int64, error) {
	n := int64(len(r.rows))
	r.rows = map[findings.Key]findings.Finding{}
	return n, nil
}

type mapSource map[findings.Category]string

func (m mapSource) Read(_ context.Context, c findings.Category) ([]byte, error) {
	raw, ok := m[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s report", findings.ErrNotFound, c)
	}
	return []byte(raw), nil
}

type countingScorer struct{ seen [][]findings.FindingKind }

func (s *countingScorer) Score(_ context.Context, kinds []findings.FindingKind) []findings.FindingKind {
	s.seen = append(s.seen, kinds)
	out := make([]findings.FindingKind, len(kinds))
	for i, k := range kinds {
		v := "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N"
		sc := 7.5
		k.CVSSVector, k.RiskScore = &v, &sc
		out[i] = k
	}
	return out
}

type blobs struct {
	keys []string
	err  error
}

func (b *blobs) Upload(context.Context, string, string) (string, error) { return "", nil }

func (b *blobs) UploadBytes(_ context.Context, key, _ string, _ []byte) (string, error) {
	b.keys = append(b.keys, key)
	return "url", b.err
}

type fakeRunner struct{ reqs []findings.RunRequest }

func (f *fakeRunner) Run(_ context.Context, req findings.RunRequest) (findings.RunResult, error) {
	f.reqs = append(f.reqs, req)
	return findings.RunResult{ReportPath: req.ReportPath}, nil
}

// snapshot dereferences the nullable columns so two ingests compare by content.
func snapshot(rows map[findings.Key]findings.Finding) map[findings.Key]string {
	out := make(map[findings.Key]string, len(rows))
	for k, f := range rows {
		out[k] = fmt.Sprintf("%s|%s|%s|%s|%v|%v", f.Title, f.Severity, f.Description, f.CauseMetadata, *f.CVSSVector, *f.RiskScore)
	}
	return out
}

func newService(repo *memRepo, src mapSource) (*ingest.Service, *countingScorer, *blobs) {
	sc := &countingScorer{}
	b := &blobs{}
	return &ingest.Service{
		Repo:        repo,
		Scorer:      sc,
		Reports:     src,
		Normalizers: findings.Normalizers(),
		Artifacts:   b,
		Clock:       application.FixedClock{T: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
	}, sc, b
}

func TestIngest(t *testing.T) {
	t.Run("scores once per kind and merges onto every finding", func(t *testing.T) {
		// given
		repo := newMemRepo()
		svc, sc, b := newService(repo, mapSource{findings.CategoryAWS: awsReport})

		// when
		n, err := svc.Ingest(context.Background(), findings.CategoryAWS)

		// then
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		require.Len(t, sc.seen, 1)
		assert.Len(t, sc.seen[0], 2)
		for _, f := range repo.rows {
			require.NotNil(t, f.RiskScore)
			assert.Equal(t, 7.5, *f.RiskScore)
		}
		assert.Contains(t, repo.rows, findings.Key{Category: findings.CategoryAWS, FindingID: "AVD-AWS-0006", ResourceName: "aws_athena"})
		assert.Equal(t, []string{"raw/aws/20250301T100000Z.json"}, b.keys)
	})

	t.Run("re-ingesting is idempotent", func(t *testing.T) {
		// given
		repo := newMemRepo()
		svc, _, _ := newService(repo, mapSource{findings.CategoryAWS: awsReport})
		_, err := svc.Ingest(context.Background(), findings.CategoryAWS)
		require.NoError(t, err)
		first := snapshot(repo.rows)

		// when
		_, err = svc.Ingest(context.Background(), findings.CategoryAWS)

		// then
		require.NoError(t, err)
		assert.Len(t, repo.rows, 3)
		assert.Equal(t, first, snapshot(repo.rows))
	})

	t.Run("missing report", func(t *testing.T) {
		svc, _, _ := newService(newMemRepo(), mapSource{})

		_, err := svc.Ingest(context.Background(), findings.CategoryCode)

		assert.ErrorIs(t, err, findings.ErrNotFound)
	})

	t.Run("malformed report", func(t *testing.T) {
		svc, _, _ := newService(newMemRepo(), mapSource{findings.CategoryKubernetes: "{not json"})

		_, err := svc.Ingest(context.Background(), findings.CategoryKubernetes)

		assert.ErrorIs(t, err, findings.ErrReportFormat)
	})

	t.Run("archive failure does not fail ingest", func(t *testing.T) {
		svc, _, b := newService(newMemRepo(), mapSource{findings.CategoryAWS: awsReport})
		b.err = errors.New("minio down")

		n, err := svc.Ingest(context.Background(), findings.CategoryAWS)

		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})
}

func TestIngestAll(t *testing.T) {
	t.Run("skips missing and malformed categories", func(t *testing.T) {
		// given
		svc, _, _ := newService(newMemRepo(), mapSource{
			findings.CategoryAWS:        awsReport,
			findings.CategoryKubernetes: "[",
		})

		// when
		res, err := svc.IngestAll(context.Background())

		// then
		require.NoError(t, err)
		require.Len(t, res, 4)
		assert.Equal(t, ingest.Result{Category: findings.CategoryKubernetes, Skipped: true, Reason: "malformed report"}, res[0])
		assert.Equal(t, ingest.Result{Category: findings.CategoryAWS, Count: 3}, res[1])
		assert.True(t, res[2].Skipped)
		assert.Equal(t, "report not found", res[3].Reason)
	})

	t.Run("storage failure aborts", func(t *testing.T) {
		repo := newMemRepo()
		repo.failErr = fmt.Errorf("%w: deadlock", findings.ErrStorage)
		svc, _, _ := newService(repo, mapSource{findings.CategoryAWS: awsReport})

		res, err := svc.IngestAll(context.Background())

		assert.ErrorIs(t, err, findings.ErrStorage)
		assert.Len(t, res, 1)
	})
}

func TestScan(t *testing.T) {
	// given
	runner := &fakeRunner{}
	svc, _, _ := newService(newMemRepo(), mapSource{})
	svc.Runner = runner
	svc.ReportDir = "/tmp/results"
	svc.Targets = map[findings.Category]string{findings.CategoryCode: "/src", findings.CategoryAWS: "us-east-1"}

	// when
	err := svc.ScanAll(context.Background())

	// then
	require.NoError(t, err)
	require.Len(t, runner.reqs, 2)
	assert.Equal(t, findings.CategoryAWS, runner.reqs[0].Category)
	assert.Equal(t, "/tmp/results/aws/default.json", runner.reqs[0].ReportPath)
	assert.Equal(t, "/src", runner.reqs[1].Target)

	_, err = svc.Scan(context.Background(), findings.CategoryAll)
	assert.Error(t, err)
}

func TestRefresh(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newService(repo, mapSource{findings.CategoryAWS: awsReport})
	_, err := svc.Ingest(context.Background(), findings.CategoryAWS)
	require.NoError(t, err)

	n, err := svc.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Empty(t, repo.rows)
}
