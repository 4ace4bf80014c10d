package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

type FindingRepository struct {
	db  *sql.DB
	log *zap.Logger
}

func NewFindingRepository(db *sql.DB, log *zap.Logger) *FindingRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &FindingRepository{db: db, log: log}
}

const upsertFinding = `
INSERT INTO findings
(category, finding_id, resource_name, service_name, classifier_id, title,
 description, resolution, severity, message, cvss_vector, risk_score, cause_metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (category, finding_id, resource_name) DO UPDATE SET
 service_name = EXCLUDED.service_name,
 classifier_id = EXCLUDED.classifier_id,
 title = EXCLUDED.title,
 description = EXCLUDED.description,
 resolution = EXCLUDED.resolution,
 severity = EXCLUDED.severity,
 message = EXCLUDED.message,
 cvss_vector = EXCLUDED.cvss_vector,
 risk_score = EXCLUDED.risk_score,
 cause_metadata = EXCLUDED.cause_metadata,
 updated_at = now();`

// UpsertBatch merges every finding by (category, finding_id, resource_name) in one
// transaction; any failure rolls the whole batch back.
func (r *FindingRepository) UpsertBatch(ctx context.Context, list []findings.Finding) (int, error) {
	if len(list) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", findings.ErrStorage, err)
	}
	stmt, err := tx.PrepareContext(ctx, upsertFinding)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("%w: prepare upsert: %v", findings.ErrStorage, err)
	}
	defer stmt.Close()

	for _, f := range list {
		if _, err := stmt.ExecContext(ctx,
			string(f.Category), f.FindingID, f.ResourceName,
			f.ServiceName, f.ClassifierID, f.Title,
			f.Description, f.Resolution, string(f.Severity), f.Message,
			nullString(f.CVSSVector), nullFloat(f.RiskScore), stringOr(f.CauseMetadata, "{}"),
		); err != nil {
			_ = tx.Rollback()
			r.log.Error("upsert finding", zap.String("category", string(f.Category)), zap.String("finding_id", f.FindingID), zap.Error(err))
			return 0, fmt.Errorf("%w: upsert %s/%s: %v", findings.ErrStorage, f.FindingID, f.ResourceName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", findings.ErrStorage, err)
	}
	return len(list), nil
}

const summarizeFindings = `
SELECT category, MIN(finding_id), description, MIN(resolution), severity, risk_score,
       COUNT(*), string_agg(resource_name, ', ' ORDER BY resource_name)
FROM findings
%s
GROUP BY category, CASE WHEN classifier_id = '' THEN finding_id ELSE classifier_id END,
         description, severity, risk_score
ORDER BY risk_score DESC NULLS LAST;`

// Summarize groups findings by kind; see findings.BuildSummary for the rest.
func (r *FindingRepository) Summarize(ctx context.Context, category findings.Category, opts findings.SummaryOptions) (*findings.Summary, error) {
	where, args := "", []any{}
	if category != findings.CategoryAll {
		where, args = "WHERE category = $1", append(args, string(category))
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(summarizeFindings, where), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: summarize: %v", findings.ErrStorage, err)
	}
	defer rows.Close()

	var groups []findings.IssueGroup
	for rows.Next() {
		var (
			g        findings.IssueGroup
			cat, sev string
			score    sql.NullFloat64
			names    sql.NullString
		)
		if err := rows.Scan(&cat, &g.FindingID, &g.Description, &g.Resolution, &sev, &score, &g.ResourceCount, &names); err != nil {
			return nil, fmt.Errorf("%w: summarize scan: %v", findings.ErrStorage, err)
		}
		g.Category = findings.Category(cat)
		g.Severity = findings.ParseSeverity(sev)
		g.RiskScore = floatPtr(score)
		g.ResourceNames = names.String
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: summarize rows: %v", findings.ErrStorage, err)
	}
	return findings.BuildSummary(category, groups, opts), nil
}

// ClearAll deletes every finding.
func (r *FindingRepository) ClearAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM findings;`)
	if err != nil {
		return 0, fmt.Errorf("%w: clear: %v", findings.ErrStorage, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
