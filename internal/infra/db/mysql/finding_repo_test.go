package mysql_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
	"github.com/bryanwahyu/scan-insight/internal/infra/db/mysql"
)

func sample() []findings.Finding {
	vector := "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N"
	score := 7.5
	return []findings.Finding{
		{Category: findings.CategoryAWS, FindingID: "AVD-AWS-0123", ResourceName: "alice", ServiceName: "iam",
			ClassifierID: "AVD-AWS-0123", Title: "MFA", Severity: findings.SeverityHigh,
			CVSSVector: &vector, RiskScore: &score, CauseMetadata: `{"Resource":"alice"}`},
		{Category: findings.CategoryAWS, FindingID: "AVD-AWS-0006", ResourceName: "aws_athena", ServiceName: "athena",
			Severity: findings.SeverityLow},
	}
}

func TestUpsertBatch(t *testing.T) {
	t.Run("commits every row in one transaction", func(t *testing.T) {
		// given
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		prep := mock.ExpectPrepare("INSERT INTO findings")
		prep.ExpectExec().
			WithArgs("AWS", "AVD-AWS-0123", "alice", "iam", "AVD-AWS-0123", "MFA", "", "", "HIGH", "",
				"CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N", 7.5, `{"Resource":"alice"}`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().
			WithArgs("AWS", "AVD-AWS-0006", "aws_athena", "athena", "", "", "", "", "LOW", "", nil, nil, "{}").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		// when
		n, err := mysql.NewFindingRepository(db, nil).UpsertBatch(context.Background(), sample())

		// then
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back the whole batch on failure", func(t *testing.T) {
		// given
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		prep := mock.ExpectPrepare("INSERT INTO findings")
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WillReturnError(errors.New("Data too long for column"))
		mock.ExpectRollback()

		// when
		n, err := mysql.NewFindingRepository(db, nil).UpsertBatch(context.Background(), sample())

		// then
		assert.ErrorIs(t, err, findings.ErrStorage)
		assert.Zero(t, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch touches nothing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		n, err := mysql.NewFindingRepository(db, nil).UpsertBatch(context.Background(), nil)

		require.NoError(t, err)
		assert.Zero(t, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSummarize(t *testing.T) {
	t.Run("all categories", func(t *testing.T) {
		// given
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		cols := []string{"category", "finding_id", "description", "resolution", "severity", "risk_score", "count", "names"}
		mock.ExpectQuery(`FROM findings\s+GROUP BY`).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("AWS", "AVD-AWS-0001", "public bucket", "block", "CRITICAL", 9.1, 1, "bucket-a").
				AddRow("CODE", "CVE-2024-0001", "rce", "Update to 1.2.3", "HIGH", 8.1, 1, "pkg:golang/x@1.0"))

		// when
		sum, err := mysql.NewFindingRepository(db, nil).Summarize(context.Background(), findings.CategoryAll, findings.SummaryOptions{})

		// then
		require.NoError(t, err)
		require.Len(t, sum.Aggregate, 2)
		assert.Equal(t, findings.SeverityGroup{Category: findings.CategoryAWS, Severity: findings.SeverityCritical, TotalResourceCount: 1, IssueCount: 1}, sum.Aggregate[0])
		assert.Equal(t, findings.SeverityGroup{Category: findings.CategoryCode, Severity: findings.SeverityHigh, TotalResourceCount: 1, IssueCount: 1}, sum.Aggregate[1])
		require.Len(t, sum.Details, 2)
		assert.Equal(t, "AVD-AWS-0001", sum.Details[0].FindingID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filters by category and tolerates null score", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		cols := []string{"category", "finding_id", "description", "resolution", "severity", "risk_score", "count", "names"}
		mock.ExpectQuery(`WHERE category = \?`).
			WithArgs("KUBERNETES").
			WillReturnRows(sqlmock.NewRows(cols).AddRow("KUBERNETES", "KSV001", "privileged", "drop", "HIGH", nil, 2, "api, web"))

		sum, err := mysql.NewFindingRepository(db, nil).Summarize(context.Background(), findings.CategoryKubernetes, findings.SummaryOptions{})

		require.NoError(t, err)
		require.Len(t, sum.Details, 1)
		assert.Nil(t, sum.Details[0].RiskScore)
		assert.Equal(t, 2, sum.Details[0].ResourceCount)
		assert.Equal(t, "api, web", sum.Details[0].ResourceNames)
	})

	t.Run("query failure is a storage error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("gone away"))

		_, err = mysql.NewFindingRepository(db, nil).Summarize(context.Background(), findings.CategoryAll, findings.SummaryOptions{})

		assert.ErrorIs(t, err, findings.ErrStorage)
	})
}

func TestClearAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("DELETE FROM findings").WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := mysql.NewFindingRepository(db, nil).ClearAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestEnsureSchema(t *testing.T) {
	// given
	var ddl string
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherFunc(func(_, actual string) error {
		ddl = actual
		return nil
	})))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))

	// when
	err = mysql.EnsureSchema(context.Background(), db)

	// then
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	for _, col := range []string{"category", "finding_id", "resource_name"} {
		assert.Regexp(t, regexp.MustCompile(`(?m)^\s*`+col+`\s+VARCHAR\(\d+\)\s+COLLATE utf8mb4_bin NOT NULL,$`), ddl, col)
	}
	assert.Contains(t, ddl, "PRIMARY KEY (category, finding_id, resource_name)")
}
