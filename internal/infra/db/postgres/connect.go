package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// Dialect name handed to the SQL generator.
const Dialect = "postgres"

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS findings (
  category       TEXT             NOT NULL,
  finding_id     TEXT             NOT NULL,
  resource_name  TEXT             NOT NULL,
  service_name   TEXT             NOT NULL DEFAULT '',
  classifier_id  TEXT             NOT NULL DEFAULT '',
  title          TEXT             NOT NULL,
  description    TEXT             NOT NULL,
  resolution     TEXT             NOT NULL,
  severity       TEXT             NOT NULL,
  message        TEXT             NOT NULL,
  cvss_vector    TEXT             NULL,
  risk_score     DOUBLE PRECISION NULL,
  cause_metadata TEXT             NOT NULL,
  updated_at     TIMESTAMPTZ      NOT NULL DEFAULT now(),
  PRIMARY KEY (category, finding_id, resource_name)
);
CREATE INDEX IF NOT EXISTS idx_findings_severity ON findings (category, severity);`

// EnsureSchema creates the findings table when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
