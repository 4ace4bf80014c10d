package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Dialect name handed to the SQL generator.
const Dialect = "mysql"

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
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
  category       VARCHAR(16)  COLLATE utf8mb4_bin NOT NULL,
  finding_id     VARCHAR(128) COLLATE utf8mb4_bin NOT NULL,
  resource_name  VARCHAR(512) COLLATE utf8mb4_bin NOT NULL,
  service_name   VARCHAR(128) NOT NULL DEFAULT '',
  classifier_id  VARCHAR(128) NOT NULL DEFAULT '',
  title          TEXT         NOT NULL,
  description    TEXT         NOT NULL,
  resolution     TEXT         NOT NULL,
  severity       VARCHAR(16)  NOT NULL,
  message        TEXT         NOT NULL,
  cvss_vector    VARCHAR(256) NULL,
  risk_score     DOUBLE       NULL,
  cause_metadata TEXT         NOT NULL,
  updated_at     TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
  PRIMARY KEY (category, finding_id, resource_name),
  KEY idx_findings_severity (category, severity)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

// EnsureSchema creates the findings table when missing. Key columns compare
// byte-wise so resources differing only in case stay distinct rows.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
