package sqlguard

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

// Dialects the gate can parse. They match the store driver names.
const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// Preparer compiles a statement against the live schema without running it.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Gate is the mandatory check between generated SQL and execution: exactly one
// statement, a pure SELECT in the store's dialect, and it must compile against
// the schema.
type Gate struct {
	DB      Preparer
	Dialect string // empty means mysql
	Log     *zap.Logger
}

func NewGate(db Preparer, dialect string, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{DB: db, Dialect: dialect, Log: log}
}

// IsSafe reports whether sqlText may be executed.
func (g *Gate) IsSafe(ctx context.Context, sqlText string) bool {
	_, err := g.Check(ctx, sqlText)
	return err == nil
}

// Check validates sqlText and returns the statement to execute (trailing
// terminators removed). Rejections wrap findings.ErrValidationRejected.
func (g *Gate) Check(ctx context.Context, sqlText string) (string, error) {
	stmt := strings.TrimSpace(sqlText)
	stmt = strings.TrimSpace(strings.TrimRight(stmt, "; \t\r\n"))
	if stmt == "" {
		return "", g.reject("empty statement", nil)
	}

	if err := readOnly(g.Dialect, sqlText); err != nil {
		return "", g.reject("not a single select", err)
	}
	if g.DB == nil {
		return "", g.reject("no schema handle", nil)
	}

	prepared, err := g.DB.PrepareContext(ctx, stmt)
	if err != nil {
		return "", g.reject("does not compile against schema", err)
	}
	_ = prepared.Close()
	return stmt, nil
}

func (g *Gate) reject(reason string, err error) error {
	g.Log.Warn("query rejected", zap.String("reason", reason), zap.String("dialect", g.Dialect), zap.Error(err))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", findings.ErrValidationRejected, reason, err)
	}
	return fmt.Errorf("%w: %s", findings.ErrValidationRejected, reason)
}

// readOnly parses every statement in text with the dialect's grammar and
// accepts exactly one plain SELECT.
func readOnly(dialect, text string) error {
	switch dialect {
	case "", DialectMySQL:
		return mysqlReadOnly(text)
	case DialectPostgres:
		return postgresReadOnly(text)
	}
	return fmt.Errorf("unsupported dialect %q", dialect)
}
