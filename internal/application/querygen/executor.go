package querygen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

// NoResults is rendered when a query returns no rows.
const NoResults = "No results returned."

// TxBeginner is satisfied by *sql.DB.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Executor runs gate-approved statements inside a read-only transaction
// that is always rolled back.
type Executor struct {
	DB TxBeginner
}

func NewExecutor(db TxBeginner) *Executor { return &Executor{DB: db} }

// Run executes stmt and renders its rows.
func (e *Executor) Run(ctx context.Context, stmt string) (string, error) {
	tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return "", fmt.Errorf("%w: begin read-only: %v", findings.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		return "", fmt.Errorf("%w: query: %v", findings.ErrStorage, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("%w: columns: %v", findings.ErrStorage, err)
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("%w: scan: %v", findings.ErrStorage, err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("%w: rows: %v", findings.ErrStorage, err)
	}
	return Render(cols, out), nil
}

// Render prints each row as "col=value" pairs joined by ", ", one row per line.
func Render(cols []string, rows [][]any) string {
	if len(rows) == 0 {
		return NoResults
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		pairs := make([]string, len(cols))
		for i, c := range cols {
			var v any
			if i < len(row) {
				v = row[i]
			}
			pairs[i] = c + "=" + formatValue(v)
		}
		lines = append(lines, strings.Join(pairs, ", "))
	}
	return strings.Join(lines, "\n")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
