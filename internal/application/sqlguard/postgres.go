package sqlguard

import (
	"errors"
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// postgresReadOnly uses the server's own grammar (libpg_query), so ILIKE,
// casts, CTEs and NULLS ordering parse exactly as Postgres would.
func postgresReadOnly(text string) error {
	tree, err := pg_query.Parse(text)
	if err != nil {
		return err
	}
	stmts := tree.GetStmts()
	if len(stmts) != 1 {
		return fmt.Errorf("expected 1 statement, got %d", len(stmts))
	}
	node := stmts[0].GetStmt()
	sel := node.GetSelectStmt()
	if sel == nil {
		return fmt.Errorf("statement type %T is not a select", node.GetNode())
	}
	return postgresSelect(sel)
}

// postgresSelect checks a select, its set operation arms and its CTEs.
// Data-modifying CTEs (WITH d AS (DELETE ... RETURNING *)) are rejected.
func postgresSelect(s *pg_query.SelectStmt) error {
	if s == nil {
		return nil
	}
	if len(s.GetLockingClause()) > 0 {
		return errors.New("locking select")
	}
	if s.GetIntoClause() != nil {
		return errors.New("select into")
	}
	for _, n := range s.GetWithClause().GetCtes() {
		cte := n.GetCommonTableExpr()
		inner := cte.GetCtequery().GetSelectStmt()
		if inner == nil {
			return fmt.Errorf("cte %q is not a select", cte.GetCtename())
		}
		if err := postgresSelect(inner); err != nil {
			return err
		}
	}
	if err := postgresSelect(s.GetLarg()); err != nil {
		return err
	}
	return postgresSelect(s.GetRarg())
}
