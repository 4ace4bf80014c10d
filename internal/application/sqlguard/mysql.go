package sqlguard

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"vitess.io/vitess/go/vt/sqlparser"
)

// mysqlServerVersion decides which /*!NNNNN ... */ comments are parsed as code,
// the same way the server would run them.
const mysqlServerVersion = "8.0.30"

var mysqlParser = sync.OnceValues(func() (*sqlparser.Parser, error) {
	return sqlparser.New(sqlparser.Options{MySQLServerVersion: mysqlServerVersion})
})

func mysqlReadOnly(text string) error {
	parser, err := mysqlParser()
	if err != nil {
		return err
	}
	tokens := parser.NewStringTokenizer(text)
	var stmts []sqlparser.Statement
	for {
		stmt, err := sqlparser.ParseNext(tokens)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		stmts = append(stmts, stmt)
	}
	if len(stmts) != 1 {
		return fmt.Errorf("expected 1 statement, got %d", len(stmts))
	}
	return mysqlSelect(stmts[0])
}

// mysqlSelect walks a select or union tree; every branch must be lock free
// and write nowhere.
func mysqlSelect(node any) error {
	switch s := node.(type) {
	case *sqlparser.Select:
		return plainMySQLSelect(s.Lock, s.Into)
	case *sqlparser.Union:
		if err := plainMySQLSelect(s.Lock, s.Into); err != nil {
			return err
		}
		if err := mysqlSelect(s.Left); err != nil {
			return err
		}
		return mysqlSelect(s.Right)
	}
	return fmt.Errorf("statement type %T is not a select", node)
}

func plainMySQLSelect(lock sqlparser.Lock, into *sqlparser.SelectInto) error {
	if lock != sqlparser.NoLock {
		return errors.New("locking select")
	}
	if into != nil {
		return errors.New("select into")
	}
	return nil
}
