package ddl

import (
	"fmt"

	"vitess.io/vitess/go/vt/sqlparser"
)

// StatementError reports a statement the MySQL parser rejects.
type StatementError struct {
	Index     int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d: %v", e.Index+1, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// ValidateMySQL parses each statement with the MySQL grammar and returns the
// first one that fails.
func ValidateMySQL(stmts []string) error {
	parser := sqlparser.NewTestParser()

	for i, stmt := range stmts {
		if _, err := parser.Parse(stmt); err != nil {
			return &StatementError{Index: i, Statement: stmt, Err: err}
		}
	}

	return nil
}

// SplitScript splits a MySQL script into statements.
func SplitScript(script string) ([]string, error) {
	pieces, err := sqlparser.NewTestParser().SplitStatementToPieces(script)
	if err != nil {
		return nil, fmt.Errorf("splitting script: %w", err)
	}

	return pieces, nil
}
