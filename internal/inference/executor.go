package inference

import (
	"context"
	"fmt"
	"time"

	"ragsql/internal/adapter"
	"ragsql/internal/evaluation"
)

// Executor runs one SQL statement against the database at dbPath. Failures
// are reported in the returned Execution, never as a panic.
type Executor interface {
	Execute(ctx context.Context, dbPath, sql string) evaluation.Execution
}

// SQLiteRunner opens benchmark databases read-only through the sqlite
// adapter. It serves both as Executor and SchemaExtractor. Every call opens
// and closes its own connection.
type SQLiteRunner struct {
	// QueryTimeout bounds one statement; zero means no limit.
	QueryTimeout time.Duration
}

func (r *SQLiteRunner) open(ctx context.Context, dbPath string) (adapter.DBAdapter, error) {
	db, err := adapter.NewAdapter(&adapter.DBConfig{
		Type:     string(adapter.SQLite),
		FilePath: dbPath,
		ReadOnly: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Execute runs sql and returns its rows in statement column order.
func (r *SQLiteRunner) Execute(ctx context.Context, dbPath, sql string) evaluation.Execution {
	if r.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.QueryTimeout)
		defer cancel()
	}

	db, err := r.open(ctx, dbPath)
	if err != nil {
		return evaluation.Execution{Err: fmt.Errorf("open %s: %w", dbPath, err)}
	}
	defer db.Close()

	result, err := db.ExecuteQuery(ctx, sql)
	if err != nil {
		return evaluation.Execution{Err: err}
	}
	return evaluation.Execution{Rows: result.Rows}
}

// ExtractSchema describes every table and column of the database.
func (r *SQLiteRunner) ExtractSchema(ctx context.Context, dbPath string) (string, error) {
	db, err := r.open(ctx, dbPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	return adapter.DescribeSchema(ctx, db)
}
