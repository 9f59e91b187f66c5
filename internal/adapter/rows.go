package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotConnected is returned when a query runs before Connect.
var ErrNotConnected = errors.New("database not connected")

// dialect holds what differs between engines.
type dialect struct {
	name   string
	driver string
	dsn    func(*DBConfig) string

	tablesQuery string
	// columnsQuery returns the statement and args listing the columns of
	// table; the column name is read from field columnField.
	columnsQuery func(table string) (string, []any)
	columnField  int

	versionQuery string
	// single connection, statements run one at a time
	serial bool
}

// sqlDB implements DBAdapter over database/sql for any dialect.
type sqlDB struct {
	dialect *dialect
	config  *DBConfig
	db      *sql.DB
}

func newSQLDB(d *dialect, config *DBConfig) *sqlDB {
	return &sqlDB{dialect: d, config: config}
}

func (a *sqlDB) Connect(ctx context.Context) error {
	db, err := sql.Open(a.dialect.driver, a.dialect.dsn(a.config))
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", a.dialect.name, err)
	}
	switch {
	case a.dialect.serial:
		db.SetMaxOpenConns(1)
	case a.config.MaxOpenConns > 0:
		db.SetMaxOpenConns(a.config.MaxOpenConns)
	}
	if a.config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(a.config.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping %s database: %w", a.dialect.name, err)
	}
	a.db = db
	return nil
}

func (a *sqlDB) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *sqlDB) ExecuteQuery(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	if a.db == nil {
		return nil, ErrNotConnected
	}
	start := time.Now()

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := [][]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		// []byte is reused by the driver on the next Scan
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryResult{
		Columns:       columns,
		Rows:          result,
		RowCount:      len(result),
		ExecutionTime: time.Since(start).Milliseconds(),
	}, nil
}

func (a *sqlDB) ListTables(ctx context.Context) ([]string, error) {
	result, err := a.ExecuteQuery(ctx, a.dialect.tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return columnValues(result, 0), nil
}

func (a *sqlDB) ListColumns(ctx context.Context, table string) ([]string, error) {
	query, args := a.dialect.columnsQuery(table)
	result, err := a.ExecuteQuery(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", table, err)
	}
	return columnValues(result, a.dialect.columnField), nil
}

func (a *sqlDB) GetDatabaseType() string {
	return a.dialect.name
}

func (a *sqlDB) GetDatabaseVersion(ctx context.Context) (string, error) {
	result, err := a.ExecuteQuery(ctx, a.dialect.versionQuery)
	if err != nil {
		return "", err
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return "unknown", nil
	}
	return fmt.Sprint(result.Rows[0][0]), nil
}

// columnValues collects field idx of every row as strings.
func columnValues(result *QueryResult, idx int) []string {
	out := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if idx < len(row) {
			out = append(out, fmt.Sprint(row[idx]))
		}
	}
	return out
}
