package adapter

import (
	"context"
)

// DatabaseType 数据库类型
type DatabaseType string

const (
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgresql"
	SQLite     DatabaseType = "sqlite"
)

// DBAdapter 数据库适配器接口
// Connection and catalog access only; callers bring their own SQL.
type DBAdapter interface {
	Connect(ctx context.Context) error
	Close() error

	// ExecuteQuery runs query and returns rows in statement column order.
	ExecuteQuery(ctx context.Context, query string, args ...any) (*QueryResult, error)

	// ListTables returns user tables in catalog order
	ListTables(ctx context.Context) ([]string, error)

	// ListColumns returns the columns of table in declaration order
	ListColumns(ctx context.Context, table string) ([]string, error)

	// GetDatabaseType returns "SQLite", "MySQL" or "PostgreSQL"
	GetDatabaseType() string

	GetDatabaseVersion(ctx context.Context) (string, error)
}

// QueryResult 查询结果
type QueryResult struct {
	Columns       []string
	Rows          [][]any // ordered tuples; []byte values arrive as string
	RowCount      int
	ExecutionTime int64 // milliseconds
}

// DBConfig 数据库连接配置
type DBConfig struct {
	Type string // "sqlite", "mysql" or "postgresql"

	// server databases
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string // postgresql only, default "disable"

	// sqlite
	FilePath string
	ReadOnly bool

	MaxOpenConns int
	MaxIdleConns int
}

// NewAdapter returns an unconnected adapter for config.Type.
func NewAdapter(config *DBConfig) (DBAdapter, error) {
	var d *dialect
	switch DatabaseType(config.Type) {
	case SQLite:
		d = sqliteDialect
	case MySQL:
		d = mysqlDialect
	case PostgreSQL:
		d = postgresDialect
	default:
		return nil, &UnsupportedDatabaseError{Type: config.Type}
	}
	return newSQLDB(d, config), nil
}

// UnsupportedDatabaseError 不支持的数据库类型
type UnsupportedDatabaseError struct {
	Type string
}

func (e *UnsupportedDatabaseError) Error() string {
	return "unsupported database type: " + e.Type
}
