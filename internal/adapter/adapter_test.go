package adapter

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func createSQLiteFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "concert.sqlite")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE singer (singer_id INTEGER PRIMARY KEY, name TEXT, age INTEGER)`,
		`CREATE TABLE concert (concert_id INTEGER PRIMARY KEY, singer_id INTEGER, year TEXT)`,
		`INSERT INTO singer VALUES (1, 'Joe', 52), (2, 'Ann', 31)`,
		`INSERT INTO concert VALUES (10, 1, '2014'), (11, 2, '2015')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return path
}

func connectSQLite(t *testing.T, path string) DBAdapter {
	t.Helper()
	a, err := NewAdapter(&DBConfig{Type: "sqlite", FilePath: path, ReadOnly: true})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestSQLiteExecuteQuery(t *testing.T) {
	a := connectSQLite(t, createSQLiteFixture(t))

	result, err := a.ExecuteQuery(context.Background(), "SELECT singer_id, name FROM singer ORDER BY singer_id")
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}

	if !reflect.DeepEqual(result.Columns, []string{"singer_id", "name"}) {
		t.Errorf("Columns = %v", result.Columns)
	}
	want := [][]any{{int64(1), "Joe"}, {int64(2), "Ann"}}
	if !reflect.DeepEqual(result.Rows, want) {
		t.Errorf("Rows = %#v, want %#v", result.Rows, want)
	}
	if result.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", result.RowCount)
	}
}

func TestSQLiteExecuteQueryArgs(t *testing.T) {
	a := connectSQLite(t, createSQLiteFixture(t))

	result, err := a.ExecuteQuery(context.Background(), "SELECT name FROM singer WHERE age > ?", 40)
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if !reflect.DeepEqual(result.Rows, [][]any{{"Joe"}}) {
		t.Errorf("Rows = %#v", result.Rows)
	}
}

func TestSQLiteReadOnly(t *testing.T) {
	a := connectSQLite(t, createSQLiteFixture(t))

	if _, err := a.ExecuteQuery(context.Background(), "INSERT INTO singer VALUES (3, 'Kim', 20)"); err == nil {
		t.Fatal("expected write to fail on a read-only connection")
	}
}

func TestSQLiteBadQuery(t *testing.T) {
	a := connectSQLite(t, createSQLiteFixture(t))

	if _, err := a.ExecuteQuery(context.Background(), "SELECT * FROM missing"); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

func TestDescribeSchema(t *testing.T) {
	a := connectSQLite(t, createSQLiteFixture(t))

	got, err := DescribeSchema(context.Background(), a)
	if err != nil {
		t.Fatalf("DescribeSchema() error = %v", err)
	}

	want := "Tables and Columns:\n" +
		"\nTable: singer\n" +
		" - singer.singer_id\n" +
		" - singer.name\n" +
		" - singer.age\n" +
		"\nTable: concert\n" +
		" - concert.concert_id\n" +
		" - concert.singer_id\n" +
		" - concert.year"
	if got != want {
		t.Errorf("DescribeSchema() =\n%s\nwant\n%s", got, want)
	}
}

func TestSQLiteVersion(t *testing.T) {
	a := connectSQLite(t, createSQLiteFixture(t))

	v, err := a.GetDatabaseVersion(context.Background())
	if err != nil {
		t.Fatalf("GetDatabaseVersion() error = %v", err)
	}
	if v == "" || v == "unknown" {
		t.Errorf("GetDatabaseVersion() = %q", v)
	}
	if a.GetDatabaseType() != "SQLite" {
		t.Errorf("GetDatabaseType() = %q", a.GetDatabaseType())
	}
}

func TestExecuteQueryMock(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, label FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"id", "label"}).
			AddRow(int64(1), []byte("a")).
			AddRow(int64(2), nil))
	mock.ExpectQuery("SELECT broken").WillReturnError(errors.New("syntax error"))

	a := &sqlDB{dialect: mysqlDialect, config: &DBConfig{}, db: db}

	result, err := a.ExecuteQuery(context.Background(), "SELECT id, label FROM t")
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	want := [][]any{{int64(1), "a"}, {int64(2), nil}}
	if !reflect.DeepEqual(result.Rows, want) {
		t.Errorf("Rows = %#v, want %#v", result.Rows, want)
	}

	if _, err := a.ExecuteQuery(context.Background(), "SELECT broken"); err == nil {
		t.Error("expected driver error to propagate")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListColumnsMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`information_schema\.columns`).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id").AddRow("total"))

	a := &sqlDB{dialect: postgresDialect, config: &DBConfig{}, db: db}
	cols, err := a.ListColumns(context.Background(), "orders")
	if err != nil {
		t.Fatalf("ListColumns() error = %v", err)
	}
	if !reflect.DeepEqual(cols, []string{"id", "total"}) {
		t.Errorf("ListColumns() = %v", cols)
	}
}

func TestNotConnected(t *testing.T) {
	a, err := NewAdapter(&DBConfig{Type: "sqlite", FilePath: ":memory:"})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if _, err := a.ExecuteQuery(context.Background(), "SELECT 1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ExecuteQuery() before Connect error = %v, want ErrNotConnected", err)
	}
}

func TestNewAdapterUnsupported(t *testing.T) {
	_, err := NewAdapter(&DBConfig{Type: "oracle"})
	var unsupported *UnsupportedDatabaseError
	if !errors.As(err, &unsupported) {
		t.Fatalf("NewAdapter() error = %v, want UnsupportedDatabaseError", err)
	}
	if unsupported.Type != "oracle" {
		t.Errorf("Type = %q", unsupported.Type)
	}
}

func TestServerDSN(t *testing.T) {
	c := &DBConfig{Host: "db.local", Port: 3306, Database: "bench", User: "eval", Password: "p w"}
	parsed, err := mysql.ParseDSN(mysqlDSN(c))
	if err != nil {
		t.Fatalf("ParseDSN(mysqlDSN()) error = %v", err)
	}
	if parsed.Addr != "db.local:3306" || parsed.DBName != "bench" || parsed.User != "eval" || parsed.Passwd != "p w" || !parsed.ParseTime {
		t.Errorf("mysqlDSN() round trip = %+v", parsed)
	}

	c.Port = 5432
	if got, want := postgresDSN(c), "host=db.local port=5432 user=eval password='p w' dbname=bench sslmode=disable"; got != want {
		t.Errorf("postgresDSN() = %q, want %q", got, want)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		config DBConfig
		want   string
	}{
		{DBConfig{FilePath: "a.sqlite"}, "a.sqlite"},
		{DBConfig{FilePath: "a.sqlite", ReadOnly: true}, "file:a.sqlite?mode=ro"},
		{DBConfig{FilePath: ":memory:", ReadOnly: true}, ":memory:"},
		{DBConfig{FilePath: "db/a?b#c%d.sqlite", ReadOnly: true}, "file:db/a%3Fb%23c%25d.sqlite?mode=ro"},
		{DBConfig{FilePath: "/data/my db.sqlite", ReadOnly: true}, "file:/data/my%20db.sqlite?mode=ro"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(&tt.config); got != tt.want {
			t.Errorf("sqliteDSN(%+v) = %q, want %q", tt.config, got, tt.want)
		}
	}
}

func TestSQLiteReadOnlyOddPath(t *testing.T) {
	src := createSQLiteFixture(t)
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "odd?#%name.sqlite")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	a := connectSQLite(t, path)
	tables, err := a.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if !reflect.DeepEqual(tables, []string{"singer", "concert"}) {
		t.Errorf("ListTables() = %v", tables)
	}
}
