package adapter

import (
	"net/url"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// sqliteDSN opens path through a URI so read-only mode can be requested.
// The path is percent-escaped; '?', '#' and '%' are URI syntax.
func sqliteDSN(c *DBConfig) string {
	if c.ReadOnly && c.FilePath != ":memory:" {
		path := filepath.ToSlash(c.FilePath)
		if filepath.VolumeName(c.FilePath) != "" {
			path = "/" + path // file:/C:/...
		}
		u := &url.URL{Scheme: "file", Path: path, OmitHost: true, RawQuery: "mode=ro"}
		return u.String()
	}
	return c.FilePath
}

func quoteSQLiteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var sqliteDialect = &dialect{
	name:        "SQLite",
	driver:      "sqlite",
	dsn:         sqliteDSN,
	tablesQuery: "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'",
	columnsQuery: func(table string) (string, []any) {
		// PRAGMA takes no bind parameters
		return "PRAGMA table_info(" + quoteSQLiteIdent(table) + ")", nil
	},
	// cid, name, type, notnull, dflt_value, pk
	columnField:  1,
	versionQuery: "SELECT sqlite_version()",
	serial:       true,
}
