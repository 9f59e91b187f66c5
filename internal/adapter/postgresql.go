package adapter

import (
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// postgresDSN builds a libpq key/value connection string.
func postgresDSN(c *DBConfig) string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	pairs := []struct{ key, val string }{
		{"host", c.Host},
		{"port", fmt.Sprint(c.Port)},
		{"user", c.User},
		{"password", c.Password},
		{"dbname", c.Database},
		{"sslmode", sslmode},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.val == "" {
			continue
		}
		parts = append(parts, p.key+"="+quotePQValue(p.val))
	}
	return strings.Join(parts, " ")
}

// quotePQValue quotes values containing spaces or quotes per libpq rules.
func quotePQValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

var postgresDialect = &dialect{
	name:        "PostgreSQL",
	driver:      "postgres",
	dsn:         postgresDSN,
	tablesQuery: "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = 'public' ORDER BY tablename",
	columnsQuery: func(table string) (string, []any) {
		return "SELECT column_name FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position", []any{table}
	},
	versionQuery: "SELECT version()",
}
