package adapter

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
)

func mysqlDSN(c *DBConfig) string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

var mysqlDialect = &dialect{
	name:        "MySQL",
	driver:      "mysql",
	dsn:         mysqlDSN,
	tablesQuery: "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name",
	columnsQuery: func(table string) (string, []any) {
		return "SELECT column_name FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position", []any{table}
	},
	versionQuery: "SELECT VERSION()",
}
