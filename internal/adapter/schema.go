package adapter

import (
	"context"
	"strings"
)

// DescribeSchema renders every table and its columns as plain text:
//
//	Tables and Columns:
//
//	Table: singer
//	 - singer.singer_id
//	 - singer.name
func DescribeSchema(ctx context.Context, a DBAdapter) (string, error) {
	tables, err := a.ListTables(ctx)
	if err != nil {
		return "", err
	}

	lines := []string{"Tables and Columns:"}
	for _, table := range tables {
		columns, err := a.ListColumns(ctx, table)
		if err != nil {
			return "", err
		}
		lines = append(lines, "\nTable: "+table)
		for _, col := range columns {
			lines = append(lines, " - "+table+"."+col)
		}
	}
	return strings.Join(lines, "\n"), nil
}
