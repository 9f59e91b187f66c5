package dataset

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ragsql/internal/adapter"
)

// DiscoverDatabases walks dir for *.sqlite files and maps each parent
// directory name (the database id) to its file. Files that cannot be read
// as sqlite databases are skipped with a warning.
func DiscoverDatabases(ctx context.Context, dir string, log *slog.Logger) (map[string]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, &ConfigurationError{Path: dir, Reason: "dev_databases folder not found"}
	}

	found := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sqlite") {
			return nil
		}

		dbID := filepath.Base(filepath.Dir(path))
		if err := probeSQLite(ctx, path); err != nil {
			log.Warn("skipping unreadable database", "db_id", dbID, "path", path, "error", err)
			return nil
		}
		found[dbID] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	if len(found) == 0 {
		return nil, &ConfigurationError{Path: dir, Reason: "no .sqlite databases found"}
	}
	return found, nil
}

func probeSQLite(ctx context.Context, path string) error {
	db, err := adapter.NewAdapter(&adapter.DBConfig{Type: "sqlite", FilePath: path, ReadOnly: true})
	if err != nil {
		return err
	}
	if err := db.Connect(ctx); err != nil {
		return err
	}
	defer db.Close()

	// forces sqlite to read the header
	_, err = db.ListTables(ctx)
	return err
}
