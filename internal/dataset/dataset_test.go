package dataset

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const tablesJSON = `[
  {
    "db_id": "concert_singer",
    "table_names_original": ["Singer", "Concert"],
    "column_names_original": [[-1, "*"], [0, "Singer_ID"], [0, "Name"], [1, "Year"]]
  }
]`

func TestParseName(t *testing.T) {
	for _, in := range []string{"bird", " BIRD ", "Spider-1.0"} {
		if _, err := ParseName(in); err != nil {
			t.Errorf("ParseName(%q) error = %v", in, err)
		}
	}

	_, err := ParseName("wikisql")
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("ParseName(wikisql) error = %v, want ErrConfiguration", err)
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Dataset != "wikisql" {
		t.Errorf("expected ConfigurationError naming the dataset, got %v", err)
	}
}

func TestBirdLoader(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bird", "train.json"),
		`[{"question": "How many singers?", "SQL": "SELECT count(*) FROM singer", "db_id": "concert_singer"}]`)
	writeFile(t, filepath.Join(root, "bird", "train_tables.json"), tablesJSON)
	writeFile(t, filepath.Join(root, "bird", "dev.json"), `[
	  {"db_id": "a", "db_path": "a/a.sqlite", "question": "q0", "SQL": "SELECT 0"},
	  {"db_id": "b", "question": "q1", "SQL": "SELECT 1"}
	]`)

	l, err := NewLoader(root, "bird")
	if err != nil {
		t.Fatal(err)
	}

	examples, err := l.TrainingExamples()
	if err != nil {
		t.Fatalf("TrainingExamples() error = %v", err)
	}
	want := []Example{{Question: "How many singers?", SQL: "SELECT count(*) FROM singer", DBID: "concert_singer"}}
	if !reflect.DeepEqual(examples, want) {
		t.Errorf("TrainingExamples() = %+v", examples)
	}

	schemas, err := l.Schemas()
	if err != nil {
		t.Fatalf("Schemas() error = %v", err)
	}
	s := schemas["concert_singer"]
	for _, col := range []string{"*", "singer_id", "name", "year"} {
		if _, ok := s.Columns[col]; !ok {
			t.Errorf("missing column %q", col)
		}
	}
	for _, tbl := range []string{"singer", "concert"} {
		if _, ok := s.Tables[tbl]; !ok {
			t.Errorf("missing table %q", tbl)
		}
	}

	dev, err := l.DevQuestions()
	if err != nil {
		t.Fatalf("DevQuestions() error = %v", err)
	}
	if len(dev) != 2 || dev[1].SortID != 1 || dev[0].DBPath != "a/a.sqlite" || dev[1].GoldSQL != "SELECT 1" {
		t.Errorf("DevQuestions() = %+v", dev)
	}
}

func TestSpiderLoader(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "spider-1.0", "train_spider.json"),
		`[{"question": "q1", "query": "SELECT 1", "db_id": "x"}]`)
	writeFile(t, filepath.Join(root, "spider-1.0", "tables.json"), tablesJSON)
	writeFile(t, filepath.Join(root, "spider-1.0", "dev.json"),
		`[{"db_id": "x", "question": "dq", "query": "SELECT 2", "SQL": "ignored"}]`)

	l := &Loader{Root: root, Name: Spider10}

	// train_others.json is absent and skipped
	examples, err := l.TrainingExamples()
	if err != nil {
		t.Fatalf("TrainingExamples() error = %v", err)
	}
	if len(examples) != 1 || examples[0].SQL != "SELECT 1" {
		t.Errorf("TrainingExamples() = %+v", examples)
	}

	writeFile(t, filepath.Join(root, "spider-1.0", "train_others.json"),
		`[{"question": "q2", "query": "SELECT 3", "db_id": "y"}]`)
	examples, err = l.TrainingExamples()
	if err != nil {
		t.Fatal(err)
	}
	if len(examples) != 2 || examples[1].DBID != "y" {
		t.Errorf("TrainingExamples() = %+v", examples)
	}

	dev, err := l.DevQuestions()
	if err != nil {
		t.Fatal(err)
	}
	if dev[0].GoldSQL != "SELECT 2" || dev[0].DBPath != "" {
		t.Errorf("DevQuestions() = %+v", dev)
	}
}

func TestLoaderMissingFile(t *testing.T) {
	l := &Loader{Root: t.TempDir(), Name: Bird}

	for name, fn := range map[string]func() error{
		"train":  func() error { _, err := l.TrainingExamples(); return err },
		"tables": func() error { _, err := l.Schemas(); return err },
		"dev":    func() error { _, err := l.DevQuestions(); return err },
	} {
		if err := fn(); !errors.Is(err, ErrConfiguration) {
			t.Errorf("%s: error = %v, want ErrConfiguration", name, err)
		}
	}
}

func TestLoaderUnsupported(t *testing.T) {
	l := &Loader{Root: t.TempDir(), Name: "wikisql"}
	if _, err := l.TrainingExamples(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("TrainingExamples() error = %v, want ErrConfiguration", err)
	}
}

func TestResolveDBPath(t *testing.T) {
	l := &Loader{Root: "Dataset", Name: Bird}
	discovered := map[string]string{"a": "/data/a/a.sqlite"}

	tests := []struct {
		q    DevQuestion
		want string
	}{
		{DevQuestion{DBID: "a", DBPath: "ignored"}, "/data/a/a.sqlite"},
		{DevQuestion{DBID: "b", DBPath: "b/b.sqlite"}, filepath.Join("Dataset", "bird", "dev_databases", "b", "b.sqlite")},
		{DevQuestion{DBID: "c", DBPath: "Dataset/bird/dev_databases/c/c.sqlite"}, "Dataset/bird/dev_databases/c/c.sqlite"},
		{DevQuestion{DBID: "d"}, ""},
	}
	for _, tt := range tests {
		if got := l.ResolveDBPath(tt.q, discovered); got != tt.want {
			t.Errorf("ResolveDBPath(%+v) = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestSample(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	a, err := Sample(items, "fixed-seed", 25)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Sample(items, "fixed-seed", 25)
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different samples")
	}
	if len(a) != 25 {
		t.Errorf("len = %d, want 25", len(a))
	}

	seen := map[int]bool{}
	for _, v := range a {
		if seen[v] {
			t.Errorf("duplicate item %d", v)
		}
		seen[v] = true
	}

	c, _ := Sample(items, "other-seed", 25)
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds produced identical samples")
	}

	if items[0] != 0 || items[99] != 99 {
		t.Error("Sample modified its input")
	}

	if _, err := Sample(items, "x", 101); err == nil {
		t.Error("expected error when sample exceeds input size")
	}
}

func TestDiscoverDatabases(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "concert_singer", "concert_singer.sqlite")
	if err := os.MkdirAll(filepath.Dir(good), 0o755); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite", good)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("CREATE TABLE singer (id INTEGER)"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	writeFile(t, filepath.Join(dir, "broken", "broken.sqlite"), "this is not a database file at all, just some text padding it out")
	writeFile(t, filepath.Join(dir, "notes", "readme.txt"), "ignored")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	found, err := DiscoverDatabases(context.Background(), dir, log)
	if err != nil {
		t.Fatalf("DiscoverDatabases() error = %v", err)
	}
	want := map[string]string{"concert_singer": good}
	if !reflect.DeepEqual(found, want) {
		t.Errorf("DiscoverDatabases() = %v, want %v", found, want)
	}
}

func TestDiscoverDatabasesEmpty(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := DiscoverDatabases(context.Background(), t.TempDir(), log); !errors.Is(err, ErrConfiguration) {
		t.Errorf("empty dir error = %v, want ErrConfiguration", err)
	}
	if _, err := DiscoverDatabases(context.Background(), filepath.Join(t.TempDir(), "missing"), log); !errors.Is(err, ErrConfiguration) {
		t.Errorf("missing dir error = %v, want ErrConfiguration", err)
	}
}
