package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Loader reads the JSON files of one dataset under Root/<name>.
type Loader struct {
	Root string
	Name Name
}

// NewLoader validates name and returns a loader rooted at root.
func NewLoader(root, name string) (*Loader, error) {
	n, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	return &Loader{Root: root, Name: n}, nil
}

// Dir is the dataset directory.
func (l *Loader) Dir() string {
	return filepath.Join(l.Root, string(l.Name))
}

// DatabasesDir is where the dev sqlite files live.
func (l *Loader) DatabasesDir() string {
	return filepath.Join(l.Dir(), "dev_databases")
}

type rawTrainItem struct {
	Question string `json:"question"`
	SQL      string `json:"SQL"`
	Query    string `json:"query"`
	DBID     string `json:"db_id"`
}

func (r rawTrainItem) sql() string {
	if r.SQL != "" {
		return r.SQL
	}
	return r.Query
}

// TrainingExamples loads the retrieval corpus. BIRD reads train.json,
// Spider 1.0 concatenates train_spider.json and train_others.json and skips
// whichever is absent.
func (l *Loader) TrainingExamples() ([]Example, error) {
	if err := l.Name.Validate(); err != nil {
		return nil, err
	}

	var files []string
	required := l.Name == Bird
	switch l.Name {
	case Bird:
		files = []string{"train.json"}
	case Spider10:
		files = []string{"train_spider.json", "train_others.json"}
	}

	var examples []Example
	for _, name := range files {
		var raw []rawTrainItem
		err := l.readJSON(name, &raw)
		if errors.Is(err, fs.ErrNotExist) && !required {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, item := range raw {
			examples = append(examples, Example{
				Question: item.Question,
				SQL:      item.sql(),
				DBID:     item.DBID,
			})
		}
	}

	if len(examples) == 0 {
		return nil, &ConfigurationError{Dataset: string(l.Name), Path: l.Dir(), Reason: "no training examples found"}
	}
	return examples, nil
}

type rawTableEntry struct {
	DBID    string            `json:"db_id"`
	Tables  []string          `json:"table_names_original"`
	Columns []json.RawMessage `json:"column_names_original"`
}

// Schemas loads the table and column vocabulary for every database listed
// in train_tables.json (BIRD) or tables.json (Spider 1.0).
func (l *Loader) Schemas() (SchemaIndex, error) {
	if err := l.Name.Validate(); err != nil {
		return nil, err
	}

	file := "tables.json"
	if l.Name == Bird {
		file = "train_tables.json"
	}

	var raw []rawTableEntry
	if err := l.readJSON(file, &raw); err != nil {
		return nil, err
	}

	index := make(SchemaIndex, len(raw))
	for _, entry := range raw {
		schema := DatabaseSchema{
			Tables:  make(map[string]struct{}, len(entry.Tables)),
			Columns: make(map[string]struct{}, len(entry.Columns)),
		}
		for _, t := range entry.Tables {
			schema.Tables[strings.ToLower(t)] = struct{}{}
		}
		for _, c := range entry.Columns {
			// each column is [table_index, "name"]
			var pair []any
			if err := json.Unmarshal(c, &pair); err != nil || len(pair) < 2 {
				return nil, fmt.Errorf("parse %s: bad column entry for %s: %s", file, entry.DBID, string(c))
			}
			name, ok := pair[1].(string)
			if !ok {
				return nil, fmt.Errorf("parse %s: column name for %s is not a string", file, entry.DBID)
			}
			schema.Columns[strings.ToLower(name)] = struct{}{}
		}
		index[entry.DBID] = schema
	}
	return index, nil
}

type rawDevItem struct {
	DBID     string `json:"db_id"`
	DBPath   string `json:"db_path"`
	Question string `json:"question"`
	SQL      string `json:"SQL"`
	Query    string `json:"query"`
}

// DevQuestions loads dev.json. SortID is the position in the file.
func (l *Loader) DevQuestions() ([]DevQuestion, error) {
	if err := l.Name.Validate(); err != nil {
		return nil, err
	}

	var raw []rawDevItem
	if err := l.readJSON("dev.json", &raw); err != nil {
		return nil, err
	}

	questions := make([]DevQuestion, len(raw))
	for i, item := range raw {
		gold := item.SQL
		if l.Name == Spider10 {
			gold = item.Query
		}
		q := DevQuestion{
			SortID:   i,
			DBID:     item.DBID,
			Question: item.Question,
			GoldSQL:  gold,
		}
		if l.Name == Bird {
			q.DBPath = item.DBPath
		}
		questions[i] = q
	}
	return questions, nil
}

// ResolveDBPath returns the database file for q: the discovered path when
// known, otherwise the question's own path under the databases directory.
func (l *Loader) ResolveDBPath(q DevQuestion, discovered map[string]string) string {
	if p, ok := discovered[q.DBID]; ok {
		return p
	}
	if q.DBPath == "" || filepath.IsAbs(q.DBPath) {
		return q.DBPath
	}
	if strings.HasPrefix(filepath.ToSlash(q.DBPath), filepath.ToSlash(l.Root)+"/") {
		return q.DBPath
	}
	return filepath.Join(l.DatabasesDir(), q.DBPath)
}

func (l *Loader) readJSON(name string, v any) error {
	path := filepath.Join(l.Dir(), name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", &ConfigurationError{Dataset: string(l.Name), Path: path, Reason: "missing file"}, err)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
