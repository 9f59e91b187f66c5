package inference

import (
	"errors"
	"fmt"
	"strings"

	"ragsql/internal/dataset"
	"ragsql/internal/evaluation"
	"ragsql/internal/rag"
)

// ErrPrecondition is matched by every PreconditionError.
var ErrPrecondition = errors.New("item not ready for SQL generation")

// PreconditionError names the item and the first unset field that blocks
// SQL generation.
type PreconditionError struct {
	SortID int
	DBID   string
	Field  string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("item %d (db %s): field %s is not set", e.SortID, e.DBID, e.Field)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

// Item 单个评测问题的工作单元
// Each pipeline stage fills in its own fields; an Item belongs to one run.
type Item struct {
	// 标识
	SortID int
	DBID   string
	DBPath string

	// 源数据
	Question string
	GoldSQL  string

	// PrepareItem 填充
	Examples     []rag.Result
	SchemaText   string
	LinkedSchema []string

	// GenerateSQL 填充
	Prompt       string
	PromptTokens int
	Generation   *Generation

	// 执行与评分
	GoldExecution evaluation.Execution
	PredExecution evaluation.Execution
	Scores        evaluation.Scores
}

// NewItem creates the work unit for one dev question.
func NewItem(q dataset.DevQuestion) *Item {
	return &Item{
		SortID:   q.SortID,
		DBID:     q.DBID,
		DBPath:   q.DBPath,
		Question: q.Question,
		GoldSQL:  q.GoldSQL,
	}
}

// Validate checks every field SQL generation reads. Blank strings and empty
// lists count as unset.
func (it *Item) Validate() error {
	checks := []struct {
		field string
		ok    bool
	}{
		{"db_id", strings.TrimSpace(it.DBID) != ""},
		{"db_path", strings.TrimSpace(it.DBPath) != ""},
		{"question", strings.TrimSpace(it.Question) != ""},
		{"gold_sql", strings.TrimSpace(it.GoldSQL) != ""},
		{"rag_examples", len(it.Examples) > 0},
		{"schema_string", strings.TrimSpace(it.SchemaText) != ""},
		{"schema_linking", len(it.LinkedSchema) > 0},
	}
	for _, c := range checks {
		if !c.ok {
			return &PreconditionError{SortID: it.SortID, DBID: it.DBID, Field: c.field}
		}
	}
	return nil
}

// PredictedSQL is the text scored against the gold SQL. A failed generation
// yields its diagnostic text, which never matches.
func (it *Item) PredictedSQL() string {
	if it.Generation == nil {
		return ""
	}
	return it.Generation.Text()
}
