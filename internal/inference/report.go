package inference

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ragsql/internal/evaluation"
	"ragsql/internal/rag"
)

// Record is the persisted form of one scored item.
type Record struct {
	SortID             int               `json:"sort_id"`
	DBID               string            `json:"db_id"`
	DBPath             string            `json:"db_path"`
	Question           string            `json:"question"`
	GoldSQL            string            `json:"gold_sql"`
	PredictedSQL       string            `json:"predicted_sql"`
	GenerationFailed   bool              `json:"generation_failed"`
	GenerationAttempts int               `json:"generation_attempts"`
	LinkedSchema       []string          `json:"schema_linking"`
	Examples           []rag.Result      `json:"rag_examples"`
	PromptTokens       int               `json:"prompt_tokens"`
	GoldRows           [][]any           `json:"gold_rows"`
	GoldError          string            `json:"gold_error,omitempty"`
	PredRows           [][]any           `json:"pred_rows"`
	PredError          string            `json:"pred_error,omitempty"`
	Scores             evaluation.Scores `json:"scores"`
}

// NewRecord snapshots item.
func NewRecord(it *Item) Record {
	r := Record{
		SortID:       it.SortID,
		DBID:         it.DBID,
		DBPath:       it.DBPath,
		Question:     it.Question,
		GoldSQL:      it.GoldSQL,
		PredictedSQL: it.PredictedSQL(),
		LinkedSchema: it.LinkedSchema,
		Examples:     it.Examples,
		PromptTokens: it.PromptTokens,
		GoldRows:     encodeRows(it.GoldExecution.Rows),
		PredRows:     encodeRows(it.PredExecution.Rows),
		Scores:       it.Scores,
	}
	if it.Generation != nil {
		r.GenerationFailed = it.Generation.Failed()
		r.GenerationAttempts = it.Generation.Attempts
	}
	r.GoldError = errorText(it.GoldExecution.Err)
	r.PredError = errorText(it.PredExecution.Err)
	return r
}

// floatTag marks a non-finite float in a stored row: {"$float": "+Inf"}.
// encoding/json rejects ±Inf and NaN.
const floatTag = "$float"

func encodeRows(rows [][]any) [][]any {
	if rows == nil {
		return nil
	}
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = make([]any, len(row))
		for j, v := range row {
			out[i][j] = encodeValue(v)
		}
	}
	return out
}

func encodeValue(v any) any {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	default:
		return v
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return map[string]string{floatTag: strconv.FormatFloat(f, 'g', -1, 64)}
	}
	return v
}

func decodeRows(rows [][]any) [][]any {
	if rows == nil {
		return nil
	}
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = make([]any, len(row))
		for j, v := range row {
			out[i][j] = decodeValue(v)
		}
	}
	return out
}

func decodeValue(v any) any {
	switch x := v.(type) {
	case map[string]string:
		if s, ok := x[floatTag]; ok && len(x) == 1 {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
	case map[string]any:
		if s, ok := x[floatTag].(string); ok && len(x) == 1 {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
	}
	return v
}

// Executions rebuilds the gold and predicted executions.
func (r Record) Executions() (gold, pred evaluation.Execution) {
	gold = evaluation.Execution{Rows: decodeRows(r.GoldRows)}
	if r.GoldError != "" {
		gold.Err = errors.New(r.GoldError)
	}
	pred = evaluation.Execution{Rows: decodeRows(r.PredRows)}
	if r.PredError != "" {
		pred.Err = errors.New(r.PredError)
	}
	return gold, pred
}

// SetGold stores a fresh gold execution.
func (r *Record) SetGold(e evaluation.Execution) {
	r.GoldRows, r.GoldError = encodeRows(e.Rows), errorText(e.Err)
}

// SetPred stores a fresh predicted execution.
func (r *Record) SetPred(e evaluation.Execution) {
	r.PredRows, r.PredError = encodeRows(e.Rows), errorText(e.Err)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Rescore recomputes the scores of r from its stored SQL and rows.
func (r Record) Rescore() evaluation.Scores {
	gold, pred := r.Executions()
	return evaluation.Evaluate(r.GoldSQL, r.PredictedSQL, gold, pred)
}

// Metrics summarizes a run.
type Metrics struct {
	RunID   string            `json:"run_id"`
	Dataset string            `json:"dataset"`
	Model   string            `json:"model"`
	Items   int               `json:"items"`
	Failed  int               `json:"generation_failed"`
	Mean    evaluation.Scores `json:"mean"`
}

// WriteReport writes results.json, predict.sql and metrics.json into dir.
func WriteReport(dir string, report *Report, metrics Metrics) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	records := make([]Record, len(report.Items))
	for i, it := range report.Items {
		records[i] = NewRecord(it)
		if records[i].GenerationFailed {
			metrics.Failed++
		}
	}
	metrics.Items = len(records)
	metrics.Mean = report.Mean

	// one failed file does not stop the others
	return errors.Join(
		writeJSON(filepath.Join(dir, "results.json"), records),
		writePredictions(filepath.Join(dir, "predict.sql"), records),
		writeJSON(filepath.Join(dir, "metrics.json"), metrics),
	)
}

// ReadRecords loads a results.json written by WriteReport. Row values that
// are numbers come back as json.Number so large integers keep every digit.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	dec.UseNumber()
	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// writePredictions writes one "sql<TAB>db_id" line per record, with the
// SQL folded onto a single line.
func writePredictions(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range records {
		sql := strings.Join(strings.Fields(r.PredictedSQL), " ")
		if r.GenerationFailed {
			sql = "SELECT NULL"
		}
		fmt.Fprintf(w, "%s\t%s\n", sql, r.DBID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}
