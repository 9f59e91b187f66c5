package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"ragsql/internal/evaluation"
	"ragsql/internal/inference"
)

// Rescorer 重新计算已保存结果的指标
// With an Executor set, gold and predicted SQL are run again before
// scoring; otherwise the stored rows are scored as saved.
type Rescorer struct {
	Executor inference.Executor
	// DBPaths overrides the stored database path by db id
	DBPaths map[string]string
}

// DBScores is the mean of one database's items.
type DBScores struct {
	DBID  string            `json:"db_id"`
	Items int               `json:"items"`
	Mean  evaluation.Scores `json:"mean"`
}

// Summary 汇总
type Summary struct {
	Items   int               `json:"items"`
	Failed  int               `json:"generation_failed"`
	Changed int               `json:"changed"`
	Mean    evaluation.Scores `json:"mean"`
	ByDB    []DBScores        `json:"by_db"`
}

// Rescore updates the scores of records in place and aggregates them.
func (r *Rescorer) Rescore(ctx context.Context, records []inference.Record) (*Summary, error) {
	summary := &Summary{Items: len(records)}
	all := make([]evaluation.Scores, len(records))
	perDB := map[string][]evaluation.Scores{}

	for i := range records {
		rec := &records[i]
		if r.Executor != nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r.reexecute(ctx, rec)
		}

		scores := rec.Rescore()
		if scores != rec.Scores {
			summary.Changed++
		}
		rec.Scores = scores
		if rec.GenerationFailed {
			summary.Failed++
		}

		all[i] = scores
		perDB[rec.DBID] = append(perDB[rec.DBID], scores)
	}

	mean, err := evaluation.Aggregate(all)
	if err != nil {
		return nil, err
	}
	summary.Mean = mean

	for dbID, scores := range perDB {
		m, err := evaluation.Aggregate(scores)
		if err != nil {
			return nil, err
		}
		summary.ByDB = append(summary.ByDB, DBScores{DBID: dbID, Items: len(scores), Mean: m})
	}
	sort.Slice(summary.ByDB, func(i, j int) bool {
		return summary.ByDB[i].DBID < summary.ByDB[j].DBID
	})
	return summary, nil
}

func (r *Rescorer) reexecute(ctx context.Context, rec *inference.Record) {
	dbPath := rec.DBPath
	if p, ok := r.DBPaths[rec.DBID]; ok {
		dbPath = p
	}
	rec.DBPath = dbPath

	rec.SetGold(r.Executor.Execute(ctx, dbPath, rec.GoldSQL))

	// a failed generation keeps its stored error
	if rec.GenerationFailed {
		return
	}
	rec.SetPred(r.Executor.Execute(ctx, dbPath, rec.PredictedSQL))
}

// Print writes the summary table.
func (s *Summary) Print(w io.Writer, previous evaluation.Scores) {
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "📊 Rescored Summary\n")
	fmt.Fprintf(w, "%s\n\n", rule)
	fmt.Fprintf(w, "Items: %d | Generation failed: %d | Changed: %d\n\n", s.Items, s.Failed, s.Changed)

	fmt.Fprintf(w, "  %-22s %10s %10s\n", "Metric", "Saved", "Rescored")
	fmt.Fprintf(w, "  %-22s %10.4f %10.4f\n", "Exact Match", previous.ExactMatch, s.Mean.ExactMatch)
	fmt.Fprintf(w, "  %-22s %10.4f %10.4f\n", "Execution Accuracy", previous.ExecutionAccuracy, s.Mean.ExecutionAccuracy)
	fmt.Fprintf(w, "  %-22s %10.4f %10.4f\n", "Partial Correctness", previous.PartialCorrectness, s.Mean.PartialCorrectness)

	if len(s.ByDB) > 1 {
		fmt.Fprintf(w, "\n  %-28s %6s %8s %8s %8s\n", "Database", "Items", "EM", "EX", "Partial")
		for _, db := range s.ByDB {
			fmt.Fprintf(w, "  %-28s %6d %8.4f %8.4f %8.4f\n", db.DBID, db.Items, db.Mean.ExactMatch, db.Mean.ExecutionAccuracy, db.Mean.PartialCorrectness)
		}
	}
	fmt.Fprintln(w)
}
