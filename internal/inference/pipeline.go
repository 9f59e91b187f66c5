package inference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ragsql/internal/evaluation"
	"ragsql/internal/logger"
)

// DefaultCooldown is the pause between schema linking and SQL generation
// that lets the model API rate limit recover.
const DefaultCooldown = 5 * time.Second

// Pipeline 推理管线
// Items are processed strictly one at a time, stage by stage.
type Pipeline struct {
	Generator *Generator
	Retriever Retriever
	Extractor SchemaExtractor
	Executor  Executor

	// DBPaths maps a database id to its sqlite file
	DBPaths  map[string]string
	TopK     int
	Cooldown time.Duration

	Progress *logger.Logger
	Log      *slog.Logger
}

// Report is the outcome of one run.
type Report struct {
	Items []*Item
	Mean  evaluation.Scores
}

func (p *Pipeline) log() *slog.Logger {
	if p.Log == nil {
		return slog.Default()
	}
	return p.Log
}

func taskName(it *Item) string {
	return fmt.Sprintf("item %d (%s)", it.SortID, it.DBID)
}

// PrepareBatch retrieves examples, extracts schema and links schema for
// every item in order. The first failure stops the batch.
func (p *Pipeline) PrepareBatch(ctx context.Context, items []*Item) error {
	p.Progress.SetPhase("Phase 1: Retrieval + Schema Linking", len(items))
	for _, it := range items {
		name := taskName(it)
		p.Progress.StartTask(name)
		if err := p.Generator.PrepareItem(ctx, it, p.Retriever, p.DBPaths, p.Extractor, p.TopK); err != nil {
			p.Progress.FailTask(name, err)
			return err
		}
		p.Progress.CompleteTask(name)
	}
	return nil
}

// CheckReady returns a *PreconditionError for the first item that is not
// ready for SQL generation.
func CheckReady(items []*Item) error {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GenerateBatch checks every item before making any model call, then
// generates SQL for each. Generation failures stay on the items.
func (p *Pipeline) GenerateBatch(ctx context.Context, items []*Item) error {
	if err := CheckReady(items); err != nil {
		p.Progress.Error("Processing stopped: %v", err)
		return err
	}

	p.Progress.SetPhase("Phase 2: SQL Generation", len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := taskName(it)
		p.Progress.StartTask(name)
		gen := p.Generator.GenerateSQL(ctx, it)
		if gen.Failed() {
			p.Progress.FailTask(name, gen.Err)
			continue
		}
		p.Progress.CompleteTask(name)
	}
	return nil
}

// ExecuteBatch runs gold and predicted SQL of every item. A failed
// generation is not executed; its error becomes the predicted execution
// error.
func (p *Pipeline) ExecuteBatch(ctx context.Context, items []*Item) {
	p.Progress.SetPhase("Phase 3: Execution", len(items))
	for _, it := range items {
		name := taskName(it)
		p.Progress.StartTask(name)

		if it.Generation == nil || it.Generation.Failed() {
			err := errNotGenerated
			if it.Generation != nil {
				err = it.Generation.Err
			}
			it.PredExecution = evaluation.Execution{Err: err}
		} else {
			it.PredExecution = p.Executor.Execute(ctx, it.DBPath, it.Generation.SQL)
		}
		it.GoldExecution = p.Executor.Execute(ctx, it.DBPath, it.GoldSQL)

		if it.GoldExecution.Failed() {
			p.log().Warn("gold sql failed", "sort_id", it.SortID, "db_id", it.DBID, "error", it.GoldExecution.Err)
		}
		if it.PredExecution.Failed() {
			p.log().Info("predicted sql failed", "sort_id", it.SortID, "db_id", it.DBID, "error", it.PredExecution.Err)
			p.Progress.FailTask(name, it.PredExecution.Err)
			continue
		}
		p.Progress.CompleteTask(name)
	}
}

// ScoreBatch scores every item and returns the batch means.
func ScoreBatch(items []*Item) (evaluation.Scores, error) {
	scores := make([]evaluation.Scores, len(items))
	for i, it := range items {
		it.Scores = evaluation.Evaluate(it.GoldSQL, it.PredictedSQL(), it.GoldExecution, it.PredExecution)
		scores[i] = it.Scores
	}
	return evaluation.Aggregate(scores)
}

// Run prepares, generates, executes and scores items in that order.
func (p *Pipeline) Run(ctx context.Context, items []*Item) (*Report, error) {
	if len(items) == 0 {
		return nil, evaluation.ErrEmptyBatch
	}

	if err := p.PrepareBatch(ctx, items); err != nil {
		return nil, fmt.Errorf("prepare batch: %w", err)
	}

	if p.Cooldown > 0 {
		p.Progress.Info("Sleeping %s to let the model API rate limit cool down", p.Cooldown)
		select {
		case <-time.After(p.Cooldown):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := p.GenerateBatch(ctx, items); err != nil {
		return nil, fmt.Errorf("generate batch: %w", err)
	}

	p.ExecuteBatch(ctx, items)

	mean, err := ScoreBatch(items)
	if err != nil {
		return nil, err
	}
	p.log().Info("run scored",
		"items", len(items),
		"em", mean.ExactMatch,
		"ex", mean.ExecutionAccuracy,
		"partial_correctness", mean.PartialCorrectness)
	return &Report{Items: items, Mean: mean}, nil
}
