package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"ragsql/internal/rag"
	"ragsql/internal/recovery"
)

// GeneratorConfig bounds the retry loops around model calls.
type GeneratorConfig struct {
	LinkAttempts int
	LinkDelay    time.Duration
	SQLAttempts  int
	SQLDelay     time.Duration
}

// DefaultGeneratorConfig returns 25 attempts per stage, 500ms apart for
// schema linking and 400ms apart for SQL generation.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		LinkAttempts: 25,
		LinkDelay:    500 * time.Millisecond,
		SQLAttempts:  25,
		SQLDelay:     400 * time.Millisecond,
	}
}

// Retriever selects few-shot examples.
type Retriever interface {
	Retrieve(question string, k int) ([]rag.Result, error)
}

// SchemaExtractor describes the tables and columns of a database.
type SchemaExtractor interface {
	ExtractSchema(ctx context.Context, dbPath string) (string, error)
}

// Generator drives schema linking and SQL generation for single items.
type Generator struct {
	completer Completer
	config    GeneratorConfig
	tokens    *TokenCounter
	logger    *InferenceLogger
	log       *slog.Logger
}

// NewGenerator creates a generator. logger and log may be nil.
func NewGenerator(completer Completer, config GeneratorConfig, logger *InferenceLogger, log *slog.Logger) *Generator {
	if config.LinkAttempts < 1 {
		config.LinkAttempts = 1
	}
	if config.SQLAttempts < 1 {
		config.SQLAttempts = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		completer: completer,
		config:    config,
		tokens:    NewTokenCounter(),
		logger:    logger,
		log:       log,
	}
}

// attemptLoop runs one stage's bounded retries and remembers the last raw
// output for diagnostics.
type attemptLoop[T any] struct {
	stage    Stage
	attempts int
	delay    time.Duration
	label    string

	tried   int
	lastRaw string
}

func (a *attemptLoop[T]) run(ctx context.Context, g *Generator, prompt string, parse func(raw string) (T, error)) (T, error) {
	op := func() (T, error) {
		var zero T
		a.tried++
		g.logger.Printf("[%s] Attempt %d/%d\n", a.label, a.tried, a.attempts)

		raw, err := g.completer.Complete(ctx, prompt)
		if err != nil {
			return zero, fmt.Errorf("model call: %w", err)
		}
		a.lastRaw = strings.TrimSpace(raw)
		g.logger.Dump(a.label+" Response", a.lastRaw)
		if a.lastRaw == "" {
			return zero, errEmptyResponse
		}
		return parse(a.lastRaw)
	}

	notify := func(err error, wait time.Duration) {
		g.logger.Printf("⚠️  %s failed (attempt %d/%d): %v\n", a.label, a.tried, a.attempts, err)
		g.log.Debug("retrying model call", "stage", a.stage, "attempt", a.tried, "wait", wait, "error", err)
	}

	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(a.delay)),
		backoff.WithMaxTries(uint(a.attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil {
		if ctx.Err() != nil {
			return v, fmt.Errorf("%s interrupted: %w", a.stage, err)
		}
		return v, &GenerationExhaustedError{Stage: a.stage, Attempts: a.tried, LastRaw: a.lastRaw, Err: err}
	}
	return v, nil
}

// LinkSchema asks the model which "table.column" entries of schemaText are
// relevant to question. Transport failures, empty replies and unparseable
// replies each consume one attempt. When every attempt fails the error is
// a *GenerationExhaustedError.
func (g *Generator) LinkSchema(ctx context.Context, schemaText, question string) ([]string, error) {
	prompt := SchemaLinkingPrompt(question, schemaText)

	g.logger.Printf("🔍 Schema Linking...\n")
	g.logger.Dump("Schema Linking Prompt", prompt)

	loop := &attemptLoop[[]string]{
		stage:    StageSchemaLinking,
		attempts: g.config.LinkAttempts,
		delay:    g.config.LinkDelay,
		label:    "Schema Linking",
	}
	columns, err := loop.run(ctx, g, prompt, func(raw string) ([]string, error) {
		columns, ok := recovery.RecoverList(raw)
		if !ok {
			return nil, errNoList
		}
		return columns, nil
	})
	if err != nil {
		return nil, err
	}

	g.logger.Printf("📋 Linked Schema: %v\n", columns)
	return columns, nil
}

// GenerateSQL builds the generation prompt for item, records it with its
// token count and retries until a SQL statement is recovered. Exhaustion is
// not an error: the returned Generation, also stored on item, is marked
// failed and carries the last raw output.
func (g *Generator) GenerateSQL(ctx context.Context, item *Item) *Generation {
	prompt := strings.TrimSpace(SQLGenerationPrompt(item))
	item.Prompt = prompt
	item.PromptTokens = g.tokens.Count(prompt)

	g.logger.Printf("🧠 Generating SQL (%d prompt tokens)...\n", item.PromptTokens)
	g.logger.Dump("SQL Generation Prompt", prompt)

	loop := &attemptLoop[string]{
		stage:    StageSQLGeneration,
		attempts: g.config.SQLAttempts,
		delay:    g.config.SQLDelay,
		label:    "SQL Generation",
	}
	sql, err := loop.run(ctx, g, prompt, func(raw string) (string, error) {
		sql, ok := recovery.RecoverSQL(raw)
		if !ok {
			return "", errNoSQL
		}
		return sql, nil
	})

	gen := &Generation{SQL: sql, LastRaw: loop.lastRaw, Attempts: loop.tried, Err: err}
	if err != nil {
		gen.SQL = ""
		g.logger.Printf("❌ SQL generation failed for item %d: %v\n", item.SortID, err)
		g.log.Warn("sql generation failed", "sort_id", item.SortID, "db_id", item.DBID, "attempts", loop.tried, "error", err)
	} else {
		g.logger.Printf("✅ SQL: %s\n", sql)
	}
	item.Generation = gen
	return gen
}

// PrepareItem fills in the retrieval and schema fields of item: the
// database path (dbPaths wins over the item's own path), k few-shot
// examples, the schema text and the linked schema.
func (g *Generator) PrepareItem(ctx context.Context, item *Item, retriever Retriever, dbPaths map[string]string, extractor SchemaExtractor, k int) error {
	if p, ok := dbPaths[item.DBID]; ok {
		item.DBPath = p
	}
	if item.DBPath == "" {
		return fmt.Errorf("item %d: no database path for db %q", item.SortID, item.DBID)
	}

	examples, err := retriever.Retrieve(item.Question, k)
	if err != nil {
		return fmt.Errorf("item %d: retrieve examples: %w", item.SortID, err)
	}
	item.Examples = examples

	schema, err := extractor.ExtractSchema(ctx, item.DBPath)
	if err != nil {
		return fmt.Errorf("item %d: extract schema: %w", item.SortID, err)
	}
	item.SchemaText = schema

	linked, err := g.LinkSchema(ctx, item.SchemaText, item.Question)
	if err != nil {
		return fmt.Errorf("item %d: %w", item.SortID, err)
	}
	item.LinkedSchema = linked
	return nil
}
