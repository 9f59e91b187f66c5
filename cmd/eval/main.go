package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"ragsql/internal/config"
	"ragsql/internal/dataset"
	"ragsql/internal/inference"
	"ragsql/internal/llm"
	"ragsql/internal/logger"
	"ragsql/internal/rag"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

func main() {
	cfg, err := config.Load("eval", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\n⚠️  Received interrupt signal, run aborted")
		}
		log.Fatalf("❌ %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// ── Step 1: Output directory ──
	runID := uuid.NewString()
	timestamp := time.Now().Format("20060102_150405")
	outputDir := filepath.Join(cfg.OutputDir, cfg.Dataset, fmt.Sprintf("%s_%s", timestamp, runID[:8]))
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	slogger, syncLog, err := logger.NewStructured(cfg.LogLevel, filepath.Join(outputDir, "run.log"))
	if err != nil {
		return fmt.Errorf("create structured logger: %w", err)
	}
	defer syncLog()
	slogger = slogger.With("run_id", runID, "dataset", cfg.Dataset)

	modelConfig := cfg.ModelConfig()
	printConfig(cfg, modelConfig, outputDir)

	// ── Step 2: Dataset ──
	loader, err := dataset.NewLoader(cfg.DatasetRoot, cfg.Dataset)
	if err != nil {
		return err
	}

	index := rag.NewIndex(loader, slogger)
	fmt.Println("📚 Building retrieval index...")
	if err := index.Initialize(); err != nil {
		return fmt.Errorf("initialize retrieval index: %w", err)
	}
	fmt.Printf("   %d training examples indexed\n", index.Size())

	discovered, err := dataset.DiscoverDatabases(ctx, loader.DatabasesDir(), slogger)
	if err != nil {
		return err
	}
	fmt.Printf("   %d databases found under %s\n", len(discovered), loader.DatabasesDir())

	questions, err := loader.DevQuestions()
	if err != nil {
		return err
	}
	sampled, err := dataset.Sample(questions, cfg.Seed, cfg.NumItems)
	if err != nil {
		return err
	}
	fmt.Printf("   %d / %d dev questions sampled (seed %q)\n\n", len(sampled), len(questions), cfg.Seed)

	items := make([]*inference.Item, len(sampled))
	for i, q := range sampled {
		items[i] = inference.NewItem(q)
		items[i].DBPath = loader.ResolveDBPath(q, discovered)
	}

	// ── Step 3: Model ──
	model, err := llm.CreateLLM(modelConfig)
	if err != nil {
		return err
	}

	promptLog, err := os.Create(filepath.Join(outputDir, "prompts.log"))
	if err != nil {
		return fmt.Errorf("create prompts.log: %w", err)
	}
	var console io.Writer = io.Discard
	if cfg.LogLevel == "debug" {
		console = os.Stdout
	}
	inferenceLogger := inference.NewInferenceLogger(console)
	inferenceLogger.SetFile(promptLog)
	defer inferenceLogger.CloseFile()

	generator := inference.NewGenerator(
		inference.NewLLMCompleter(model, cfg.CallTimeout),
		cfg.GeneratorConfig(),
		inferenceLogger,
		slogger,
	)

	runner := &inference.SQLiteRunner{QueryTimeout: cfg.QueryTimeout}
	progress := logger.NewLogger(os.Stdout)
	pipeline := &inference.Pipeline{
		Generator: generator,
		Retriever: index,
		Extractor: runner,
		Executor:  runner,
		DBPaths:   discovered,
		TopK:      cfg.TopK,
		Cooldown:  cfg.Cooldown,
		Progress:  progress,
		Log:       slogger,
	}

	// ── Step 4: Run ──
	start := time.Now()
	report, err := pipeline.Run(ctx, items)
	progress.PrintSummary()
	if err != nil {
		return err
	}

	metrics := inference.Metrics{
		RunID:   runID,
		Dataset: cfg.Dataset,
		Model:   modelConfig.ModelName,
	}
	// scores reach the console even when a report file cannot be written
	printSummary(cfg, report, time.Since(start), slogger)
	if err := inference.WriteReport(outputDir, report, metrics); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	printOutputs(outputDir)
	return nil
}

func printConfig(cfg *config.Config, modelConfig llm.ModelConfig, outputDir string) {
	fmt.Println()
	fmt.Println(rule)
	fmt.Printf("🚀 %s Evaluation (RAG few-shot)\n", strings.ToUpper(cfg.Dataset))
	fmt.Println(rule)
	fmt.Printf("  Dataset:        %s\n", cfg.Dataset)
	fmt.Printf("  Dataset Root:   %s\n", cfg.DatasetRoot)
	fmt.Printf("  Model:          %s\n", modelConfig.DisplayName())
	fmt.Printf("  Examples:       %d (top-k %d)\n", cfg.NumItems, cfg.TopK)
	fmt.Printf("  Output:         %s\n", outputDir)
	fmt.Println("  ─────────────────────────────────────────────")
	fmt.Printf("  Linking:        %d attempts, %s apart\n", cfg.LinkAttempts, cfg.LinkDelay)
	fmt.Printf("  Generation:     %d attempts, %s apart\n", cfg.SQLAttempts, cfg.SQLDelay)
	fmt.Printf("  Call Timeout:   %s\n", cfg.CallTimeout)
	fmt.Printf("  Cooldown:       %s\n", cfg.Cooldown)
	fmt.Println(rule)
	fmt.Println()
}

func printSummary(cfg *config.Config, report *inference.Report, elapsed time.Duration, slogger *slog.Logger) {
	failed := 0
	for _, it := range report.Items {
		if it.Generation == nil || it.Generation.Failed() {
			failed++
		}
	}

	fmt.Println()
	fmt.Println(rule)
	fmt.Println("📊 Evaluation Summary")
	fmt.Println(rule)
	fmt.Printf("Dataset: %s | Items: %d | Generation failed: %d\n", cfg.Dataset, len(report.Items), failed)
	fmt.Printf("Exact Match:          %.4f\n", report.Mean.ExactMatch)
	fmt.Printf("Execution Accuracy:   %.4f\n", report.Mean.ExecutionAccuracy)
	fmt.Printf("Partial Correctness:  %.4f\n", report.Mean.PartialCorrectness)
	fmt.Printf("Elapsed:              %s\n", elapsed.Round(time.Second))

	slogger.Info("run complete", "items", len(report.Items), "generation_failed", failed, "elapsed", elapsed)
}

func printOutputs(outputDir string) {
	fmt.Printf("\n✅ Results saved to: %s/\n", outputDir)
	fmt.Println("  - results.json     (per-item records with scores)")
	fmt.Println("  - predict.sql      (predicted SQL, one per line)")
	fmt.Println("  - metrics.json     (batch means)")
	fmt.Println("  - prompts.log      (prompts and raw model output)")
	fmt.Println("  - run.log          (structured diagnostics)")
	fmt.Println()
	fmt.Println("📂 Re-score later:")
	fmt.Printf("  go run ./cmd/rescore --input %s\n", filepath.Join(outputDir, "results.json"))
}
