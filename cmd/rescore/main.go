package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"ragsql/internal/dataset"
	"ragsql/internal/evaluation"
	"ragsql/internal/inference"
	"ragsql/internal/logger"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

func main() {
	flags := pflag.NewFlagSet("rescore", pflag.ContinueOnError)
	input := flags.String("input", "", "results.json written by cmd/eval")
	output := flags.String("output", "", "where to write rescored metrics (default: rescored.json next to input)")
	reexecute := flags.Bool("reexecute", false, "run gold and predicted SQL again before scoring")
	dbDir := flags.String("db-dir", "", "directory searched for <db_id>.sqlite files when re-executing")
	queryTimeout := flags.Duration("query-timeout", 30*time.Second, "timeout of one SQL execution")
	logLevel := flags.String("log-level", "", "structured log level")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("❌ %v", err)
	}
	if *input == "" {
		log.Fatalf("❌ --input is required")
	}
	if *output == "" {
		*output = filepath.Join(filepath.Dir(*input), "rescored.json")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slogger, syncLog, err := logger.NewStructured(*logLevel, "stderr")
	if err != nil {
		log.Fatalf("❌ create structured logger: %v", err)
	}
	defer syncLog()

	records, err := inference.ReadRecords(*input)
	if err != nil {
		log.Fatalf("❌ load results: %v", err)
	}
	fmt.Printf("📂 Loaded %d records from %s\n", len(records), *input)

	previous := savedMean(records)

	rescorer := &Rescorer{}
	if *reexecute {
		rescorer.Executor = &inference.SQLiteRunner{QueryTimeout: *queryTimeout}
		if *dbDir != "" {
			rescorer.DBPaths, err = dataset.DiscoverDatabases(ctx, *dbDir, slogger)
			if err != nil {
				log.Fatalf("❌ %v", err)
			}
			fmt.Printf("🔍 %d databases found under %s\n", len(rescorer.DBPaths), *dbDir)
		}
		fmt.Println("🔄 Re-executing gold and predicted SQL...")
	}

	summary, err := rescorer.Rescore(ctx, records)
	if err != nil {
		log.Fatalf("❌ rescore: %v", err)
	}
	summary.Print(os.Stdout, previous)

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Fatalf("❌ encode summary: %v", err)
	}
	if err := os.WriteFile(*output, append(data, '\n'), 0644); err != nil {
		log.Fatalf("❌ write %s: %v", *output, err)
	}
	fmt.Printf("✅ Rescored metrics saved to: %s\n", *output)

	slogger.Info("rescored", "input", *input, "items", summary.Items, "changed", summary.Changed, "reexecuted", *reexecute)
}

// savedMean averages the scores stored in the records.
func savedMean(records []inference.Record) evaluation.Scores {
	scores := make([]evaluation.Scores, len(records))
	for i, r := range records {
		scores[i] = r.Scores
	}
	mean, err := evaluation.Aggregate(scores)
	if err != nil {
		return evaluation.Scores{}
	}
	return mean
}
