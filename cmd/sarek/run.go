package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clintrovert/sarek/internal/analyzer"
	"github.com/clintrovert/sarek/internal/assign"
	"github.com/clintrovert/sarek/internal/ingest"
	"github.com/clintrovert/sarek/internal/notify"
	"github.com/clintrovert/sarek/internal/pipeline"
	"github.com/clintrovert/sarek/internal/provider"
)

var (
	itemsPath   string
	workersPath string
	noCompose   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one assignment pass over JSON dataset files and print the result",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runOnce()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&itemsPath, "items", "issues.json", "path to the work items JSON file")
	runCmd.Flags().StringVar(&workersPath, "workers", "developers.json", "path to the workers JSON file")
	runCmd.Flags().BoolVar(&noCompose, "no-compose", false, "skip notification drafting")
}

func runOnce() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	items, err := ingest.LoadItemsFile(itemsPath)
	if err != nil {
		return err
	}
	workers, err := ingest.LoadWorkersFile(workersPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	backend, err := provider.New(ctx, cfg.Provider)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	var composer pipeline.Composer
	if !noCompose {
		composer = notify.NewComposer(backend, logger)
	}

	pipe := pipeline.New(
		analyzer.NewIssueAnalyzer(backend, logger),
		analyzer.NewWorkerAnalyzer(backend, logger),
		assign.NewEngine(assign.NewModelStrategy(backend, logger), logger),
		composer,
		logger,
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
	)

	run, runErr := pipe.Execute(ctx, items, workers)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	return runErr
}
