package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clintrovert/sarek/internal/analyzer"
	"github.com/clintrovert/sarek/internal/assign"
	"github.com/clintrovert/sarek/internal/ingest"
	"github.com/clintrovert/sarek/internal/notify"
	"github.com/clintrovert/sarek/internal/pipeline"
	"github.com/clintrovert/sarek/internal/provider"
	"github.com/clintrovert/sarek/internal/store"
	"github.com/clintrovert/sarek/pkg/types"
)

// New issues arriving close together are assigned as one batch.
const batchSettle = 5 * time.Second

var watchRepo string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll a GitHub repository and assign newly opened issues",
	RunE: func(_ *cobra.Command, _ []string) error {
		return watch()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchRepo, "repo", "", "GitHub repository URL or owner/repo")
	watchCmd.MarkFlagRequired("repo")
}

func watch() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	owner, repo, err := ingest.ParseRepoURL(watchRepo)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backend, err := provider.New(ctx, cfg.Provider)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	pipe := pipeline.New(
		analyzer.NewIssueAnalyzer(backend, logger),
		analyzer.NewWorkerAnalyzer(backend, logger),
		assign.NewEngine(assign.NewModelStrategy(backend, logger), logger),
		notify.NewComposer(backend, logger),
		logger,
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithObserver(&storeObserver{store: st, logger: logger}),
	)

	source := ingest.NewGitHubSource(cfg.GitHub.Token, logger)
	poller := ingest.NewPoller(func(ctx context.Context) ([]types.WorkItem, error) {
		return source.FetchItems(ctx, owner, repo)
	}, cfg.Pipeline.PollInterval(), logger)

	itemChan := make(chan types.WorkItem, 64)
	go poller.Start(ctx, itemChan)

	logger.Info("watching repository",
		zap.String("owner", owner),
		zap.String("repo", repo),
		zap.Duration("interval", cfg.Pipeline.PollInterval()),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case first := <-itemChan:
			batch := collectBatch(ctx, itemChan, first)
			if ctx.Err() != nil {
				return nil
			}
			assignBatch(ctx, st, pipe, source, owner, repo, batch, logger)
		}
	}
}

// collectBatch drains items arriving within the settle window after the
// first one.
func collectBatch(ctx context.Context, itemChan <-chan types.WorkItem, first types.WorkItem) []types.WorkItem {
	batch := []types.WorkItem{first}
	timer := time.NewTimer(batchSettle)
	defer timer.Stop()

	for {
		select {
		case item := <-itemChan:
			batch = append(batch, item)
		case <-timer.C:
			return batch
		case <-ctx.Done():
			return batch
		}
	}
}

func assignBatch(ctx context.Context, st *store.Store, pipe *pipeline.Pipeline, source *ingest.GitHubSource, owner, repo string, batch []types.WorkItem, logger *zap.Logger) {
	workers, err := source.FetchWorkers(ctx, owner, repo)
	if err != nil {
		logger.Error("failed to fetch contributors", zap.Error(err))
		return
	}
	runBatch(ctx, st, pipe, batch, workers, logger)
}

// runBatch persists the run record before executing so state transitions
// recorded by observers land on an existing row.
func runBatch(ctx context.Context, st *store.Store, pipe *pipeline.Pipeline, batch []types.WorkItem, workers []types.Worker, logger *zap.Logger) {
	run := pipeline.NewRun()
	if err := st.SaveRun(run); err != nil {
		logger.Error("failed to persist run", zap.Error(err))
		return
	}

	runErr := pipe.Run(ctx, run, batch, workers)
	if err := st.SaveRun(run); err != nil {
		logger.Error("failed to persist run", zap.String("run_id", run.ID), zap.Error(err))
	}
	if runErr != nil {
		logger.Error("run failed",
			zap.String("run_id", run.ID),
			zap.Int("items", len(batch)),
			zap.Error(runErr),
		)
		return
	}

	summary := run.Summarize()
	logger.Info("run finished",
		zap.String("run_id", run.ID),
		zap.Int("items", len(batch)),
		zap.Int("assigned", summary.Assigned),
		zap.Int("unassignable", summary.Unassignable),
	)
}
