package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clintrovert/sarek/internal/analyzer"
	"github.com/clintrovert/sarek/internal/api/rest"
	"github.com/clintrovert/sarek/internal/assign"
	"github.com/clintrovert/sarek/internal/auth"
	"github.com/clintrovert/sarek/internal/ingest"
	"github.com/clintrovert/sarek/internal/metrics"
	"github.com/clintrovert/sarek/internal/notify"
	"github.com/clintrovert/sarek/internal/pipeline"
	"github.com/clintrovert/sarek/internal/provider"
	"github.com/clintrovert/sarek/internal/store"
	"github.com/clintrovert/sarek/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// storeObserver mirrors run state transitions into the store so polling
// clients see progress before the final save.
type storeObserver struct {
	store  *store.Store
	logger *zap.Logger
}

func (o *storeObserver) RunStateChanged(runID string, state types.RunState) {
	if err := o.store.UpdateRunState(runID, state); err != nil {
		o.logger.Warn("failed to record run state",
			zap.String("run_id", runID),
			zap.String("state", string(state)),
			zap.Error(err),
		)
	}
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	ctx := context.Background()
	backend, err := provider.New(ctx, cfg.Provider)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}
	backend = m.WrapProvider(backend)

	itemAnalyzer := analyzer.NewIssueAnalyzer(backend, logger)
	workerAnalyzer := analyzer.NewWorkerAnalyzer(backend, logger)
	engine := assign.NewEngine(assign.NewModelStrategy(backend, logger), logger)
	composer := notify.NewComposer(backend, logger)

	pipe := pipeline.New(itemAnalyzer, workerAnalyzer, engine, composer, logger,
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithObserver(m),
		pipeline.WithObserver(&storeObserver{store: st, logger: logger}),
	)
	runner := rest.NewRunner(pipe, st, logger, rest.WithRunFinished(m.ObserveRun))

	var source *ingest.GitHubSource
	if cfg.GitHub.Token != "" {
		source = ingest.NewGitHubSource(cfg.GitHub.Token, logger)
	}

	var tickets rest.TicketSender
	if cfg.Jira.BaseURL != "" {
		jiraSender, err := notify.NewJiraSender(
			cfg.Jira.BaseURL, cfg.Jira.Username, cfg.Jira.APIToken, cfg.Jira.ProjectKey, logger)
		if err != nil {
			return fmt.Errorf("failed to create jira sender: %w", err)
		}
		tickets = jiraSender
	}

	var chat rest.ChatSender
	if cfg.Slack.Token != "" {
		slackSender, err := notify.NewSlackSender(
			cfg.Slack.Token, cfg.Slack.Channel, cfg.Slack.StatusChannel, logger)
		if err != nil {
			return fmt.Errorf("failed to create slack sender: %w", err)
		}
		chat = slackSender
	}

	authSvc := auth.NewService(st,
		cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleRedirectURL, logger)

	handler := rest.NewHandler(st, runner, source, authSvc, tickets, chat, logger)
	router := handler.NewRouter(cfg.Auth.Required, registry)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	go func() {
		logger.Info("starting REST API server", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start REST server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}
