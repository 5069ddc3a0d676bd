package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clintrovert/sarek/internal/config"
	"github.com/clintrovert/sarek/internal/logger"
)

const app = "sarek"

var (
	cfgFile   string
	debugFlag bool
	jsonFlag  bool

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "sarek assigns issues to developers using LLM analysis",
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yaml in ./configs or the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonFlag, "json", "j", false, "json format for logging")
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(jsonFlag || cfg.Logging.JSON, debugFlag || cfg.Logging.Debug)
}
