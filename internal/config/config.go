// Package config loads the application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/clintrovert/sarek/internal/provider"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Provider provider.Config `mapstructure:"provider"`
	Store    StoreConfig     `mapstructure:"store"`
	Pipeline PipelineConfig  `mapstructure:"pipeline"`
	GitHub   GitHubConfig    `mapstructure:"github"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Jira     JiraConfig      `mapstructure:"jira"`
	Slack    SlackConfig     `mapstructure:"slack"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type LoggingConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type PipelineConfig struct {
	Concurrency    int `mapstructure:"concurrency"`
	PollIntervalMS int `mapstructure:"poll_interval_ms"`
}

// PollInterval converts the configured milliseconds to a duration.
func (p PipelineConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}

type GitHubConfig struct {
	Token string `mapstructure:"token"`
}

type AuthConfig struct {
	Required           bool   `mapstructure:"required"`
	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	GoogleRedirectURL  string `mapstructure:"google_redirect_url"`
}

type JiraConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Username   string `mapstructure:"username"`
	APIToken   string `mapstructure:"api_token"`
	ProjectKey string `mapstructure:"project_key"`
}

type SlackConfig struct {
	Token         string `mapstructure:"token"`
	Channel       string `mapstructure:"channel"`
	StatusChannel string `mapstructure:"status_channel"`
}

// Load reads config.yaml (if present), merges environment variables and
// applies defaults. A .env file in the working directory is loaded first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from an explicit path.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// overrideFromEnv fills secrets from well-known environment variables
// when the config file leaves them empty.
func overrideFromEnv(cfg *Config) {
	switch cfg.Provider.Kind {
	case "gemini":
		setIfEmpty(&cfg.Provider.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	case "anthropic":
		setIfEmpty(&cfg.Provider.APIKey, "ANTHROPIC_API_KEY")
	case "local":
	default:
		setIfEmpty(&cfg.Provider.APIKey, "OPENAI_API_KEY")
	}
	setIfEmpty(&cfg.GitHub.Token, "GITHUB_TOKEN")
	setIfEmpty(&cfg.Auth.GoogleClientID, "GOOGLE_CLIENT_ID")
	setIfEmpty(&cfg.Auth.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setIfEmpty(&cfg.Auth.GoogleRedirectURL, "GOOGLE_REDIRECT_URI")
	setIfEmpty(&cfg.Jira.APIToken, "JIRA_API_TOKEN")
	setIfEmpty(&cfg.Slack.Token, "SLACK_BOT_TOKEN")
}

func setIfEmpty(dst *string, envVars ...string) {
	if *dst != "" {
		return
	}
	for _, name := range envVars {
		if val := os.Getenv(name); val != "" {
			*dst = val
			return
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "sarek.db"
	}
	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = 4
	}
	if cfg.Pipeline.PollIntervalMS == 0 {
		cfg.Pipeline.PollIntervalMS = 300000
	}
	if cfg.Provider.Kind == "" {
		cfg.Provider.Kind = "openai"
	}
}
