package provider

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures one backend variant. The caller resolves
// credentials and endpoints before construction; nothing here reads the
// environment.
type Config struct {
	Kind    string `mapstructure:"kind"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// New builds the backend named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "openai", "":
		return NewOpenAI(cfg.APIKey, cfg.Model)
	case "gemini":
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	case "anthropic":
		return NewAnthropic(cfg.APIKey, cfg.Model)
	case "local":
		return NewLocal(cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider kind: %s", cfg.Kind)
	}
}
