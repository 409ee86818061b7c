// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the research-feed configuration. Variables are read with a
// FEED_ prefix; credential names also resolve without it (GITHUB_TOKEN,
// ANTHROPIC_API_KEY, OPENAI_API_KEY).
type Config struct {
	GithubToken     string `envconfig:"GITHUB_TOKEN"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`

	DBPath string `envconfig:"DB_PATH"`

	// PollIntervalHours is the suggested spacing between poll cycles for
	// whatever scheduler invokes the poll command.
	PollIntervalHours int `envconfig:"POLL_INTERVAL_HOURS" default:"6"`

	// Scoring thresholds. Tunable, not calibrated constants.
	MinRelevance   float64 `envconfig:"MIN_RELEVANCE" default:"0.4"`
	StoreThreshold float64 `envconfig:"STORE_THRESHOLD" default:"0.35"`

	EmbedProvider string `envconfig:"EMBED_PROVIDER" default:"openai"`
	EmbedModel    string `envconfig:"EMBED_MODEL" default:"text-embedding-3-small"`
	EmbedURL      string `envconfig:"EMBED_URL"`

	SummarizerModel string `envconfig:"SUMMARIZER_MODEL" default:"claude-haiku-4-5-20251001"`
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("feed", &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.DBPath = filepath.Join(home, ".research-feed", "feed.db")
	}
	return &cfg, nil
}
