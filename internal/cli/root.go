// Package cli implements the research-feed CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/research-feed/internal/config"
	"github.com/rcliao/research-feed/internal/embedding"
	"github.com/rcliao/research-feed/internal/feed"
	"github.com/rcliao/research-feed/internal/github"
	"github.com/rcliao/research-feed/internal/logger"
	"github.com/rcliao/research-feed/internal/store"
	"github.com/rcliao/research-feed/internal/summarize"
)

var dbPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "research-feed",
	Short: "Personalized GitHub research feed",
	Long: "Polls watched GitHub repos for releases and commit activity, scores events\n" +
		"against registered project contexts, and discovers new repos worth watching.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $FEED_DB_PATH or ~/.research-feed/feed.db)")
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg
}

func openStore(cfg *config.Config) *store.SQLiteStore {
	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		exitErr("open store", err)
	}
	return s
}

func newGitHub(cfg *config.Config) *github.Client {
	return github.NewClient(cfg.GithubToken)
}

func newEngine(cfg *config.Config, s *store.SQLiteStore) *feed.Engine {
	emb, err := embedding.New(cfg.EmbedProvider, cfg.EmbedURL, cfg.OpenAIAPIKey, cfg.EmbedModel)
	if err != nil {
		exitErr("init embedder", err)
	}
	sum := summarize.NewClient(cfg.AnthropicAPIKey, cfg.SummarizerModel)
	engineCfg := feed.Config{
		MinRelevance:   cfg.MinRelevance,
		StoreThreshold: cfg.StoreThreshold,
	}
	return feed.New(s, newGitHub(cfg), emb, sum, engineCfg, logger.New("research-feed"))
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
